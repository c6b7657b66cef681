// Package tracker glues the planning core to an external control loop. Two
// events drive it: a tick samples the active trajectory and emits the
// safety-optimal corrective control, and an obstacle observation inserts
// newly sensed obstacles and replans. Planning runs synchronously in the
// calling event's thread; the active trajectory is replaced wholesale by
// atomic pointer swap so a concurrent reader never sees a partial plan.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/environment"
	"github.com/SylviaHerbert/Tracking/metaplanner"
	"github.com/SylviaHerbert/Tracking/trajectory"
)

// Tracker owns the mutable state of one planning session: the current state
// estimate, the goal, and the active trajectory.
type Tracker struct {
	dyn    dynamics.Dynamics
	space  *environment.Box
	meta   *metaplanner.MetaPlanner
	clock  clock.Clock
	logger golog.Logger
	epoch  time.Time

	traj atomic.Pointer[trajectory.Trajectory]

	mu    sync.Mutex
	state dynamics.State
	goal  dynamics.State
}

// New creates a tracker for one planning session. The epoch for trajectory
// timestamps is the clock's current time at construction.
func New(
	dyn dynamics.Dynamics,
	space *environment.Box,
	meta *metaplanner.MetaPlanner,
	start, goal dynamics.State,
	clk clock.Clock,
	logger golog.Logger,
) (*Tracker, error) {
	if len(start) != dyn.StateDim() || len(goal) != dyn.StateDim() {
		return nil, errors.Errorf(
			"start and goal must have state dimension %d, got %d and %d",
			dyn.StateDim(), len(start), len(goal))
	}
	t := &Tracker{
		dyn:    dyn,
		space:  space,
		meta:   meta,
		clock:  clk,
		logger: logger,
		epoch:  clk.Now(),
		state:  append(dynamics.State(nil), start...),
		goal:   append(dynamics.State(nil), goal...),
	}
	return t, nil
}

// UpdateState records the latest state estimate from the external filter.
// Estimates of the wrong dimension are rejected.
func (t *Tracker) UpdateState(x dynamics.State) error {
	if len(x) != t.dyn.StateDim() {
		return errors.Errorf(
			"state estimate must have dimension %d, got %d", t.dyn.StateDim(), len(x))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	copy(t.state, x)
	return nil
}

// Trajectory returns the active trajectory, or nil before the first
// successful plan. Safe to call from any goroutine.
func (t *Tracker) Trajectory() *trajectory.Trajectory {
	return t.traj.Load()
}

// Tick handles one control tick: replans if the horizon has passed, samples
// the planned state, and returns the corrective control for the relative
// tracking error together with the governing value function's priority.
func (t *Tracker) Tick(ctx context.Context) (dynamics.Control, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	traj := t.traj.Load()
	if traj == nil || now > traj.LastTime() {
		if traj != nil {
			t.logger.Warnw("current time is past the end of the planned trajectory", "time", now)
		}
		if err := t.replanLocked(ctx); err != nil {
			return nil, 0, err
		}
		traj = t.traj.Load()
		now = t.now()
		if now > traj.LastTime() {
			now = traj.LastTime()
		}
	}

	plannedState := traj.GetState(now)
	relative := make(dynamics.State, len(t.state))
	floats.SubTo(relative, t.state, plannedState)

	vf := traj.GetValueFunction(now)
	return vf.OptimalControl(relative), vf.Priority(relative), nil
}

// ObserveObstacle handles one sensed spherical obstacle. Known obstacles
// are dropped; a new one is inserted and triggers a synchronous replan. On
// planning failure the previous trajectory stays active and the error is
// surfaced.
func (t *Tracker) ObserveObstacle(ctx context.Context, center r3.Vector, radius float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.space.IsObstacle(center, radius) {
		return nil
	}
	t.space.AddObstacle(center, radius)
	t.logger.Infow("obstacle added", "center", center, "radius", radius)
	return t.replanLocked(ctx)
}

// replanLocked runs the meta planner from the current state estimate to the
// goal. The active trajectory is swapped only on success.
func (t *Tracker) replanLocked(ctx context.Context) error {
	traj, err := t.meta.Plan(ctx, t.state, t.goal, t.now())
	if err != nil {
		return errors.Wrap(err, "replanning failed")
	}
	t.traj.Store(traj)
	return nil
}

// now returns seconds since the session epoch.
func (t *Tracker) now() float64 {
	return t.clock.Now().Sub(t.epoch).Seconds()
}
