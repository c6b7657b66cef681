// Package metaplanner composes a single collision-free trajectory from an
// ordered set of planners of differing speed and tracking fidelity. The
// fastest planner able to connect start to goal wins; when only a more
// conservative planner succeeds, faster planners opportunistically replace
// sub-segments wherever the switching tracking bounds prove the controller
// handoff safe.
package metaplanner

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/environment"
	"github.com/SylviaHerbert/Tracking/planner"
	"github.com/SylviaHerbert/Tracking/trajectory"
	"github.com/SylviaHerbert/Tracking/value"
)

// samplesPerSegment is how many interior points of each waypoint segment
// get re-checked against the collision space after a planner returns.
const samplesPerSegment = 8

// NewPlanningFailedError returns the error surfaced when no planner in the
// ordered list can connect start to goal.
func NewPlanningFailedError() error {
	return errors.New("no planner could connect start to goal")
}

// MetaPlanner orchestrates an ordered planner list over one collision
// space. Index 0 is the most conservative planner; the last index is the
// most aggressive. The most conservative planner's tracking bounds must be
// wide enough that it finds a path whenever one exists; that is a
// configuration obligation, not checked per call.
type MetaPlanner struct {
	space    *environment.Box
	planners []planner.Planner
	logger   golog.Logger
}

// New creates a meta planner over the given collision space and ordered
// planner list.
func New(space *environment.Box, planners []planner.Planner, logger golog.Logger) (*MetaPlanner, error) {
	if len(planners) == 0 {
		return nil, errors.New("meta planner needs at least one planner")
	}
	stateDim := planners[0].Value().Dynamics().StateDim()
	for i, p := range planners[1:] {
		if p.Value().Dynamics().StateDim() != stateDim {
			return nil, errors.Errorf(
				"planner %d state dimension %d does not match %d",
				i+1, p.Value().Dynamics().StateDim(), stateDim)
		}
	}
	for i := 0; i+1 < len(planners); i++ {
		for d := 0; d < dynamics.SpatialDims; d++ {
			if planners[i].Value().TrackingBound(d) < planners[i+1].Value().TrackingBound(d) {
				logger.Warnw("planner list is not ordered conservative to aggressive",
					"index", i, "dimension", d)
			}
		}
	}
	return &MetaPlanner{space: space, planners: planners, logger: logger}, nil
}

// Plan produces one trajectory from start to goal beginning at startTime,
// or reports planning failure. It never returns a partial trajectory.
func (m *MetaPlanner) Plan(
	ctx context.Context,
	start, goal dynamics.State,
	startTime float64,
) (*trajectory.Trajectory, error) {
	for i := len(m.planners) - 1; i >= 0; i-- {
		p := m.planners[i]
		traj, err := p.Plan(ctx, start, goal, startTime)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Debugw("planner failed over full span", "planner", i, "error", err)
			continue
		}
		if !m.trajectoryValid(traj, p.Value()) {
			m.logger.Debugw("planner trajectory failed validity resampling", "planner", i)
			continue
		}
		if i < len(m.planners)-1 {
			traj = m.stitch(ctx, traj, i)
		}
		m.logger.Debugw("meta plan complete",
			"baseline", i, "waypoints", traj.Len(), "horizon", traj.LastTime())
		return traj, nil
	}
	return nil, NewPlanningFailedError()
}

// trajectoryValid re-samples the trajectory in time and checks every
// punctured position against the collision space under the given value
// function as both the incoming and outgoing bound, since no switch occurs
// inside a single-fidelity segment.
func (m *MetaPlanner) trajectoryValid(traj *trajectory.Trajectory, vf value.Function) bool {
	dyn := vf.Dynamics()
	wps := traj.Waypoints()
	for i := 0; i+1 < len(wps); i++ {
		for s := 0; s <= samplesPerSegment; s++ {
			frac := float64(s) / float64(samplesPerSegment)
			tm := wps[i].Time + frac*(wps[i+1].Time-wps[i].Time)
			if !m.space.IsValid(dyn.Puncture(traj.GetState(tm)), vf, vf) {
				return false
			}
		}
	}
	return true
}

// stitch upgrades contiguous windows of the baseline trajectory with
// faster planners, fastest first.
func (m *MetaPlanner) stitch(ctx context.Context, baseline *trajectory.Trajectory, baseIdx int) *trajectory.Trajectory {
	wps := baseline.Waypoints()
	for j := len(m.planners) - 1; j > baseIdx; j-- {
		wps = m.upgradeWith(ctx, wps, m.planners[j])
	}
	traj, err := trajectory.New(wps)
	if err != nil {
		// Stitching preserves the trajectory invariants by construction, so
		// this is a programming error; keep the known-good baseline.
		m.logger.Errorw("stitched trajectory is malformed, keeping baseline", "error", err)
		return baseline
	}
	return traj
}

// upgradeWith sweeps the waypoint list greedily, replacing the longest
// upgradable window starting at each position with a segment from the
// faster planner.
func (m *MetaPlanner) upgradeWith(ctx context.Context, wps []trajectory.Waypoint, fast planner.Planner) []trajectory.Waypoint {
	a := 0
	for a < len(wps)-1 {
		upgraded := false
		for b := len(wps) - 1; b > a; b-- {
			sub, ok := m.tryWindow(ctx, wps, a, b, fast)
			if !ok {
				continue
			}
			delta := sub[len(sub)-1].Time - wps[b].Time
			next := make([]trajectory.Waypoint, 0, a+len(sub)+len(wps)-b-1)
			next = append(next, wps[:a]...)
			next = append(next, sub...)
			for _, wp := range wps[b+1:] {
				wp.Time += delta
				next = append(next, wp)
			}
			a += len(sub) - 1
			wps = next
			upgraded = true
			break
		}
		if !upgraded {
			a++
		}
	}
	return wps
}

// tryWindow attempts to replace baseline waypoints [a, b] with a segment
// from the faster planner. Both seams must pass switching-bound validity in
// both directions, the segment itself must be collision-free under the
// faster bound, and the replacement must actually arrive earlier.
func (m *MetaPlanner) tryWindow(
	ctx context.Context,
	wps []trajectory.Waypoint,
	a, b int,
	fast planner.Planner,
) ([]trajectory.Waypoint, bool) {
	fastVF := fast.Value()
	dyn := fastVF.Dynamics()

	// Nothing to gain if the window already runs under this value function.
	alreadyFast := true
	for k := a; k < b; k++ {
		if wps[k].Value.ID() != fastVF.ID() {
			alreadyFast = false
			break
		}
	}
	if alreadyFast {
		return nil, false
	}

	prevVF := wps[a].Value
	if a > 0 {
		prevVF = wps[a-1].Value
	}
	nextVF := wps[b].Value

	// The vehicle must stay in the safe set through both controller
	// handoffs, so each seam is checked with the switching bound in both
	// directions.
	startPos := dyn.Puncture(wps[a].State)
	endPos := dyn.Puncture(wps[b].State)
	if !m.space.IsValid(startPos, prevVF, fastVF) || !m.space.IsValid(startPos, fastVF, prevVF) {
		return nil, false
	}
	if !m.space.IsValid(endPos, fastVF, nextVF) || !m.space.IsValid(endPos, nextVF, fastVF) {
		return nil, false
	}

	subTraj, err := fast.Plan(ctx, wps[a].State, wps[b].State, wps[a].Time)
	if err != nil {
		return nil, false
	}
	if !m.trajectoryValid(subTraj, fastVF) {
		return nil, false
	}
	if subTraj.LastTime() >= wps[b].Time {
		return nil, false
	}

	sub := subTraj.Waypoints()
	if b < len(wps)-1 {
		// Governance switches back at the closing seam.
		sub[len(sub)-1].Value = nextVF
	}
	return sub, true
}
