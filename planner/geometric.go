package planner

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/environment"
	"github.com/SylviaHerbert/Tracking/trajectory"
	"github.com/SylviaHerbert/Tracking/value"
)

// minSegmentDuration keeps waypoint times strictly increasing even across
// near-coincident path points.
const minSegmentDuration = 1e-3

// GeometricPlanner adapts a position-space PathFinder into a full-state
// Planner: it punctures the endpoints, searches under the bound-aware
// collision predicate of its value function, stamps times from the per-axis
// max planner speed, and lifts the result through the dynamics.
type GeometricPlanner struct {
	value    value.Function
	space    *environment.Box
	finder   PathFinder
	maxSpeed r3.Vector
	logger   golog.Logger
}

// NewGeometricPlanner creates a planner producing trajectories governed by
// the given value function. maxSpeed must be strictly positive per axis and
// should match the MaxPlannerSpeed the value function was constructed with.
func NewGeometricPlanner(
	vf value.Function,
	space *environment.Box,
	finder PathFinder,
	maxSpeed r3.Vector,
	logger golog.Logger,
) (*GeometricPlanner, error) {
	if maxSpeed.X <= 0 || maxSpeed.Y <= 0 || maxSpeed.Z <= 0 {
		return nil, errors.Errorf("max planner speed must be positive per axis, got %v", maxSpeed)
	}
	return &GeometricPlanner{
		value:    vf,
		space:    space,
		finder:   finder,
		maxSpeed: maxSpeed,
		logger:   logger,
	}, nil
}

// Value returns the value function governing trajectories this planner
// emits.
func (gp *GeometricPlanner) Value() value.Function { return gp.value }

// Plan produces a trajectory from start to goal beginning at startTime. The
// geometric search runs under this planner's own tracking bound as both the
// incoming and outgoing function, since no controller switch happens inside
// a single-fidelity segment.
func (gp *GeometricPlanner) Plan(
	ctx context.Context,
	start, goal dynamics.State,
	startTime float64,
) (*trajectory.Trajectory, error) {
	dyn := gp.value.Dynamics()
	startPos := dyn.Puncture(start)
	goalPos := dyn.Puncture(goal)

	isValid := func(p r3.Vector) bool {
		return gp.space.IsValid(p, gp.value, gp.value)
	}
	path, err := gp.finder.FindPath(ctx, startPos, goalPos, isValid)
	if err != nil {
		return nil, errors.Wrap(err, "geometric search failed")
	}

	times := gp.stampTimes(path, startTime)
	states := dyn.LiftGeometricTrajectory(path, times)

	waypoints := make([]trajectory.Waypoint, 0, len(states))
	for i, x := range states {
		waypoints = append(waypoints, trajectory.Waypoint{
			Time:  times[i],
			State: x,
			Value: gp.value,
		})
	}
	return trajectory.New(waypoints)
}

// stampTimes assigns waypoint times so no axis exceeds its max planner
// speed along any segment.
func (gp *GeometricPlanner) stampTimes(path []r3.Vector, startTime float64) []float64 {
	times := make([]float64, len(path))
	times[0] = startTime
	for i := 1; i < len(path); i++ {
		diff := path[i].Sub(path[i-1])
		dt := math.Max(math.Abs(diff.X)/gp.maxSpeed.X,
			math.Max(math.Abs(diff.Y)/gp.maxSpeed.Y, math.Abs(diff.Z)/gp.maxSpeed.Z))
		times[i] = times[i-1] + math.Max(dt, minSegmentDuration)
	}
	return times
}
