// Package trajectory defines the time-stamped, fidelity-tagged state
// sequence produced by the meta planner and consumed by the control loop.
// A trajectory is produced wholesale by one planning invocation and never
// mutated; consumers always read a complete, internally consistent product.
package trajectory

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/value"
)

// seamTolerance bounds the state mismatch allowed when concatenating
// trajectories.
const seamTolerance = 1e-6

// Waypoint pairs a timestamped state with the value function authoritative
// over the interval starting at it.
type Waypoint struct {
	Time  float64
	State dynamics.State
	Value value.Function
}

// Trajectory is an ordered waypoint sequence with strictly increasing
// times.
type Trajectory struct {
	waypoints []Waypoint
}

// New creates a trajectory from waypoints, validating time monotonicity and
// state-dimension consistency.
func New(waypoints []Waypoint) (*Trajectory, error) {
	if len(waypoints) == 0 {
		return nil, errors.New("trajectory needs at least one waypoint")
	}
	for i, wp := range waypoints {
		if wp.Value == nil {
			return nil, errors.Errorf("waypoint %d has no value function", i)
		}
		if wp.Time < 0 {
			return nil, errors.Errorf("waypoint %d has negative time %f", i, wp.Time)
		}
		if i == 0 {
			continue
		}
		if wp.Time <= waypoints[i-1].Time {
			return nil, errors.Errorf(
				"waypoint times must strictly increase, got %f after %f",
				wp.Time, waypoints[i-1].Time)
		}
		if len(wp.State) != len(waypoints[i-1].State) {
			return nil, errors.Errorf(
				"waypoint %d state dimension %d does not match %d",
				i, len(wp.State), len(waypoints[i-1].State))
		}
	}
	owned := make([]Waypoint, len(waypoints))
	copy(owned, waypoints)
	return &Trajectory{waypoints: owned}, nil
}

// Len returns the number of waypoints.
func (t *Trajectory) Len() int { return len(t.waypoints) }

// FirstTime returns the timestamp of the first waypoint.
func (t *Trajectory) FirstTime() float64 { return t.waypoints[0].Time }

// LastTime returns the end-of-horizon timestamp. The control loop compares
// against this to decide when to replan.
func (t *Trajectory) LastTime() float64 { return t.waypoints[len(t.waypoints)-1].Time }

// Waypoints returns a copy of the waypoint sequence.
func (t *Trajectory) Waypoints() []Waypoint {
	out := make([]Waypoint, len(t.waypoints))
	copy(out, t.waypoints)
	return out
}

// segment returns the index of the waypoint whose interval covers the given
// time: the last waypoint with Time <= tm, floored to the first.
func (t *Trajectory) segment(tm float64) int {
	i := sort.Search(len(t.waypoints), func(i int) bool {
		return t.waypoints[i].Time > tm
	}) - 1
	if i < 0 {
		i = 0
	}
	return i
}

// GetState returns the piecewise-linearly interpolated state at the given
// time. Behavior outside [FirstTime, LastTime] is undefined; callers must
// compare against LastTime first. Out-of-range queries return the nearest
// endpoint state rather than panicking.
func (t *Trajectory) GetState(tm float64) dynamics.State {
	i := t.segment(tm)
	lo := t.waypoints[i]
	if i == len(t.waypoints)-1 || tm <= lo.Time {
		out := make(dynamics.State, len(lo.State))
		copy(out, lo.State)
		return out
	}
	hi := t.waypoints[i+1]
	frac := (tm - lo.Time) / (hi.Time - lo.Time)
	out := make(dynamics.State, len(lo.State))
	for d := range out {
		out[d] = lo.State[d] + frac*(hi.State[d]-lo.State[d])
	}
	return out
}

// GetValueFunction returns the value function governing the segment covering
// the given time.
func (t *Trajectory) GetValueFunction(tm float64) value.Function {
	return t.waypoints[t.segment(tm)].Value
}

// Positions punctures every waypoint state through the given dynamics.
func (t *Trajectory) Positions(dyn dynamics.Dynamics) []r3.Vector {
	out := make([]r3.Vector, 0, len(t.waypoints))
	for _, wp := range t.waypoints {
		out = append(out, dyn.Puncture(wp.State))
	}
	return out
}

// Concat joins another trajectory onto this one. The other trajectory's
// first waypoint must match this trajectory's last waypoint in state within
// tolerance and carry a strictly later timestamp.
func (t *Trajectory) Concat(other *Trajectory) (*Trajectory, error) {
	last := t.waypoints[len(t.waypoints)-1]
	first := other.waypoints[0]
	if first.Time <= last.Time {
		return nil, errors.Errorf(
			"concatenated trajectory must start after %f, got %f", last.Time, first.Time)
	}
	if len(first.State) != len(last.State) ||
		!floats.EqualApprox(first.State, last.State, seamTolerance) {
		return nil, errors.New("concatenated trajectory must start at the seam state")
	}
	joined := make([]Waypoint, 0, len(t.waypoints)+len(other.waypoints))
	joined = append(joined, t.waypoints...)
	joined = append(joined, other.waypoints...)
	return New(joined)
}
