// Package planner produces single-fidelity trajectory segments between two
// states. A planner pairs a geometric path search capability with the value
// function that bounds how far the tracking vehicle may deviate from the
// paths it emits.
package planner

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/trajectory"
	"github.com/SylviaHerbert/Tracking/value"
)

// Planner plans trajectories between two states, starting at the given
// timestamp.
type Planner interface {
	Plan(ctx context.Context, start, goal dynamics.State, startTime float64) (*trajectory.Trajectory, error)

	// Value returns the value function governing trajectories this planner
	// emits.
	Value() value.Function
}

// PathFinder is the opaque geometric search capability: given two points
// and a collision predicate, produce a feasible geometric path or fail.
type PathFinder interface {
	FindPath(ctx context.Context, start, goal r3.Vector, isValid func(r3.Vector) bool) ([]r3.Vector, error)
}
