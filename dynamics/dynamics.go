// Package dynamics defines the vehicle motion models used by the planning
// and tracking layers. Every model exposes closed-form state derivatives, a
// bang-bang optimal control rule against a value-function gradient, and the
// projection between full states and spatial positions.
package dynamics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// SpatialDims is the number of spatial (position) dimensions shared by all
// models.
const SpatialDims = 3

// State is a full state vector with a fixed, model-specific layout.
type State []float64

// Control is a control vector with a fixed, model-specific layout.
type Control []float64

// Dynamics models the motion of a vehicle. Implementations are immutable
// after construction and safe for concurrent use. Evaluate and
// OptimalControl are total over correctly-dimensioned input; callers are
// responsible for dimensions, which are checked at construction boundaries
// only.
type Dynamics interface {
	// StateDim returns the dimension of the state vector.
	StateDim() int

	// ControlDim returns the dimension of the control vector.
	ControlDim() int

	// Evaluate returns the time derivative of the state under the given
	// control. Deterministic and side-effect free.
	Evaluate(x State, u Control) State

	// OptimalControl returns the box-constrained control extremizing the
	// instantaneous change of a value function whose gradient at x is given.
	// For control-affine models this is a per-channel sign rule on the
	// gradient, independent of x.
	OptimalControl(x State, valueGradient []float64) Control

	// Puncture projects a full state onto its spatial position.
	Puncture(x State) r3.Vector

	// SpatialDimension returns the full-state index of the given spatial
	// dimension.
	SpatialDimension(d int) int

	// LiftGeometricTrajectory converts a purely geometric path with
	// timestamps into a sequence of full states.
	LiftGeometricTrajectory(positions []r3.Vector, times []float64) []State
}

// checkControlBounds validates lower/upper control bound slices against the
// model's control dimension.
func checkControlBounds(lower, upper Control, dim int) error {
	if len(lower) != dim || len(upper) != dim {
		return errors.Errorf(
			"control bounds must have dimension %d, got %d (lower) and %d (upper)",
			dim, len(lower), len(upper))
	}
	var err error
	for i := range lower {
		if lower[i] > upper[i] {
			err = multierr.Combine(err, errors.Errorf(
				"control channel %d lower bound %f exceeds upper bound %f",
				i, lower[i], upper[i]))
		}
	}
	return err
}

// liftWithLayout builds full states from a geometric path using
// finite-difference velocity estimation, writing positions and velocities
// through the given index lookups. The final waypoint gets zero velocity so
// a lifted trajectory comes to rest at its goal.
func liftWithLayout(
	stateDim int,
	posIndex, velIndex func(d int) int,
	positions []r3.Vector,
	times []float64,
) []State {
	states := make([]State, 0, len(positions))
	for i, p := range positions {
		x := make(State, stateDim)
		coords := [SpatialDims]float64{p.X, p.Y, p.Z}
		for d := 0; d < SpatialDims; d++ {
			x[posIndex(d)] = coords[d]
		}
		if i+1 < len(positions) {
			next := positions[i+1]
			dt := times[i+1] - times[i]
			nextCoords := [SpatialDims]float64{next.X, next.Y, next.Z}
			for d := 0; d < SpatialDims; d++ {
				x[velIndex(d)] = (nextCoords[d] - coords[d]) / dt
			}
		}
		states = append(states, x)
	}
	return states
}
