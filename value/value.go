// Package value implements reachability-derived safety value functions
// relating a reference trajectory planner to the tracking vehicle. A value
// function's sign answers "is the vehicle inside its guaranteed tracking
// set", its gradient yields the safety-optimal corrective control, and its
// tracking bounds feed the collision environment's obstacle margins.
package value

import (
	"math"

	"github.com/google/uuid"

	"github.com/SylviaHerbert/Tracking/dynamics"
)

// ID identifies a value function instance for the lifetime of a planning
// session.
type ID = uuid.UUID

// Function is a safety/cost surface for one dynamics model. Implementations
// are immutable after construction and safe for concurrent use.
type Function interface {
	// ID returns the stable identifier of this value function.
	ID() ID

	// Dynamics returns the model this value function was built for.
	Dynamics() dynamics.Dynamics

	// Value returns the signed safety margin at a relative state: strictly
	// negative inside the tracking set, non-negative outside.
	Value(x dynamics.State) float64

	// Gradient returns a subgradient of Value at the given relative state.
	Gradient(x dynamics.State) []float64

	// OptimalControl returns the safety-optimal corrective control at the
	// given relative state.
	OptimalControl(x dynamics.State) dynamics.Control

	// Priority returns a number in [0, 1]: 1 means the optimal control
	// should be applied verbatim, 0 means another authority may take over.
	Priority(x dynamics.State) float64

	// TrackingBound returns the guaranteed worst-case position deviation
	// (half-width, centered at zero) in the given spatial dimension.
	TrackingBound(dim int) float64

	// SwitchingTrackingBound returns the bound to enforce at the instant of
	// switching from the incoming value function into this one.
	SwitchingTrackingBound(dim int, incoming Function) float64
}

// priorityFromValue normalizes a value against the high/low threshold
// fractions of the value at the reference hover state and inverts into
// [0, 1].
func priorityFromValue(v, vSafest, relativeHigh, relativeLow float64) float64 {
	vHigh := relativeHigh * vSafest
	vLow := relativeLow * vSafest
	return 1.0 - math.Min(math.Max(0.0, (v-vLow)/(vHigh-vLow)), 1.0)
}
