package dynamics

import (
	"math"

	"github.com/golang/geo/r3"
)

// Gravity is the gravitational acceleration used by the near-hover model.
const Gravity = 9.81

// NearHoverQuadNoYaw state layout:
//   - x(0) -- x
//   - x(1) -- x_dot
//   - x(2) -- y
//   - x(3) -- y_dot
//   - x(4) -- z
//   - x(5) -- z_dot
//
// Control layout:
//   - u(0) -- pitch
//   - u(1) -- roll
//   - u(2) -- thrust
const (
	nearHoverStateDim   = 6
	nearHoverControlDim = 3
)

// NearHoverQuadNoYaw models a quadrotor linearized about hover with yaw
// held fixed.
type NearHoverQuadNoYaw struct {
	lower Control
	upper Control
}

// NewNearHoverQuadNoYaw creates a near-hover quadrotor model with the given
// control bounds.
func NewNearHoverQuadNoYaw(lower, upper Control) (*NearHoverQuadNoYaw, error) {
	if err := checkControlBounds(lower, upper, nearHoverControlDim); err != nil {
		return nil, err
	}
	nh := &NearHoverQuadNoYaw{lower: make(Control, nearHoverControlDim), upper: make(Control, nearHoverControlDim)}
	copy(nh.lower, lower)
	copy(nh.upper, upper)
	return nh, nil
}

// StateDim returns the dimension of the state vector.
func (nh *NearHoverQuadNoYaw) StateDim() int { return nearHoverStateDim }

// ControlDim returns the dimension of the control vector.
func (nh *NearHoverQuadNoYaw) ControlDim() int { return nearHoverControlDim }

// Evaluate returns the state time derivative.
func (nh *NearHoverQuadNoYaw) Evaluate(x State, u Control) State {
	xdot := make(State, nearHoverStateDim)
	xdot[0] = x[1]
	xdot[1] = Gravity * math.Tan(u[0])
	xdot[2] = x[3]
	xdot[3] = Gravity * math.Tan(u[1])
	xdot[4] = x[5]
	xdot[5] = u[2] - Gravity
	return xdot
}

// OptimalControl saturates each channel against the sign of the velocity
// gradient component it drives. tan is monotone over the pitch/roll range,
// so the rule is the same for all three channels.
func (nh *NearHoverQuadNoYaw) OptimalControl(x State, valueGradient []float64) Control {
	u := make(Control, nearHoverControlDim)
	for d := 0; d < SpatialDims; d++ {
		if valueGradient[2*d+1] > 0 {
			u[d] = nh.lower[d]
		} else {
			u[d] = nh.upper[d]
		}
	}
	return u
}

// Puncture projects a full state onto its spatial position.
func (nh *NearHoverQuadNoYaw) Puncture(x State) r3.Vector {
	return r3.Vector{X: x[0], Y: x[2], Z: x[4]}
}

// SpatialDimension returns the full-state index of the given spatial
// dimension.
func (nh *NearHoverQuadNoYaw) SpatialDimension(d int) int { return 2 * d }

// LiftGeometricTrajectory converts a geometric path into full states with
// finite-difference velocities.
func (nh *NearHoverQuadNoYaw) LiftGeometricTrajectory(positions []r3.Vector, times []float64) []State {
	return liftWithLayout(
		nearHoverStateDim,
		func(d int) int { return 2 * d },
		func(d int) int { return 2*d + 1 },
		positions, times)
}
