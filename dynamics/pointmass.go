package dynamics

import "github.com/golang/geo/r3"

// PointMass state layout, one double integrator per spatial axis:
//   - x(0) -- x
//   - x(1) -- y
//   - x(2) -- z
//   - x(3) -- x_dot
//   - x(4) -- y_dot
//   - x(5) -- z_dot
//
// Controls are commanded accelerations per axis.
const (
	pointMassStateDim   = 6
	pointMassControlDim = 3
)

// PointMass is a decoupled double-integrator model. The analytical
// point-mass value function is defined against this state layout.
type PointMass struct {
	lower Control
	upper Control
}

// NewPointMass creates a point-mass model with the given control bounds.
func NewPointMass(lower, upper Control) (*PointMass, error) {
	if err := checkControlBounds(lower, upper, pointMassControlDim); err != nil {
		return nil, err
	}
	pm := &PointMass{lower: make(Control, pointMassControlDim), upper: make(Control, pointMassControlDim)}
	copy(pm.lower, lower)
	copy(pm.upper, upper)
	return pm, nil
}

// StateDim returns the dimension of the state vector.
func (pm *PointMass) StateDim() int { return pointMassStateDim }

// ControlDim returns the dimension of the control vector.
func (pm *PointMass) ControlDim() int { return pointMassControlDim }

// Evaluate returns the state time derivative.
func (pm *PointMass) Evaluate(x State, u Control) State {
	xdot := make(State, pointMassStateDim)
	for d := 0; d < SpatialDims; d++ {
		xdot[d] = x[SpatialDims+d]
		xdot[SpatialDims+d] = u[d]
	}
	return xdot
}

// OptimalControl minimizes the inner product of the value gradient with the
// state derivative. Dynamics are control-affine, so each channel saturates
// against the sign of the corresponding velocity gradient component.
func (pm *PointMass) OptimalControl(x State, valueGradient []float64) Control {
	u := make(Control, pointMassControlDim)
	for d := 0; d < SpatialDims; d++ {
		if valueGradient[SpatialDims+d] > 0 {
			u[d] = pm.lower[d]
		} else {
			u[d] = pm.upper[d]
		}
	}
	return u
}

// Puncture projects a full state onto its spatial position.
func (pm *PointMass) Puncture(x State) r3.Vector {
	return r3.Vector{X: x[0], Y: x[1], Z: x[2]}
}

// SpatialDimension returns the full-state index of the given spatial
// dimension.
func (pm *PointMass) SpatialDimension(d int) int { return d }

// LiftGeometricTrajectory converts a geometric path into full states with
// finite-difference velocities.
func (pm *PointMass) LiftGeometricTrajectory(positions []r3.Vector, times []float64) []State {
	return liftWithLayout(
		pointMassStateDim,
		func(d int) int { return d },
		func(d int) int { return SpatialDims + d },
		positions, times)
}
