package value

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/SylviaHerbert/Tracking/dynamics"
)

// Default fractions of the hover-state value used as priority thresholds.
const (
	DefaultPriorityHigh = 0.20
	DefaultPriorityLow  = 0.05
)

// AnalyticalParams configures an analytical point-mass value function. All
// per-axis quantities are expressed in spatial order (x, y, z).
type AnalyticalParams struct {
	// MaxPlannerSpeed is the top speed the paired planner will command per
	// axis.
	MaxPlannerSpeed r3.Vector
	// MaxControl and MinControl bound the tracker's control authority.
	MaxControl r3.Vector
	MinControl r3.Vector
	// VelDisturbance and AccDisturbance bound the velocity and acceleration
	// disturbances acting on the tracker.
	VelDisturbance r3.Vector
	AccDisturbance r3.Vector
	// ExpansionVel symmetrically expands the set boundaries in the position
	// dimensions.
	ExpansionVel r3.Vector
	// PriorityHigh and PriorityLow are the threshold fractions used by
	// Priority. Zero values select the defaults.
	PriorityHigh float64
	PriorityLow  float64
	// UseInsideRule enables the alternative optimal-control rule applied
	// when the relative state is inside the tracking set. Its semantics are
	// documented but unverified against the safety analysis, so it is off by
	// default.
	UseInsideRule bool
}

// analyticalPointMass is the closed-form value function for decoupled
// double-integrator tracking dynamics. Per spatial axis the relative
// position/velocity pair is checked against an acceleration parabola V_A and
// a braking parabola V_B; the axis value is max(V_A, V_B) and the least-safe
// axis dominates.
type analyticalPointMass struct {
	id  ID
	dyn dynamics.Dynamics

	uMax   [dynamics.SpatialDims]float64
	uMin   [dynamics.SpatialDims]float64
	dV     [dynamics.SpatialDims]float64
	dA     [dynamics.SpatialDims]float64
	vRef   [dynamics.SpatialDims]float64
	aMax   [dynamics.SpatialDims]float64
	u2a    [dynamics.SpatialDims]float64
	expand [dynamics.SpatialDims]float64

	priorityHigh  float64
	priorityLow   float64
	useInsideRule bool
}

// NewAnalyticalPointMass creates an analytical point-mass value function for
// the given dynamics. The dynamics must use the point-mass state layout
// (positions 0..2, velocities 3..5). Construction fails unless the net
// acceleration authority aMax - dA is strictly positive on every axis.
func NewAnalyticalPointMass(params AnalyticalParams, dyn dynamics.Dynamics) (Function, error) {
	if dyn.StateDim() != 2*dynamics.SpatialDims || dyn.ControlDim() != dynamics.SpatialDims {
		return nil, errors.Errorf(
			"analytical point-mass value function needs a 6-state, 3-control model, got %d/%d",
			dyn.StateDim(), dyn.ControlDim())
	}
	for d := 0; d < dynamics.SpatialDims; d++ {
		if dyn.SpatialDimension(d) != d {
			return nil, errors.New(
				"analytical point-mass value function needs the point-mass state layout")
		}
	}

	f := &analyticalPointMass{
		id:            uuid.New(),
		dyn:           dyn,
		uMax:          vectorToAxes(params.MaxControl),
		uMin:          vectorToAxes(params.MinControl),
		dV:            vectorToAxes(params.VelDisturbance),
		dA:            vectorToAxes(params.AccDisturbance),
		vRef:          vectorToAxes(params.MaxPlannerSpeed),
		priorityHigh:  params.PriorityHigh,
		priorityLow:   params.PriorityLow,
		useInsideRule: params.UseInsideRule,
	}
	if f.priorityHigh == 0 {
		f.priorityHigh = DefaultPriorityHigh
	}
	if f.priorityLow == 0 {
		f.priorityLow = DefaultPriorityLow
	}

	// Max acceleration from the dynamics' response to max control at hover.
	// NOTE: assumed symmetric even if uMax != -uMin.
	hover := make(dynamics.State, dyn.StateDim())
	xdotMax := dyn.Evaluate(hover, dynamics.Control(f.uMax[:]))

	var err error
	for d := 0; d < dynamics.SpatialDims; d++ {
		acc := xdotMax[dynamics.SpatialDims+d]
		f.aMax[d] = math.Abs(acc)
		f.u2a[d] = acc / (0.5 * (f.uMax[d] - f.uMin[d]))

		den := f.aMax[d] - f.dA[d]
		if den <= 0 {
			err = multierr.Combine(err, errors.Errorf(
				"axis %d has non-positive net acceleration authority %f", d, den))
			continue
		}
		eV := vectorAxis(params.ExpansionVel, d)
		f.expand[d] = eV * (2*f.vRef[d] + 0.5*eV) / den
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ID returns the stable identifier of this value function.
func (f *analyticalPointMass) ID() ID { return f.id }

// Dynamics returns the model this value function was built for.
func (f *analyticalPointMass) Dynamics() dynamics.Dynamics { return f.dyn }

// surfaces evaluates the acceleration surface V_A (positive for positions
// below the convex acceleration parabola) and the braking surface V_B
// (positive for positions above the concave braking parabola) for one axis.
func (f *analyticalPointMass) surfaces(x, v float64, d int) (vA, vB float64) {
	vRef := f.vRef[d]
	den := f.aMax[d] - f.dA[d]
	vA = -x + (0.5*(v-vRef)*(v-vRef)-vRef*vRef*(1.0+f.expand[d]))/den
	vB = x - (-0.5*(v+vRef)*(v+vRef)+vRef*vRef*(1.0+f.expand[d]))/den
	return vA, vB
}

// Value returns the signed safety margin at a relative state.
func (f *analyticalPointMass) Value(x dynamics.State) float64 {
	v := math.Inf(-1)
	for d := 0; d < dynamics.SpatialDims; d++ {
		vA, vB := f.surfaces(x[d], x[dynamics.SpatialDims+d], d)
		v = math.Max(v, math.Max(vA, vB))
	}
	return v
}

// Gradient returns the subgradient of Value, selecting the active surface
// per axis.
func (f *analyticalPointMass) Gradient(x dynamics.State) []float64 {
	grad := make([]float64, f.dyn.StateDim())
	for d := 0; d < dynamics.SpatialDims; d++ {
		v := x[dynamics.SpatialDims+d]
		vA, vB := f.surfaces(x[d], v, d)
		den := f.aMax[d] - f.dA[d]
		if vA > vB {
			grad[d] = -1.0 // on the A side, the gradient points towards -pos
			grad[dynamics.SpatialDims+d] = (v - f.vRef[d]) / den
		} else {
			grad[d] = 1.0 // on the B side, the gradient points towards +pos
			grad[dynamics.SpatialDims+d] = (v + f.vRef[d]) / den
		}
	}
	return grad
}

// OptimalControl returns the safety-optimal corrective control at a relative
// state. Each axis selects between two extreme controls, one producing
// acceleration and one deceleration, determined by the sign of the dynamics'
// response to max control.
func (f *analyticalPointMass) OptimalControl(x dynamics.State) dynamics.Control {
	u := make(dynamics.Control, f.dyn.ControlDim())
	for d := 0; d < dynamics.SpatialDims; d++ {
		pos := x[d]
		vA, vB := f.surfaces(pos, x[dynamics.SpatialDims+d], d)

		uAcc, uDec := f.uMax[d], f.uMin[d]
		if f.u2a[d] <= 0 {
			uAcc, uDec = f.uMin[d], f.uMax[d]
		}

		switch {
		case f.useInsideRule && math.Max(vA, vB) <= 0:
			if vA > vB {
				u[d] = uAcc
			} else {
				u[d] = uDec
			}
		case pos >= 0:
			// If the A-curve can catch you, brake; else accelerate.
			if vA < 0 {
				u[d] = uDec
			} else {
				u[d] = uAcc
			}
		default:
			// If the B-curve can catch you, accelerate; else brake.
			if vB < 0 {
				u[d] = uAcc
			} else {
				u[d] = uDec
			}
		}
	}
	return u
}

// Priority returns how fully this value function's control should be
// trusted at the given relative state.
func (f *analyticalPointMass) Priority(x dynamics.State) float64 {
	v := f.Value(x)

	// The thresholds are fractions of the value at the hover state. The
	// original safety analysis suggests this should scale the maximum value
	// inside the set rather than the minimum; kept as-is pending validation.
	vSafest := f.Value(make(dynamics.State, f.dyn.StateDim()))

	return priorityFromValue(v, vSafest, f.priorityHigh, f.priorityLow)
}

// TrackingBound returns the half-width of the worst-case position deviation
// in the given spatial dimension, the position at the intersection of the
// two parabolas.
func (f *analyticalPointMass) TrackingBound(dim int) float64 {
	vRef := f.vRef[dim]
	return 0.5 * (vRef + f.dV[dim]) * (vRef + f.dV[dim]) * (1.0 + f.expand[dim]) /
		(f.aMax[dim] - f.dA[dim])
}

// SwitchingTrackingBound returns the bound to enforce when switching from
// the incoming value function into this one. For point-mass-to-point-mass
// switches this equals the incoming function's own tracking bound.
func (f *analyticalPointMass) SwitchingTrackingBound(dim int, incoming Function) float64 {
	return incoming.TrackingBound(dim)
}

func vectorAxis(v r3.Vector, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func vectorToAxes(v r3.Vector) [dynamics.SpatialDims]float64 {
	return [dynamics.SpatialDims]float64{v.X, v.Y, v.Z}
}
