package value

import (
	"encoding/json"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/SylviaHerbert/Tracking/dynamics"
)

// GridData is the on-disk form of a precomputed value function sampled over
// a regular state grid. Values are flattened in row-major order over the
// axes; gradients store one full state-dimension gradient per sample,
// flattened the same way.
type GridData struct {
	AxisMin        []float64 `json:"axis_min"`
	AxisMax        []float64 `json:"axis_max"`
	AxisSamples    []int     `json:"axis_samples"`
	Values         []float64 `json:"values"`
	Gradients      []float64 `json:"gradients"`
	TrackingBounds []float64 `json:"tracking_bounds"`
	PriorityHigh   float64   `json:"priority_high"`
	PriorityLow    float64   `json:"priority_low"`
}

// grid is a value function backed by sampled data, evaluated by multilinear
// interpolation over the 2^n corners of the containing cell. Queries outside
// the sampled hull are clamped to it.
type grid struct {
	id      ID
	dyn     dynamics.Dynamics
	data    GridData
	strides []int
}

// LoadGrid reads a sampled value function from a JSON file.
func LoadGrid(path string, dyn dynamics.Dynamics) (Function, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read value function data %q", path)
	}
	var data GridData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrapf(err, "cannot parse value function data %q", path)
	}
	return NewGrid(data, dyn)
}

// NewGrid creates a grid-backed value function from sampled data.
func NewGrid(data GridData, dyn dynamics.Dynamics) (Function, error) {
	n := dyn.StateDim()
	var err error
	if len(data.AxisMin) != n || len(data.AxisMax) != n || len(data.AxisSamples) != n {
		err = multierr.Combine(err, errors.Errorf(
			"axis descriptions must have dimension %d, got %d/%d/%d",
			n, len(data.AxisMin), len(data.AxisMax), len(data.AxisSamples)))
	} else {
		total := 1
		for d := 0; d < n; d++ {
			if data.AxisSamples[d] < 2 {
				err = multierr.Combine(err, errors.Errorf(
					"axis %d needs at least 2 samples, got %d", d, data.AxisSamples[d]))
			}
			if data.AxisMax[d] <= data.AxisMin[d] {
				err = multierr.Combine(err, errors.Errorf(
					"axis %d range [%f, %f] is not increasing",
					d, data.AxisMin[d], data.AxisMax[d]))
			}
			total *= data.AxisSamples[d]
		}
		if len(data.Values) != total {
			err = multierr.Combine(err, errors.Errorf(
				"expected %d value samples, got %d", total, len(data.Values)))
		}
		if len(data.Gradients) != total*n {
			err = multierr.Combine(err, errors.Errorf(
				"expected %d gradient samples, got %d", total*n, len(data.Gradients)))
		}
	}
	if len(data.TrackingBounds) != dynamics.SpatialDims {
		err = multierr.Combine(err, errors.Errorf(
			"expected %d tracking bounds, got %d",
			dynamics.SpatialDims, len(data.TrackingBounds)))
	} else {
		for d, b := range data.TrackingBounds {
			if b < 0 {
				err = multierr.Combine(err, errors.Errorf(
					"tracking bound for dimension %d is negative: %f", d, b))
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if data.PriorityHigh == 0 {
		data.PriorityHigh = DefaultPriorityHigh
	}
	if data.PriorityLow == 0 {
		data.PriorityLow = DefaultPriorityLow
	}

	strides := make([]int, n)
	stride := 1
	for d := n - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= data.AxisSamples[d]
	}
	return &grid{id: uuid.New(), dyn: dyn, data: data, strides: strides}, nil
}

// ID returns the stable identifier of this value function.
func (g *grid) ID() ID { return g.id }

// Dynamics returns the model this value function was built for.
func (g *grid) Dynamics() dynamics.Dynamics { return g.dyn }

// locate clamps the query to the grid hull and returns, per axis, the lower
// cell index and the fractional offset within the cell.
func (g *grid) locate(x dynamics.State) (cell []int, frac []float64) {
	n := g.dyn.StateDim()
	cell = make([]int, n)
	frac = make([]float64, n)
	for d := 0; d < n; d++ {
		step := (g.data.AxisMax[d] - g.data.AxisMin[d]) / float64(g.data.AxisSamples[d]-1)
		t := (math.Min(math.Max(x[d], g.data.AxisMin[d]), g.data.AxisMax[d]) -
			g.data.AxisMin[d]) / step
		i := int(math.Floor(t))
		if i > g.data.AxisSamples[d]-2 {
			i = g.data.AxisSamples[d] - 2
		}
		cell[d] = i
		frac[d] = t - float64(i)
	}
	return cell, frac
}

// interpolate accumulates the multilinearly weighted samples around x into
// value and, when grad is non-nil, the gradient.
func (g *grid) interpolate(x dynamics.State, grad []float64) float64 {
	n := g.dyn.StateDim()
	cell, frac := g.locate(x)

	var value float64
	for corner := 0; corner < 1<<n; corner++ {
		weight := 1.0
		index := 0
		for d := 0; d < n; d++ {
			if corner&(1<<d) != 0 {
				weight *= frac[d]
				index += (cell[d] + 1) * g.strides[d]
			} else {
				weight *= 1.0 - frac[d]
				index += cell[d] * g.strides[d]
			}
		}
		if weight == 0 {
			continue
		}
		value += weight * g.data.Values[index]
		if grad != nil {
			for d := 0; d < n; d++ {
				grad[d] += weight * g.data.Gradients[index*n+d]
			}
		}
	}
	return value
}

// Value returns the interpolated signed safety margin.
func (g *grid) Value(x dynamics.State) float64 {
	return g.interpolate(x, nil)
}

// Gradient returns the interpolated subgradient.
func (g *grid) Gradient(x dynamics.State) []float64 {
	grad := make([]float64, g.dyn.StateDim())
	g.interpolate(x, grad)
	return grad
}

// OptimalControl delegates to the dynamics' sign rule on the interpolated
// gradient.
func (g *grid) OptimalControl(x dynamics.State) dynamics.Control {
	return g.dyn.OptimalControl(x, g.Gradient(x))
}

// Priority normalizes the interpolated value against the hover-state value,
// the same way the analytical variant does.
func (g *grid) Priority(x dynamics.State) float64 {
	vSafest := g.Value(make(dynamics.State, g.dyn.StateDim()))
	return priorityFromValue(g.Value(x), vSafest, g.data.PriorityHigh, g.data.PriorityLow)
}

// TrackingBound returns the precomputed bound for the given spatial
// dimension.
func (g *grid) TrackingBound(dim int) float64 {
	return g.data.TrackingBounds[dim]
}

// SwitchingTrackingBound falls back to the incoming function's own tracking
// bound, matching the point-mass switching rule.
func (g *grid) SwitchingTrackingBound(dim int, incoming Function) float64 {
	return incoming.TrackingBound(dim)
}
