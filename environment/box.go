// Package environment provides the bounded planning domain: an axis-aligned
// box populated with spherical obstacles, answering validity queries that
// account for the tracking bounds of the value functions in play. For
// simplicity this does not bother with a kdtree index to speed up collision
// queries.
package environment

import (
	"math"
	"math/rand"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/SylviaHerbert/Tracking/value"
)

const (
	// obstacleTolerance is the numeric tolerance used by IsObstacle on both
	// center distance and radius.
	obstacleTolerance = 1e-8
	// minObstacleRadius floors added radii so a zero-radius point obstacle
	// stays a well-formed sphere.
	minObstacleRadius = 1e-8
)

// Obstacle is a sphere in the planning domain.
type Obstacle struct {
	Center r3.Vector
	Radius float64
}

// Box is a bounded domain with point obstacles. The obstacle set is
// append-only: sensed obstacles are permanent once observed. All methods are
// safe for concurrent use; mutation never exposes a half-updated set to a
// reader.
type Box struct {
	lower r3.Vector
	upper r3.Vector

	mu        sync.RWMutex
	obstacles []Obstacle
}

// NewBox creates a box with the given bounds. The bounds must be ordered
// component-wise.
func NewBox(lower, upper r3.Vector) (*Box, error) {
	var err error
	for d := 0; d < 3; d++ {
		lo, hi := axis(lower, d), axis(upper, d)
		if lo > hi {
			err = multierr.Combine(err, errors.Errorf(
				"axis %d lower bound %f exceeds upper bound %f", d, lo, hi))
		}
	}
	if err != nil {
		return nil, err
	}
	return &Box{lower: lower, upper: upper}, nil
}

// Lower returns the lower corner of the box.
func (b *Box) Lower() r3.Vector { return b.lower }

// Upper returns the upper corner of the box.
func (b *Box) Upper() r3.Vector { return b.upper }

// Contains reports whether the position lies inside the box.
func (b *Box) Contains(position r3.Vector) bool {
	for d := 0; d < 3; d++ {
		if axis(position, d) < axis(b.lower, d) || axis(position, d) > axis(b.upper, d) {
			return false
		}
	}
	return true
}

// IsValid reports whether the vehicle may occupy the position while tracked
// under the outgoing value function, having possibly just switched out of
// the incoming one. The position must clear every domain face and every
// obstacle by the switching tracking bound, approximated as an axis-aligned
// box around the position.
//
// Precondition: the tracking bound must not exceed twice the obstacle
// diameter, or the nearest-corner obstacle check is not conservative.
func (b *Box) IsValid(position r3.Vector, incoming, outgoing value.Function) bool {
	for d := 0; d < 3; d++ {
		bound := outgoing.SwitchingTrackingBound(d, incoming)
		if axis(position, d) < axis(b.lower, d)+bound ||
			axis(position, d) > axis(b.upper, d)-bound {
			return false
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	// NOTE: assuming a rectangular tracking bound.
	for _, obs := range b.obstacles {
		// Check this position directly against the obstacle center.
		if position.Sub(obs.Center).Norm() <= obs.Radius {
			return false
		}

		// Find the corner of the tracking bound closest to this obstacle.
		var corner r3.Vector
		for d := 0; d < 3; d++ {
			bound := outgoing.SwitchingTrackingBound(d, incoming)
			c := axis(position, d) + bound
			if axis(position, d)-axis(obs.Center, d) > 0.0 {
				c = axis(position, d) - bound
			}
			corner = setAxis(corner, d, c)
		}
		if corner.Sub(obs.Center).Norm() <= obs.Radius {
			return false
		}
	}
	return true
}

// SenseObstacles returns every obstacle whose sphere intersects a sphere of
// sensorRadius centered at the position.
func (b *Box) SenseObstacles(position r3.Vector, sensorRadius float64) []Obstacle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sensed []Obstacle
	for _, obs := range b.obstacles {
		if position.Sub(obs.Center).Norm() <= obs.Radius+sensorRadius {
			sensed = append(sensed, obs)
		}
	}
	return sensed
}

// IsObstacle reports whether an obstacle with this center and radius is
// already in the environment, within a small numeric tolerance.
func (b *Box) IsObstacle(position r3.Vector, radius float64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, obs := range b.obstacles {
		if position.Sub(obs.Center).Norm() < obstacleTolerance &&
			math.Abs(radius-obs.Radius) < obstacleTolerance {
			return true
		}
	}
	return false
}

// AddObstacle appends a spherical obstacle. The radius is floored to a small
// positive epsilon.
func (b *Box) AddObstacle(position r3.Vector, radius float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.obstacles = append(b.obstacles, Obstacle{
		Center: position,
		Radius: math.Max(radius, minObstacleRadius),
	})
}

// Obstacles returns a snapshot copy of the obstacle set.
func (b *Box) Obstacles() []Obstacle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Obstacle, len(b.obstacles))
	copy(out, b.obstacles)
	return out
}

// SamplePosition draws a uniform random position inside the box.
func (b *Box) SamplePosition(rng *rand.Rand) r3.Vector {
	var p r3.Vector
	for d := 0; d < 3; d++ {
		lo, hi := axis(b.lower, d), axis(b.upper, d)
		p = setAxis(p, d, lo+rng.Float64()*(hi-lo))
	}
	return p
}

func axis(v r3.Vector, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func setAxis(v r3.Vector, d int, val float64) r3.Vector {
	switch d {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
	return v
}
