// Package config assembles the planning session configuration once at
// startup. Core components never look configuration up themselves; the
// structure is validated here and passed into constructors.
package config

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/SylviaHerbert/Tracking/value"
)

// PlannerConfig parameterizes one (planner, value function) pair. Entries
// in the session's planner list run from most conservative to most
// aggressive.
type PlannerConfig struct {
	MaxPlannerSpeed []float64 `json:"max_planner_speed"`
	MaxControl      []float64 `json:"max_control"`
	MinControl      []float64 `json:"min_control"`
	VelDisturbance  []float64 `json:"vel_disturbance"`
	AccDisturbance  []float64 `json:"acc_disturbance"`
	ExpansionVel    []float64 `json:"expansion_vel"`
	PriorityHigh    float64   `json:"priority_high"`
	PriorityLow     float64   `json:"priority_low"`
	UseInsideRule   bool      `json:"use_inside_rule"`
}

// Config is the complete planning session configuration.
type Config struct {
	StateLower   []float64       `json:"state_lower"`
	StateUpper   []float64       `json:"state_upper"`
	ControlLower []float64       `json:"control_lower"`
	ControlUpper []float64       `json:"control_upper"`
	BoxLower     []float64       `json:"box_lower"`
	BoxUpper     []float64       `json:"box_upper"`
	Planners     []PlannerConfig `json:"planners"`
	SensorRadius float64         `json:"sensor_radius"`
	TickPeriod   float64         `json:"tick_period"`
	RandomSeed   int64           `json:"random_seed"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate aggregates every configuration problem rather than stopping at
// the first.
func (c *Config) Validate() error {
	var err error
	err = multierr.Combine(err, checkBounds("state", c.StateLower, c.StateUpper))
	err = multierr.Combine(err, checkBounds("control", c.ControlLower, c.ControlUpper))
	err = multierr.Combine(err, checkVec3("box_lower", c.BoxLower))
	err = multierr.Combine(err, checkVec3("box_upper", c.BoxUpper))
	if len(c.Planners) == 0 {
		err = multierr.Combine(err, errors.New("at least one planner must be configured"))
	}
	for i, p := range c.Planners {
		err = multierr.Combine(err, p.validate(i))
	}
	if c.SensorRadius < 0 {
		err = multierr.Combine(err, errors.Errorf("sensor radius is negative: %f", c.SensorRadius))
	}
	if c.TickPeriod <= 0 {
		err = multierr.Combine(err, errors.Errorf("tick period must be positive, got %f", c.TickPeriod))
	}
	return err
}

func (p *PlannerConfig) validate(i int) error {
	var err error
	for name, v := range map[string][]float64{
		"max_planner_speed": p.MaxPlannerSpeed,
		"max_control":       p.MaxControl,
		"min_control":       p.MinControl,
		"vel_disturbance":   p.VelDisturbance,
		"acc_disturbance":   p.AccDisturbance,
		"expansion_vel":     p.ExpansionVel,
	} {
		if len(v) != 3 {
			err = multierr.Combine(err, errors.Errorf(
				"planner %d %s must have 3 entries, got %d", i, name, len(v)))
		}
	}
	if p.PriorityHigh < 0 || p.PriorityHigh > 1 || p.PriorityLow < 0 || p.PriorityLow > 1 ||
		(p.PriorityHigh != 0 && p.PriorityLow >= p.PriorityHigh) {
		err = multierr.Combine(err, errors.Errorf(
			"planner %d priority thresholds must satisfy 0 <= low < high <= 1, got %f/%f",
			i, p.PriorityLow, p.PriorityHigh))
	}
	return err
}

// Params converts the planner configuration into analytical value function
// parameters.
func (p *PlannerConfig) Params() value.AnalyticalParams {
	return value.AnalyticalParams{
		MaxPlannerSpeed: ToVector(p.MaxPlannerSpeed),
		MaxControl:      ToVector(p.MaxControl),
		MinControl:      ToVector(p.MinControl),
		VelDisturbance:  ToVector(p.VelDisturbance),
		AccDisturbance:  ToVector(p.AccDisturbance),
		ExpansionVel:    ToVector(p.ExpansionVel),
		PriorityHigh:    p.PriorityHigh,
		PriorityLow:     p.PriorityLow,
		UseInsideRule:   p.UseInsideRule,
	}
}

// ToVector converts a 3-entry slice into an r3.Vector.
func ToVector(v []float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func checkBounds(name string, lower, upper []float64) error {
	var err error
	if len(lower) != len(upper) {
		return errors.Errorf(
			"%s bounds must have equal dimension, got %d and %d", name, len(lower), len(upper))
	}
	if len(lower) == 0 {
		return errors.Errorf("%s bounds are empty", name)
	}
	for i := range lower {
		if lower[i] > upper[i] {
			err = multierr.Combine(err, errors.Errorf(
				"%s bound %d has lower %f above upper %f", name, i, lower[i], upper[i]))
		}
	}
	return err
}

func checkVec3(name string, v []float64) error {
	if len(v) != 3 {
		return errors.Errorf("%s must have 3 entries, got %d", name, len(v))
	}
	return nil
}
