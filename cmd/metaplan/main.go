// Command metaplan runs the meta planner once in a synthetic environment
// and logs the resulting trajectory. Pass -config to plan from a session
// configuration file instead of the built-in demo parameters.
package main

import (
	"context"
	"flag"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"github.com/SylviaHerbert/Tracking/config"
	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/environment"
	"github.com/SylviaHerbert/Tracking/metaplanner"
	"github.com/SylviaHerbert/Tracking/planner"
	"github.com/SylviaHerbert/Tracking/tracker"
	"github.com/SylviaHerbert/Tracking/value"
)

var logger = golog.NewDevelopmentLogger("metaplan")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	configPath := flags.String("config", "", "session configuration file")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	cfg := demoConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	space, err := environment.NewBox(config.ToVector(cfg.BoxLower), config.ToVector(cfg.BoxUpper))
	if err != nil {
		return err
	}
	space.AddObstacle(r3.Vector{X: 5, Y: 5, Z: 5}, 1.0)

	dyn, err := dynamics.NewPointMass(cfg.ControlLower, cfg.ControlUpper)
	if err != nil {
		return err
	}

	planners := make([]planner.Planner, 0, len(cfg.Planners))
	for i, pc := range cfg.Planners {
		vf, err := value.NewAnalyticalPointMass(pc.Params(), dyn)
		if err != nil {
			return err
		}
		gp, err := planner.NewGeometricPlanner(
			vf, space,
			planner.NewRRTConnect(space, cfg.RandomSeed+int64(i)),
			config.ToVector(pc.MaxPlannerSpeed), logger)
		if err != nil {
			return err
		}
		planners = append(planners, gp)
		logger.Infow("planner ready",
			"index", i,
			"tracking_bound_x", vf.TrackingBound(0),
			"tracking_bound_y", vf.TrackingBound(1),
			"tracking_bound_z", vf.TrackingBound(2))
	}

	meta, err := metaplanner.New(space, planners, logger)
	if err != nil {
		return err
	}

	start := dynamics.State{1, 1, 1, 0, 0, 0}
	goal := dynamics.State{9, 9, 9, 0, 0, 0}

	clk := clock.NewMock()
	tr, err := tracker.New(dyn, space, meta, start, goal, clk, logger)
	if err != nil {
		return err
	}
	if _, _, err := tr.Tick(ctx); err != nil {
		return err
	}

	traj := tr.Trajectory()
	for _, wp := range traj.Waypoints() {
		logger.Infow("waypoint",
			"time", wp.Time,
			"position", dyn.Puncture(wp.State),
			"value_function", wp.Value.ID())
	}
	logger.Infow("planning complete", "horizon", traj.LastTime())

	return simulate(ctx, cfg, tr, dyn, space, clk, logger)
}

// simulate walks the vehicle along the planned trajectory on a mock clock,
// feeding planned states back as perfect estimates, sensing obstacles around
// the vehicle, and ticking the tracker each period.
func simulate(
	ctx context.Context,
	cfg *config.Config,
	tr *tracker.Tracker,
	dyn dynamics.Dynamics,
	space *environment.Box,
	clk *clock.Mock,
	logger golog.Logger,
) error {
	period := time.Duration(cfg.TickPeriod * float64(time.Second))
	elapsed := 0.0
	ticks := 0
	for elapsed+cfg.TickPeriod < tr.Trajectory().LastTime() {
		clk.Add(period)
		elapsed += cfg.TickPeriod

		planned := tr.Trajectory().GetState(math.Min(elapsed, tr.Trajectory().LastTime()))
		if err := tr.UpdateState(planned); err != nil {
			return err
		}
		for _, obs := range space.SenseObstacles(dyn.Puncture(planned), cfg.SensorRadius) {
			if err := tr.ObserveObstacle(ctx, obs.Center, obs.Radius); err != nil {
				return err
			}
		}

		u, priority, err := tr.Tick(ctx)
		if err != nil {
			return err
		}
		ticks++
		if ticks%100 == 0 {
			logger.Infow("tick",
				"time", elapsed,
				"position", dyn.Puncture(planned),
				"control", u,
				"priority", priority)
		}
	}
	logger.Infow("simulation complete", "ticks", ticks, "obstacles", len(space.Obstacles()))
	return nil
}

// demoConfig is a small two-planner session in a 10m cube: a conservative
// slow planner with generous disturbance margins and an aggressive fast one.
func demoConfig() *config.Config {
	return &config.Config{
		StateLower:   []float64{0, 0, 0, -2, -2, -2},
		StateUpper:   []float64{10, 10, 10, 2, 2, 2},
		ControlLower: []float64{-4, -4, -4},
		ControlUpper: []float64{4, 4, 4},
		BoxLower:     []float64{0, 0, 0},
		BoxUpper:     []float64{10, 10, 10},
		Planners: []config.PlannerConfig{
			{
				MaxPlannerSpeed: []float64{0.4, 0.4, 0.4},
				MaxControl:      []float64{4, 4, 4},
				MinControl:      []float64{-4, -4, -4},
				VelDisturbance:  []float64{1.0, 1.0, 1.0},
				AccDisturbance:  []float64{1.0, 1.0, 1.0},
				ExpansionVel:    []float64{0.1, 0.1, 0.1},
			},
			{
				MaxPlannerSpeed: []float64{1.2, 1.2, 1.2},
				MaxControl:      []float64{4, 4, 4},
				MinControl:      []float64{-4, -4, -4},
				VelDisturbance:  []float64{0.1, 0.1, 0.1},
				AccDisturbance:  []float64{0.1, 0.1, 0.1},
				ExpansionVel:    []float64{0.05, 0.05, 0.05},
			},
		},
		SensorRadius: 2.0,
		TickPeriod:   0.02,
		RandomSeed:   1,
	}
}
