package planner

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/environment"
	"github.com/SylviaHerbert/Tracking/value"
)

func testSetup(t *testing.T) (*environment.Box, value.Function) {
	t.Helper()
	space, err := environment.NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})
	test.That(t, err, test.ShouldBeNil)

	pm, err := dynamics.NewPointMass(dynamics.Control{-4, -4, -4}, dynamics.Control{4, 4, 4})
	test.That(t, err, test.ShouldBeNil)

	vf, err := value.NewAnalyticalPointMass(value.AnalyticalParams{
		MaxPlannerSpeed: r3.Vector{X: 1, Y: 1, Z: 1},
		MaxControl:      r3.Vector{X: 4, Y: 4, Z: 4},
		MinControl:      r3.Vector{X: -4, Y: -4, Z: -4},
		VelDisturbance:  r3.Vector{X: 0.1, Y: 0.1, Z: 0.1},
		AccDisturbance:  r3.Vector{X: 0.1, Y: 0.1, Z: 0.1},
		ExpansionVel:    r3.Vector{X: 0.05, Y: 0.05, Z: 0.05},
	}, pm)
	test.That(t, err, test.ShouldBeNil)
	return space, vf
}

func TestRRTDirectConnect(t *testing.T) {
	space, vf := testSetup(t)
	finder := NewRRTConnect(space, 1)

	isValid := func(p r3.Vector) bool { return space.IsValid(p, vf, vf) }
	path, err := finder.FindPath(context.Background(),
		r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 9, Y: 9, Z: 9}, isValid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldHaveLength, 2)
	test.That(t, path[0], test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, path[1], test.ShouldResemble, r3.Vector{X: 9, Y: 9, Z: 9})
}

func TestRRTAroundObstacle(t *testing.T) {
	space, vf := testSetup(t)
	// Wall the straight line between start and goal.
	space.AddObstacle(r3.Vector{X: 5, Y: 5, Z: 5}, 2.0)
	finder := NewRRTConnect(space, 1)

	isValid := func(p r3.Vector) bool { return space.IsValid(p, vf, vf) }
	start := r3.Vector{X: 1, Y: 1, Z: 1}
	goal := r3.Vector{X: 9, Y: 9, Z: 9}
	path, err := finder.FindPath(context.Background(), start, goal, isValid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldBeGreaterThanOrEqualTo, 2)
	test.That(t, path[0], test.ShouldResemble, start)
	test.That(t, path[len(path)-1], test.ShouldResemble, goal)
	for i := 0; i+1 < len(path); i++ {
		diff := path[i+1].Sub(path[i])
		for s := 0; s <= 20; s++ {
			p := path[i].Add(diff.Mul(float64(s) / 20))
			test.That(t, isValid(p), test.ShouldBeTrue)
		}
	}
}

func TestRRTInvalidEndpoints(t *testing.T) {
	space, vf := testSetup(t)
	space.AddObstacle(r3.Vector{X: 5, Y: 5, Z: 5}, 1.0)
	finder := NewRRTConnect(space, 1)

	isValid := func(p r3.Vector) bool { return space.IsValid(p, vf, vf) }
	_, err := finder.FindPath(context.Background(),
		r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: 9, Y: 9, Z: 9}, isValid)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = finder.FindPath(context.Background(),
		r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 5, Y: 5, Z: 5}, isValid)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGeometricPlannerPlan(t *testing.T) {
	space, vf := testSetup(t)
	logger := golog.NewTestLogger(t)

	gp, err := NewGeometricPlanner(vf, space, NewRRTConnect(space, 1),
		r3.Vector{X: 1, Y: 1, Z: 1}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gp.Value(), test.ShouldEqual, vf)

	start := dynamics.State{1, 1, 1, 0, 0, 0}
	goal := dynamics.State{9, 1, 1, 0, 0, 0}
	traj, err := gp.Plan(context.Background(), start, goal, 2.0)
	test.That(t, err, test.ShouldBeNil)

	// Times start where requested and respect the per-axis speed cap.
	test.That(t, traj.FirstTime(), test.ShouldEqual, 2.0)
	test.That(t, traj.LastTime(), test.ShouldAlmostEqual, 10.0, 1e-6)

	wps := traj.Waypoints()
	for _, wp := range wps {
		test.That(t, wp.Value.ID(), test.ShouldEqual, vf.ID())
	}
	dyn := vf.Dynamics()
	test.That(t, dyn.Puncture(wps[len(wps)-1].State),
		test.ShouldResemble, r3.Vector{X: 9, Y: 1, Z: 1})
}

func TestGeometricPlannerValidation(t *testing.T) {
	space, vf := testSetup(t)
	logger := golog.NewTestLogger(t)

	_, err := NewGeometricPlanner(vf, space, NewRRTConnect(space, 1),
		r3.Vector{X: 0, Y: 1, Z: 1}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
