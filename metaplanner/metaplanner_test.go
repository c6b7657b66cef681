package metaplanner

import (
	"context"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/environment"
	"github.com/SylviaHerbert/Tracking/planner"
	"github.com/SylviaHerbert/Tracking/trajectory"
	"github.com/SylviaHerbert/Tracking/value"
)

func testBox(t *testing.T) *environment.Box {
	t.Helper()
	space, err := environment.NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})
	test.That(t, err, test.ShouldBeNil)
	return space
}

func testValueFunction(t *testing.T, speed, disturbance float64) value.Function {
	t.Helper()
	pm, err := dynamics.NewPointMass(dynamics.Control{-4, -4, -4}, dynamics.Control{4, 4, 4})
	test.That(t, err, test.ShouldBeNil)
	vf, err := value.NewAnalyticalPointMass(value.AnalyticalParams{
		MaxPlannerSpeed: r3.Vector{X: speed, Y: speed, Z: speed},
		MaxControl:      r3.Vector{X: 4, Y: 4, Z: 4},
		MinControl:      r3.Vector{X: -4, Y: -4, Z: -4},
		VelDisturbance:  r3.Vector{X: disturbance, Y: disturbance, Z: disturbance},
		AccDisturbance:  r3.Vector{X: disturbance, Y: disturbance, Z: disturbance},
		ExpansionVel:    r3.Vector{X: 0.1, Y: 0.1, Z: 0.1},
	}, pm)
	test.That(t, err, test.ShouldBeNil)
	return vf
}

// testPlanners builds a conservative (slow, wide bound) and an aggressive
// (fast, narrow bound) geometric planner over the same box.
func testPlanners(t *testing.T, space *environment.Box) []planner.Planner {
	t.Helper()
	logger := golog.NewTestLogger(t)

	conservative := testValueFunction(t, 0.4, 1.0)
	slow, err := planner.NewGeometricPlanner(conservative, space,
		planner.NewRRTConnect(space, 1), r3.Vector{X: 0.4, Y: 0.4, Z: 0.4}, logger)
	test.That(t, err, test.ShouldBeNil)

	aggressive := testValueFunction(t, 1.2, 0.1)
	fast, err := planner.NewGeometricPlanner(aggressive, space,
		planner.NewRRTConnect(space, 2), r3.Vector{X: 1.2, Y: 1.2, Z: 1.2}, logger)
	test.That(t, err, test.ShouldBeNil)

	return []planner.Planner{slow, fast}
}

func TestNewValidation(t *testing.T) {
	space := testBox(t)
	logger := golog.NewTestLogger(t)

	_, err := New(space, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	m, err := New(space, testPlanners(t, space), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldNotBeNil)
}

func TestPlanEmptyBox(t *testing.T) {
	space := testBox(t)
	planners := testPlanners(t, space)
	m, err := New(space, planners, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	start := dynamics.State{1, 1, 1, 0, 0, 0}
	goal := dynamics.State{9, 9, 9, 0, 0, 0}
	traj, err := m.Plan(context.Background(), start, goal, 0)
	test.That(t, err, test.ShouldBeNil)

	// An unobstructed box connects directly under the aggressive planner.
	aggressive := planners[len(planners)-1].Value()
	wps := traj.Waypoints()
	for i, wp := range wps {
		test.That(t, wp.Value.ID(), test.ShouldEqual, aggressive.ID())
		if i > 0 {
			test.That(t, wp.Time, test.ShouldBeGreaterThan, wps[i-1].Time)
		}
	}
	test.That(t, traj.LastTime(), test.ShouldAlmostEqual, 8.0/1.2, 1e-6)

	dyn := aggressive.Dynamics()
	test.That(t, dyn.Puncture(wps[len(wps)-1].State),
		test.ShouldResemble, r3.Vector{X: 9, Y: 9, Z: 9})
}

func TestPlanRepeatable(t *testing.T) {
	space := testBox(t)
	m, err := New(space, testPlanners(t, space), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	start := dynamics.State{1, 1, 1, 0, 0, 0}
	goal := dynamics.State{9, 1, 1, 0, 0, 0}
	first, err := m.Plan(context.Background(), start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	second, err := m.Plan(context.Background(), start, goal, 0)
	test.That(t, err, test.ShouldBeNil)

	// Direct connections bypass sampling, so replanning the same query
	// reproduces the same trajectory.
	test.That(t, second.Len(), test.ShouldEqual, first.Len())
	test.That(t, second.LastTime(), test.ShouldAlmostEqual, first.LastTime())
	test.That(t, second.Waypoints()[second.Len()-1].State,
		test.ShouldResemble, first.Waypoints()[first.Len()-1].State)
}

func TestPlanBlockedGoal(t *testing.T) {
	space := testBox(t)
	m, err := New(space, testPlanners(t, space), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	space.AddObstacle(r3.Vector{X: 9, Y: 9, Z: 9}, 1.0)
	_, err = m.Plan(context.Background(),
		dynamics.State{1, 1, 1, 0, 0, 0}, dynamics.State{9, 9, 9, 0, 0, 0}, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

// linePlanner emits straight-line trajectories with a midpoint waypoint and
// refuses spans longer than maxSpan, which lets the stitching sweep be driven
// deterministically.
type linePlanner struct {
	vf      value.Function
	speed   float64
	maxSpan float64
}

func (p *linePlanner) Value() value.Function { return p.vf }

func (p *linePlanner) Plan(
	ctx context.Context,
	start, goal dynamics.State,
	startTime float64,
) (*trajectory.Trajectory, error) {
	dyn := p.vf.Dynamics()
	dist := dyn.Puncture(goal).Sub(dyn.Puncture(start)).Norm()
	if p.maxSpan > 0 && dist > p.maxSpan {
		return nil, planner.NewPathNotFoundError()
	}
	mid := make(dynamics.State, len(start))
	for i := range mid {
		mid[i] = 0.5 * (start[i] + goal[i])
	}
	half := 0.5 * dist / p.speed
	return trajectory.New([]trajectory.Waypoint{
		{Time: startTime, State: append(dynamics.State(nil), start...), Value: p.vf},
		{Time: startTime + half, State: mid, Value: p.vf},
		{Time: startTime + 2*half, State: append(dynamics.State(nil), goal...), Value: p.vf},
	})
}

func TestPlanStitchesFasterSegments(t *testing.T) {
	space := testBox(t)
	conservative := testValueFunction(t, 0.5, 1.0)
	aggressive := testValueFunction(t, 2.0, 0.1)

	// The aggressive planner cannot span the full eight-unit query but can
	// replace each four-unit half of the conservative baseline.
	planners := []planner.Planner{
		&linePlanner{vf: conservative, speed: 0.5},
		&linePlanner{vf: aggressive, speed: 2.0, maxSpan: 5},
	}
	m, err := New(space, planners, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	start := dynamics.State{1, 5, 5, 0, 0, 0}
	goal := dynamics.State{9, 5, 5, 0, 0, 0}
	traj, err := m.Plan(context.Background(), start, goal, 0)
	test.That(t, err, test.ShouldBeNil)

	// Both halves got upgraded, shrinking the sixteen second baseline to
	// four seconds of aggressive tracking.
	test.That(t, traj.LastTime(), test.ShouldAlmostEqual, 4.0, 1e-9)
	wps := traj.Waypoints()
	for i, wp := range wps {
		test.That(t, wp.Value.ID(), test.ShouldEqual, aggressive.ID())
		if i > 0 {
			test.That(t, wp.Time, test.ShouldBeGreaterThan, wps[i-1].Time)
		}
	}
	test.That(t, wps[len(wps)-1].State, test.ShouldResemble, goal)
}
