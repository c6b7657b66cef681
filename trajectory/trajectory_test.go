package trajectory

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.viam.com/test"

	"github.com/SylviaHerbert/Tracking/dynamics"
	"github.com/SylviaHerbert/Tracking/value"
)

// taggedFunc is a stub value function; trajectories only need identity from
// their tags.
type taggedFunc struct{ id value.ID }

func newTaggedFunc() *taggedFunc { return &taggedFunc{id: uuid.New()} }

func (f *taggedFunc) ID() value.ID                                   { return f.id }
func (f *taggedFunc) Dynamics() dynamics.Dynamics                    { return nil }
func (f *taggedFunc) Value(dynamics.State) float64                   { return 0 }
func (f *taggedFunc) Gradient(dynamics.State) []float64              { return nil }
func (f *taggedFunc) OptimalControl(dynamics.State) dynamics.Control { return nil }
func (f *taggedFunc) Priority(dynamics.State) float64                { return 0 }
func (f *taggedFunc) TrackingBound(int) float64                      { return 0 }
func (f *taggedFunc) SwitchingTrackingBound(d int, incoming value.Function) float64 {
	return incoming.TrackingBound(d)
}

func waypointLine(vf value.Function) []Waypoint {
	return []Waypoint{
		{Time: 0, State: dynamics.State{0, 0, 0, 1, 0, 0}, Value: vf},
		{Time: 1, State: dynamics.State{1, 0, 0, 1, 0, 0}, Value: vf},
		{Time: 3, State: dynamics.State{3, 0, 0, 0, 0, 0}, Value: vf},
	}
}

func TestNewValidation(t *testing.T) {
	vf := newTaggedFunc()

	_, err := New(nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New([]Waypoint{{Time: 0, State: dynamics.State{0}, Value: nil}})
	test.That(t, err, test.ShouldNotBeNil)

	wps := waypointLine(vf)
	wps[2].Time = 1 // not strictly increasing
	_, err = New(wps)
	test.That(t, err, test.ShouldNotBeNil)

	wps = waypointLine(vf)
	wps[1].State = dynamics.State{1, 0, 0}
	_, err = New(wps)
	test.That(t, err, test.ShouldNotBeNil)

	traj, err := New(waypointLine(vf))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Len(), test.ShouldEqual, 3)
	test.That(t, traj.FirstTime(), test.ShouldEqual, 0.0)
	test.That(t, traj.LastTime(), test.ShouldEqual, 3.0)
}

func TestGetState(t *testing.T) {
	vf := newTaggedFunc()
	traj, err := New(waypointLine(vf))
	test.That(t, err, test.ShouldBeNil)

	// Exactly on a waypoint.
	test.That(t, traj.GetState(1)[0], test.ShouldAlmostEqual, 1)

	// Interpolated between waypoints 1 and 2.
	x := traj.GetState(2)
	test.That(t, x[0], test.ShouldAlmostEqual, 2)
	test.That(t, x[3], test.ShouldAlmostEqual, 0.5)

	// Endpoint behavior.
	test.That(t, traj.GetState(3)[0], test.ShouldAlmostEqual, 3)
	test.That(t, traj.GetState(-1)[0], test.ShouldAlmostEqual, 0)
}

func TestGetValueFunction(t *testing.T) {
	slow := newTaggedFunc()
	fast := newTaggedFunc()
	traj, err := New([]Waypoint{
		{Time: 0, State: dynamics.State{0, 0, 0, 0, 0, 0}, Value: slow},
		{Time: 1, State: dynamics.State{1, 0, 0, 0, 0, 0}, Value: fast},
		{Time: 2, State: dynamics.State{2, 0, 0, 0, 0, 0}, Value: slow},
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, traj.GetValueFunction(0.5).ID(), test.ShouldEqual, slow.ID())
	test.That(t, traj.GetValueFunction(1).ID(), test.ShouldEqual, fast.ID())
	test.That(t, traj.GetValueFunction(1.5).ID(), test.ShouldEqual, fast.ID())
	test.That(t, traj.GetValueFunction(2).ID(), test.ShouldEqual, slow.ID())
}

func TestPositions(t *testing.T) {
	vf := newTaggedFunc()
	traj, err := New(waypointLine(vf))
	test.That(t, err, test.ShouldBeNil)

	pm, err := dynamics.NewPointMass(dynamics.Control{-1, -1, -1}, dynamics.Control{1, 1, 1})
	test.That(t, err, test.ShouldBeNil)

	positions := traj.Positions(pm)
	test.That(t, positions, test.ShouldHaveLength, 3)
	test.That(t, positions[2], test.ShouldResemble, r3.Vector{X: 3, Y: 0, Z: 0})
}

func TestConcat(t *testing.T) {
	vf := newTaggedFunc()
	first, err := New(waypointLine(vf))
	test.That(t, err, test.ShouldBeNil)

	second, err := New([]Waypoint{
		{Time: 4, State: dynamics.State{3, 0, 0, 0, 0, 0}, Value: vf},
		{Time: 5, State: dynamics.State{4, 0, 0, 0, 0, 0}, Value: vf},
	})
	test.That(t, err, test.ShouldBeNil)

	joined, err := first.Concat(second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joined.Len(), test.ShouldEqual, 5)
	test.That(t, joined.LastTime(), test.ShouldEqual, 5.0)

	// A seam in the past is rejected.
	early, err := New([]Waypoint{
		{Time: 2, State: dynamics.State{3, 0, 0, 0, 0, 0}, Value: vf},
		{Time: 5, State: dynamics.State{4, 0, 0, 0, 0, 0}, Value: vf},
	})
	test.That(t, err, test.ShouldBeNil)
	_, err = first.Concat(early)
	test.That(t, err, test.ShouldNotBeNil)

	// A seam away from the final state is rejected.
	jump, err := New([]Waypoint{
		{Time: 4, State: dynamics.State{9, 0, 0, 0, 0, 0}, Value: vf},
		{Time: 5, State: dynamics.State{4, 0, 0, 0, 0, 0}, Value: vf},
	})
	test.That(t, err, test.ShouldBeNil)
	_, err = first.Concat(jump)
	test.That(t, err, test.ShouldNotBeNil)
}
