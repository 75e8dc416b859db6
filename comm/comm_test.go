package comm

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/Geonhee-LEE/lsc-dr-planner/obstacle"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

func wireTraj(t *testing.T) trajectory.Trajectory {
	t.Helper()
	cps := [][]r3.Vector{}
	for s := 0; s < 2; s++ {
		pts := make([]r3.Vector, 6)
		for i := range pts {
			pts[i] = r3.Vector{X: float64(s) + float64(i)*0.1, Y: 0.5, Z: 1}
		}
		cps = append(cps, pts)
	}
	traj, err := trajectory.New(0.4, 0.2, cps)
	test.That(t, err, test.ShouldBeNil)
	return traj
}

func TestAgentStateMsgRoundTrip(t *testing.T) {
	o := obstacle.Obstacle{
		ID:             3,
		Type:           obstacle.Agent,
		Position:       r3.Vector{X: 1, Y: 2, Z: 1},
		Velocity:       r3.Vector{X: -0.5},
		Goal:           r3.Vector{X: 9, Z: 1},
		Radius:         0.15,
		Downwash:       2,
		MaxAcc:         2,
		CollisionAlert: true,
		PrevTraj:       wireTraj(t),
	}

	msg := NewAgentStateMsg(o)
	raw, err := json.Marshal(msg)
	test.That(t, err, test.ShouldBeNil)

	var decoded AgentStateMsg
	test.That(t, json.Unmarshal(raw, &decoded), test.ShouldBeNil)

	back := decoded.Obstacle()
	test.That(t, back.ID, test.ShouldEqual, 3)
	test.That(t, back.Type, test.ShouldEqual, obstacle.Agent)
	test.That(t, back.CollisionAlert, test.ShouldBeTrue)
	test.That(t, back.HasTrajectory(), test.ShouldBeTrue)
	test.That(t, back.PrevTraj.StartTime, test.ShouldAlmostEqual, 0.4, 1e-12)

	// The rebuilt trajectory evaluates identically.
	for _, ti := range []float64{0.4, 0.6, 0.8} {
		test.That(t, back.PrevTraj.PositionAt(ti).Distance(o.PrevTraj.PositionAt(ti)),
			test.ShouldAlmostEqual, 0, 1e-12)
	}
}

func TestAgentStateMsgWithoutTrajectory(t *testing.T) {
	msg := NewAgentStateMsg(obstacle.Obstacle{ID: 1, Type: obstacle.Agent})
	test.That(t, msg.PrevTraj, test.ShouldBeNil)
	test.That(t, msg.Obstacle().HasTrajectory(), test.ShouldBeFalse)
}

func TestLocalBusDelivery(t *testing.T) {
	bus := NewLocalBus()

	var got1, got2 []AgentStateMsg
	test.That(t, bus.Subscribe(1, func(m AgentStateMsg) { got1 = append(got1, m) }), test.ShouldBeNil)
	test.That(t, bus.Subscribe(2, func(m AgentStateMsg) { got2 = append(got2, m) }), test.ShouldBeNil)

	test.That(t, bus.Publish(AgentStateMsg{ID: 1}), test.ShouldBeNil)

	// The sender does not hear its own broadcast.
	test.That(t, len(got1), test.ShouldEqual, 0)
	test.That(t, len(got2), test.ShouldEqual, 1)
	test.That(t, got2[0].ID, test.ShouldEqual, 1)

	test.That(t, bus.Close(), test.ShouldBeNil)
	test.That(t, bus.Publish(AgentStateMsg{ID: 1}), test.ShouldBeNil)
	test.That(t, len(got2), test.ShouldEqual, 1)
}
