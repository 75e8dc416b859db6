package planning

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

func testAgent(id int, start, goal r3.Vector) *Agent {
	a := NewAgent(config.AgentSpec{
		ID:       id,
		Radius:   0.15,
		Downwash: 2.0,
		MaxVel:   config.Vec{X: 1, Y: 1, Z: 1},
		MaxAcc:   config.Vec{X: 2, Y: 2, Z: 2},
		StartAt:  config.Vec{X: start.X, Y: start.Y, Z: start.Z},
		GoalAt:   config.Vec{X: goal.X, Y: goal.Y, Z: goal.Z},
	})
	a.CurrentGoalPoint = goal
	return a
}

func TestInitialFromScratchBoundaryConditions(t *testing.T) {
	param := config.DefaultParam()
	gen := NewInitialGenerator(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 10, Z: 1})
	agent.CurrentState = trajectory.State{
		Position:     r3.Vector{Z: 1},
		Velocity:     r3.Vector{X: 0.5},
		Acceleration: r3.Vector{Y: 0.2},
	}

	warm, err := gen.Generate(agent, trajectory.Trajectory{}, 0, false)
	test.That(t, err, test.ShouldBeNil)

	st := warm.StateAt(0)
	test.That(t, spatialmath.VectorsAlmostEqual(st.Position, agent.CurrentState.Position, 1e-9), test.ShouldBeTrue)
	test.That(t, spatialmath.VectorsAlmostEqual(st.Velocity, agent.CurrentState.Velocity, 1e-6), test.ShouldBeTrue)
	test.That(t, spatialmath.VectorsAlmostEqual(st.Acceleration, agent.CurrentState.Acceleration, 1e-5), test.ShouldBeTrue)

	// Terminal rest.
	end := warm.StateAt(warm.Horizon())
	test.That(t, end.Velocity.Norm(), test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, end.Acceleration.Norm(), test.ShouldAlmostEqual, 0, 1e-6)
}

func TestInitialStayInPlaceWithoutPrevious(t *testing.T) {
	param := config.DefaultParam()
	gen := NewInitialGenerator(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 100, Z: 1})
	agent.CurrentState.Position = r3.Vector{Z: 1}

	warm, err := gen.Generate(agent, trajectory.Trajectory{}, 0, false)
	test.That(t, err, test.ShouldBeNil)

	// At rest, every control point holds the current position.
	for _, seg := range warm.Segments {
		for _, cp := range seg.ControlPoints {
			test.That(t, spatialmath.VectorsAlmostEqual(cp, agent.CurrentState.Position, 1e-12), test.ShouldBeTrue)
		}
	}
}

func TestInitialShiftRetargetsTailWithClamp(t *testing.T) {
	param := config.DefaultParam()
	gen := NewInitialGenerator(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 100, Z: 1})
	agent.CurrentState.Position = r3.Vector{Z: 1}
	agent.CurrentGoalPoint = r3.Vector{X: 100, Z: 1}

	prev, err := gen.Generate(agent, trajectory.Trajectory{}, 0, false)
	test.That(t, err, test.ShouldBeNil)

	// Each shift advances the horizon tail toward the goal by at most
	// v_max * dt.
	maxStep := agent.MaxVel.X * param.SegmentDuration
	warm := prev
	for tick := 1; tick <= 5; tick++ {
		warm, err = gen.Generate(agent, warm, float64(tick)*param.SegmentDuration, false)
		test.That(t, err, test.ShouldBeNil)
		last := warm.Segments[len(warm.Segments)-1]
		disp := last.EndPoint().Sub(last.StartPoint()).Norm()
		test.That(t, disp, test.ShouldBeLessThanOrEqualTo, maxStep+1e-9)
		test.That(t, last.EndPoint().X, test.ShouldBeGreaterThan, 0)
		// Terminal rest on the retargeted tail.
		test.That(t, last.VelocityAt(param.SegmentDuration).Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	}
	// After five shifts the tail front has advanced five clamped steps.
	test.That(t, warm.EndPoint().X, test.ShouldAlmostEqual, 5*maxStep, 1e-9)
}

func TestInitialPrefersShiftedPrevious(t *testing.T) {
	param := config.DefaultParam()
	gen := NewInitialGenerator(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 10, Z: 1})
	prev, err := gen.Generate(agent, trajectory.Trajectory{}, 0, false)
	test.That(t, err, test.ShouldBeNil)

	// Step the agent to where the previous plan says it should be after one
	// segment.
	agent.CurrentState = prev.StateAt(param.SegmentDuration)

	warm, err := gen.Generate(agent, prev, param.SegmentDuration, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, warm.Segments[0].ControlPoints, test.ShouldResemble, prev.Segments[1].ControlPoints)

	// A disturbed agent regenerates from scratch instead.
	agent.CurrentState = trajectory.State{Position: r3.Vector{X: 3, Y: 3, Z: 1}}
	warm, err = gen.Generate(agent, prev, param.SegmentDuration, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.VectorsAlmostEqual(warm.Segments[0].StartPoint(), agent.CurrentState.Position, 1e-9), test.ShouldBeTrue)
}

func TestInitial2DClampsPlane(t *testing.T) {
	param := config.DefaultParam()
	param.WorldDimension = 2
	param.WorldZ2D = 1.5
	gen := NewInitialGenerator(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{}, r3.Vector{X: 5, Z: 9})
	agent.CurrentState.Position = r3.Vector{X: 0, Y: 0, Z: 1.5}
	agent.CurrentGoalPoint = r3.Vector{X: 5, Z: 9}

	warm, err := gen.Generate(agent, trajectory.Trajectory{}, 0, false)
	test.That(t, err, test.ShouldBeNil)
	for _, seg := range warm.Segments {
		for _, cp := range seg.ControlPoints {
			test.That(t, cp.Z, test.ShouldAlmostEqual, 1.5, 1e-9)
		}
	}
}
