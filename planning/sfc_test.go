package planning

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/distmap"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

func TestSFCExpandsInFreeSpace(t *testing.T) {
	param := config.DefaultParam()
	builder := NewSFCBuilder(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 5, Z: 1})
	warm := stationaryTraj(t, r3.Vector{X: 1, Y: 1, Z: 1}, param)

	sfcs := builder.Build(agent, warm, distmap.EmptyMap{Res: 0.1})
	test.That(t, len(sfcs), test.ShouldEqual, param.SegmentCount)

	// With no obstacles every face expands the full step budget.
	want := float64(param.SFCMaxExpansionSteps) * 0.1
	for _, s := range sfcs {
		test.That(t, s.Max.X-1, test.ShouldAlmostEqual, want, 1e-9)
		test.That(t, 1-s.Min.Y, test.ShouldAlmostEqual, want, 1e-9)
		test.That(t, s.Contains(r3.Vector{X: 1, Y: 1, Z: 1}, 1e-9), test.ShouldBeTrue)
	}
}

func TestSFCStopsAtObstacle(t *testing.T) {
	param := config.DefaultParam()
	builder := NewSFCBuilder(param, golog.NewTestLogger(t))

	grid, err := distmap.NewGrid(r3.Vector{}, 60, 60, 30, 0.1)
	test.That(t, err, test.ShouldBeNil)
	// Wall occupying x in [3.0, 3.2].
	grid.AddBox(r3.Vector{X: 3.1, Y: 3, Z: 1.5}, r3.Vector{X: 0.1, Y: 3, Z: 1.5})
	grid.Compute()

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 5, Z: 1})
	warm := stationaryTraj(t, r3.Vector{X: 2, Y: 3, Z: 1.5}, param)

	sfcs := builder.Build(agent, warm, grid)
	for _, s := range sfcs {
		// The +x face must stop short of the wall by at least the radius.
		test.That(t, s.Max.X, test.ShouldBeLessThan, 3.0)
		test.That(t, grid.Distance(r3.Vector{X: s.Max.X, Y: 3, Z: 1.5}), test.ShouldBeGreaterThanOrEqualTo, agent.Radius)
	}
}

func TestSFCAdjacentOverlapContainsSharedPoint(t *testing.T) {
	param := config.DefaultParam()
	builder := NewSFCBuilder(param, golog.NewTestLogger(t))
	gen := NewInitialGenerator(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 10, Z: 1})
	agent.CurrentState.Position = r3.Vector{Z: 1}
	warm, err := gen.Generate(agent, trajectory.Trajectory{}, 0, false)
	test.That(t, err, test.ShouldBeNil)

	sfcs := builder.Build(agent, warm, distmap.EmptyMap{Res: 0.1})
	for k := 1; k < len(sfcs); k++ {
		shared := warm.Segments[k].StartPoint()
		test.That(t, sfcs[k-1].Contains(shared, 1e-9), test.ShouldBeTrue)
		test.That(t, sfcs[k].Contains(shared, 1e-9), test.ShouldBeTrue)
	}
}

func TestSFC2DSkipsZExpansion(t *testing.T) {
	param := config.DefaultParam()
	param.WorldDimension = 2
	builder := NewSFCBuilder(param, golog.NewTestLogger(t))

	agent := testAgent(0, r3.Vector{Z: 1}, r3.Vector{X: 5, Z: 1})
	warm := stationaryTraj(t, r3.Vector{X: 1, Y: 1, Z: 1}, param)

	sfcs := builder.Build(agent, warm, distmap.EmptyMap{Res: 0.1})
	for _, s := range sfcs {
		test.That(t, s.Min.Z, test.ShouldAlmostEqual, 1, 1e-9)
		test.That(t, s.Max.Z, test.ShouldAlmostEqual, 1, 1e-9)
	}
}
