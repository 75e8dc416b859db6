package obstacle

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

func TestPredictedLine(t *testing.T) {
	o := Obstacle{
		ID:       7,
		Type:     Dynamic,
		Position: r3.Vector{X: 1, Y: 0, Z: 1},
		Velocity: r3.Vector{X: 2, Y: 0, Z: 0},
	}
	line := o.PredictedLine(0.5, 0.2)
	test.That(t, spatialmath.VectorsAlmostEqual(line.Start, r3.Vector{X: 2, Y: 0, Z: 1}, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.VectorsAlmostEqual(line.End, r3.Vector{X: 2.4, Y: 0, Z: 1}, 1e-12), test.ShouldBeTrue)
}

func TestSegmentLineUsesTrajectoryWhenAvailable(t *testing.T) {
	cps := [][]r3.Vector{}
	for s := 0; s < 3; s++ {
		pts := make([]r3.Vector, 6)
		for i := range pts {
			pts[i] = r3.Vector{X: float64(s)}
		}
		cps = append(cps, pts)
	}
	traj, err := trajectory.New(0, 0.2, cps)
	test.That(t, err, test.ShouldBeNil)

	o := Obstacle{ID: 1, Type: Agent, PrevTraj: traj, Velocity: r3.Vector{X: 100}}
	line := o.SegmentLine(1, 0.2, 0)
	// Segment 1 of the published trajectory holds X=1; the (large) velocity
	// must not leak into the prediction.
	test.That(t, line.Start.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, line.End.X, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestCacheSnapshot(t *testing.T) {
	c := NewCache()
	c.Update([]Obstacle{
		{ID: 3, Type: Agent},
		{ID: 1, Type: Dynamic},
		{ID: 2, Type: Agent},
	})

	snap := c.Snapshot(2)
	test.That(t, len(snap), test.ShouldEqual, 2)
	test.That(t, snap[0].ID, test.ShouldEqual, 1)
	test.That(t, snap[1].ID, test.ShouldEqual, 3)
}

func TestCacheKeepsLastKnownTrajectory(t *testing.T) {
	traj, err := trajectory.New(0, 0.2, [][]r3.Vector{{
		{}, {}, {}, {}, {}, {},
	}})
	test.That(t, err, test.ShouldBeNil)

	c := NewCache()
	c.Update([]Obstacle{{ID: 1, Type: Agent, PrevTraj: traj}})
	// A later report without a trajectory keeps the stale one.
	c.Update([]Obstacle{{ID: 1, Type: Agent, Position: r3.Vector{X: 5}}})

	snap := c.Snapshot(0)
	test.That(t, len(snap), test.ShouldEqual, 1)
	test.That(t, snap[0].HasTrajectory(), test.ShouldBeTrue)
	test.That(t, snap[0].Position.X, test.ShouldAlmostEqual, 5, 1e-12)
}
