package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestClosestPointsBetweenPointAndLine(t *testing.T) {
	cp := ClosestPointsBetweenPointAndLine(
		r3.Vector{X: 0, Y: 1, Z: 0},
		r3.Vector{X: -5, Y: 0, Z: 0},
		r3.Vector{X: 1, Y: 0, Z: 0},
	)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 1, EpsilonExact)
	test.That(t, cp.P1, test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, VectorsAlmostEqual(cp.P2, r3.Vector{X: 0, Y: 0, Z: 0}, EpsilonExact), test.ShouldBeTrue)
}

func TestClosestPointsBetweenPointAndRay(t *testing.T) {
	// Foot of perpendicular on the ray.
	cp := ClosestPointsBetweenPointAndRay(
		r3.Vector{X: 2, Y: 1, Z: 0},
		r3.Vector{},
		r3.Vector{X: 1, Y: 0, Z: 0},
	)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 1, EpsilonExact)
	test.That(t, VectorsAlmostEqual(cp.P2, r3.Vector{X: 2, Y: 0, Z: 0}, EpsilonExact), test.ShouldBeTrue)

	// Point behind the ray origin clamps to the origin.
	cp = ClosestPointsBetweenPointAndRay(
		r3.Vector{X: -3, Y: 4, Z: 0},
		r3.Vector{},
		r3.Vector{X: 1, Y: 0, Z: 0},
	)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 5, EpsilonExact)
	test.That(t, VectorsAlmostEqual(cp.P2, r3.Vector{}, EpsilonExact), test.ShouldBeTrue)
}

func TestClosestPointsBetweenPointAndLineSegment(t *testing.T) {
	seg := NewLine(r3.Vector{X: -1, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0})

	cases := []struct {
		name     string
		point    r3.Vector
		wantDist float64
		wantP2   r3.Vector
	}{
		{"perpendicular foot inside", r3.Vector{X: 0, Y: 2, Z: 0}, 2, r3.Vector{X: 0, Y: 0, Z: 0}},
		{"clamped to end", r3.Vector{X: 4, Y: 4, Z: 0}, 5, r3.Vector{X: 1, Y: 0, Z: 0}},
		{"clamped to start", r3.Vector{X: -4, Y: 4, Z: 0}, 5, r3.Vector{X: -1, Y: 0, Z: 0}},
		{"on segment", r3.Vector{X: 0.5, Y: 0, Z: 0}, 0, r3.Vector{X: 0.5, Y: 0, Z: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cp := ClosestPointsBetweenPointAndLineSegment(tc.point, seg)
			test.That(t, cp.Dist, test.ShouldAlmostEqual, tc.wantDist, Epsilon)
			test.That(t, VectorsAlmostEqual(cp.P2, tc.wantP2, Epsilon), test.ShouldBeTrue)
		})
	}

	// Zero-length segment degrades to point-point distance.
	cp := ClosestPointsBetweenPointAndLineSegment(
		r3.Vector{X: 3, Y: 0, Z: 0},
		NewLine(r3.Vector{}, r3.Vector{}),
	)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 3, EpsilonExact)
}

func TestClosestPointsBetweenLineSegments(t *testing.T) {
	cases := []struct {
		name     string
		l1, l2   Line
		wantDist float64
	}{
		{
			"skew",
			NewLine(r3.Vector{X: -1, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}),
			NewLine(r3.Vector{X: 0, Y: -1, Z: 1}, r3.Vector{X: 0, Y: 1, Z: 1}),
			1,
		},
		{
			"parallel offset",
			NewLine(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 2, Y: 0, Z: 0}),
			NewLine(r3.Vector{X: 0, Y: 3, Z: 0}, r3.Vector{X: 2, Y: 3, Z: 0}),
			3,
		},
		{
			"parallel disjoint along axis",
			NewLine(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}),
			NewLine(r3.Vector{X: 3, Y: 4, Z: 0}, r3.Vector{X: 5, Y: 4, Z: 0}),
			math.Sqrt(4 + 16),
		},
		{
			"clamped endpoints",
			NewLine(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}),
			NewLine(r3.Vector{X: 3, Y: 1, Z: 0}, r3.Vector{X: 3, Y: 5, Z: 0}),
			math.Sqrt(4 + 1),
		},
		{
			"crossing in plane",
			NewLine(r3.Vector{X: -1, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}),
			NewLine(r3.Vector{X: 0, Y: -1, Z: 0}, r3.Vector{X: 0, Y: 1, Z: 0}),
			0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cp := ClosestPointsBetweenLineSegments(tc.l1, tc.l2)
			test.That(t, cp.Dist, test.ShouldAlmostEqual, tc.wantDist, Epsilon)
			test.That(t, cp.P1.Distance(cp.P2), test.ShouldAlmostEqual, cp.Dist, Epsilon)
		})
	}
}

func TestClosestPointsSwapSymmetry(t *testing.T) {
	l1 := NewLine(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 2, Z: 0.5})
	l2 := NewLine(r3.Vector{X: 2, Y: -1, Z: 1}, r3.Vector{X: 3, Y: 1, Z: 2})

	fwd := ClosestPointsBetweenLineSegments(l1, l2)
	rev := ClosestPointsBetweenLineSegments(l2, l1)
	test.That(t, fwd.Dist, test.ShouldAlmostEqual, rev.Dist, EpsilonExact)
	test.That(t, VectorsAlmostEqual(fwd.P1, rev.P2, Epsilon), test.ShouldBeTrue)
	test.That(t, VectorsAlmostEqual(fwd.P2, rev.P1, Epsilon), test.ShouldBeTrue)
}

func TestClosestPointsBetweenLinePaths(t *testing.T) {
	// Two agents crossing head-on swap positions; relative distance is
	// minimized midway where both sit at the same point.
	l1 := NewLine(r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 10, Y: 0, Z: 1})
	l2 := NewLine(r3.Vector{X: 10, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0, Z: 1})
	cp := ClosestPointsBetweenLinePaths(l1, l2)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 0, Epsilon)
	test.That(t, VectorsAlmostEqual(cp.P1, cp.P2, Epsilon), test.ShouldBeTrue)

	// Parallel paths with a constant lateral offset keep that distance.
	l3 := NewLine(r3.Vector{X: 0, Y: 2, Z: 1}, r3.Vector{X: 10, Y: 2, Z: 1})
	cp = ClosestPointsBetweenLinePaths(l1, l3)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 2, Epsilon)
}

func TestComputeCollisionTime(t *testing.T) {
	horizon := 1.0

	// Head-on pair meeting in the middle: entry when the gap closes to the
	// collision radius. Gap closes at rate 20 from initial 10.
	agent := NewLine(r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 10, Y: 0, Z: 1})
	obs := NewLine(r3.Vector{X: 10, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0, Z: 1})
	ct := ComputeCollisionTime(obs, agent, 0.3, horizon)
	test.That(t, ct, test.ShouldAlmostEqual, (10-0.3)/20, 1e-6)

	// Far apart and parallel: never collide.
	obsFar := NewLine(r3.Vector{X: 0, Y: 50, Z: 1}, r3.Vector{X: 10, Y: 50, Z: 1})
	ct = ComputeCollisionTime(obsFar, agent, 0.3, horizon)
	test.That(t, math.IsInf(ct, 1), test.ShouldBeTrue)

	// Already in collision at t=0.
	obsNear := NewLine(r3.Vector{X: 0.1, Y: 0, Z: 1}, r3.Vector{X: 10.1, Y: 0, Z: 1})
	ct = ComputeCollisionTime(obsNear, agent, 0.3, horizon)
	test.That(t, ct, test.ShouldEqual, 0)

	// Minimum attained at the path end: the chaser closes from 1.0 to 0.2
	// at rate 0.8, crossing r=0.3 at (1.0-0.3)/0.8 of the horizon.
	chaser := NewLine(r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0.8, Y: 0, Z: 1})
	target := NewLine(r3.Vector{X: 1, Y: 0, Z: 1}, r3.Vector{X: 1, Y: 0, Z: 1})
	ct = ComputeCollisionTime(target, chaser, 0.3, horizon)
	test.That(t, ct, test.ShouldAlmostEqual, 0.7/0.8, 1e-6)
}

func TestGJKPointAndConvexHull(t *testing.T) {
	// Unit cube centered at origin.
	cube := []r3.Vector{
		{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
		{-1, 1, 1}, {-1, 1, -1}, {-1, -1, 1}, {-1, -1, -1},
	}

	cases := []struct {
		name     string
		point    r3.Vector
		wantDist float64
	}{
		{"outside face", r3.Vector{X: 3, Y: 0, Z: 0}, 2},
		{"outside edge", r3.Vector{X: 2, Y: 2, Z: 0}, math.Sqrt(2)},
		{"outside vertex", r3.Vector{X: 2, Y: 2, Z: 2}, math.Sqrt(3)},
		{"inside", r3.Vector{X: 0.2, Y: -0.3, Z: 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cp, err := ClosestPointsBetweenPointAndConvexHull(tc.point, cube)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, cp.Dist, test.ShouldAlmostEqual, tc.wantDist, 1e-4)
			if tc.wantDist > 0 {
				test.That(t, cp.P1.Distance(cp.P2), test.ShouldAlmostEqual, tc.wantDist, 1e-4)
			}
		})
	}
}

func TestGJKConvexHulls(t *testing.T) {
	cubeAt := func(center r3.Vector) []r3.Vector {
		verts := make([]r3.Vector, 0, 8)
		for _, sx := range []float64{-1, 1} {
			for _, sy := range []float64{-1, 1} {
				for _, sz := range []float64{-1, 1} {
					verts = append(verts, center.Add(r3.Vector{X: sx, Y: sy, Z: sz}))
				}
			}
		}
		return verts
	}

	cp, err := ClosestPointsBetweenConvexHulls(cubeAt(r3.Vector{}), cubeAt(r3.Vector{X: 5}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 3, 1e-4)

	cp, err = ClosestPointsBetweenConvexHulls(cubeAt(r3.Vector{}), cubeAt(r3.Vector{X: 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cp.Dist, test.ShouldAlmostEqual, 0, 1e-6)

	_, err = ClosestPointsBetweenConvexHulls(nil, cubeAt(r3.Vector{}))
	test.That(t, err, test.ShouldNotBeNil)
}
