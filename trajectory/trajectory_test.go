package trajectory

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
)

func TestBinomial(t *testing.T) {
	test.That(t, Binomial(5, 0), test.ShouldEqual, 1)
	test.That(t, Binomial(5, 2), test.ShouldEqual, 10)
	test.That(t, Binomial(5, 5), test.ShouldEqual, 1)
	test.That(t, Binomial(10, 4), test.ShouldEqual, 210)
	test.That(t, Binomial(5, 6), test.ShouldEqual, 0)
}

func TestBernsteinPartitionOfUnity(t *testing.T) {
	for _, u := range []float64{0, 0.25, 0.5, 0.9, 1} {
		sum := 0.0
		for i := 0; i <= 5; i++ {
			sum += BernsteinBasis(5, i, u)
		}
		test.That(t, sum, test.ShouldAlmostEqual, 1, 1e-12)
	}
}

func TestSegmentEndpointInterpolation(t *testing.T) {
	seg := Segment{
		ControlPoints: []r3.Vector{
			{0, 0, 0}, {1, 0, 0}, {2, 1, 0}, {3, 1, 0}, {4, 0, 0}, {5, 0, 0},
		},
		Duration: 0.2,
	}
	test.That(t, spatialmath.VectorsAlmostEqual(seg.PositionAt(0), seg.StartPoint(), 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.VectorsAlmostEqual(seg.PositionAt(0.2), seg.EndPoint(), 1e-12), test.ShouldBeTrue)
}

func TestSegmentDerivative(t *testing.T) {
	// Linear motion: position from 0 to 1 m over 0.2 s has constant
	// velocity 5 m/s and zero acceleration.
	pts := make([]r3.Vector, 6)
	for i := range pts {
		pts[i] = r3.Vector{X: float64(i) / 5}
	}
	seg := Segment{ControlPoints: pts, Duration: 0.2}
	for _, tt := range []float64{0, 0.05, 0.1, 0.2} {
		vel := seg.VelocityAt(tt)
		test.That(t, vel.X, test.ShouldAlmostEqual, 5, 1e-9)
		acc := seg.AccelerationAt(tt)
		test.That(t, acc.Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func makeTestTrajectory(t *testing.T) Trajectory {
	t.Helper()
	cps := [][]r3.Vector{}
	prevEnd := r3.Vector{}
	for s := 0; s < 5; s++ {
		pts := make([]r3.Vector, 6)
		for i := range pts {
			pts[i] = prevEnd.Add(r3.Vector{X: float64(i) * 0.05, Y: float64(i*i) * 0.01})
		}
		prevEnd = pts[5]
		cps = append(cps, pts)
	}
	traj, err := New(0, 0.2, cps)
	test.That(t, err, test.ShouldBeNil)
	return traj
}

func TestTrajectoryEvaluation(t *testing.T) {
	traj := makeTestTrajectory(t)
	test.That(t, traj.Horizon(), test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, traj.Degree(), test.ShouldEqual, 5)

	// Continuity of position across a segment boundary.
	before := traj.PositionAt(0.2 - 1e-9)
	after := traj.PositionAt(0.2 + 1e-9)
	test.That(t, spatialmath.VectorsAlmostEqual(before, after, 1e-6), test.ShouldBeTrue)

	// Times beyond the horizon clamp to the final state.
	test.That(t, spatialmath.VectorsAlmostEqual(traj.PositionAt(100), traj.EndPoint(), 1e-12), test.ShouldBeTrue)
	// Times before the start clamp to the initial state.
	test.That(t, spatialmath.VectorsAlmostEqual(traj.PositionAt(-1), traj.Segments[0].StartPoint(), 1e-12), test.ShouldBeTrue)
}

func TestTrajectoryShiftForward(t *testing.T) {
	traj := makeTestTrajectory(t)
	shifted := traj.ShiftForward(0.2)

	test.That(t, len(shifted.Segments), test.ShouldEqual, len(traj.Segments))
	test.That(t, shifted.StartTime, test.ShouldAlmostEqual, 0.2, 1e-12)

	// Old segment 1 is the new segment 0.
	test.That(t, shifted.Segments[0].ControlPoints, test.ShouldResemble, traj.Segments[1].ControlPoints)

	// The extrapolated final segment holds the terminal position.
	last := shifted.Segments[len(shifted.Segments)-1]
	for _, p := range last.ControlPoints {
		test.That(t, spatialmath.VectorsAlmostEqual(p, traj.EndPoint(), 1e-12), test.ShouldBeTrue)
	}
}

func TestNewTrajectoryValidation(t *testing.T) {
	_, err := New(0, 0.2, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(0, 0.2, [][]r3.Vector{
		{{0, 0, 0}, {1, 0, 0}},
		{{1, 0, 0}},
	})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBasisGramianAgainstConstantPolynomial(t *testing.T) {
	// For the constant polynomial with all coefficients one, the quadratic
	// form over the Gramian must equal the segment duration.
	g := BasisGramian(5, 0.2)
	sum := 0.0
	for i := range g {
		for j := range g[i] {
			sum += g[i][j]
		}
	}
	test.That(t, sum, test.ShouldAlmostEqual, 0.2, 1e-12)
}

func TestDifferenceMatrix(t *testing.T) {
	d := DifferenceMatrix(5, 0.2)
	test.That(t, len(d), test.ShouldEqual, 5)
	test.That(t, len(d[0]), test.ShouldEqual, 6)
	// Applying to linearly increasing coefficients yields the constant
	// slope n/duration * step.
	coeffs := []float64{0, 1, 2, 3, 4, 5}
	for i := range d {
		v := 0.0
		for j := range d[i] {
			v += d[i][j] * coeffs[j]
		}
		test.That(t, v, test.ShouldAlmostEqual, 25, 1e-12)
	}
}
