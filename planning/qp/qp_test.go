package qp

import (
	"context"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func identityProblem(n int) *Problem {
	p := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		p.SetSym(i, i, 1)
	}
	return &Problem{P: p, Q: mat.NewVecDense(n, nil)}
}

func TestUnconstrainedMinimum(t *testing.T) {
	// minimize 1/2 xᵀx + qᵀx  ->  x = -q
	prob := identityProblem(3)
	prob.Q = mat.NewVecDense(3, []float64{1, -2, 3})

	res, err := NewADMMSolver().Solve(context.Background(), prob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, Success)
	test.That(t, res.X[0], test.ShouldAlmostEqual, -1, 1e-4)
	test.That(t, res.X[1], test.ShouldAlmostEqual, 2, 1e-4)
	test.That(t, res.X[2], test.ShouldAlmostEqual, -3, 1e-4)
}

func TestEqualityConstrained(t *testing.T) {
	// minimize 1/2 (x0² + x1²) s.t. x0 + x1 = 2  ->  x = (1, 1)
	prob := identityProblem(2)
	prob.Aeq = mat.NewDense(1, 2, []float64{1, 1})
	prob.Beq = mat.NewVecDense(1, []float64{2})

	res, err := NewADMMSolver().Solve(context.Background(), prob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, Success)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 1, 1e-3)
	test.That(t, res.X[1], test.ShouldAlmostEqual, 1, 1e-3)
}

func TestInequalityConstrained(t *testing.T) {
	// minimize 1/2 x² s.t. -x <= -1 (x >= 1)  ->  x = 1
	prob := identityProblem(1)
	prob.Ain = mat.NewDense(1, 1, []float64{-1})
	prob.Bin = mat.NewVecDense(1, []float64{-1})

	res, err := NewADMMSolver().Solve(context.Background(), prob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, Success)
	test.That(t, res.X[0], test.ShouldAlmostEqual, 1, 1e-3)
}

func TestInfeasible(t *testing.T) {
	// x >= 1 and x <= 0 cannot hold together.
	prob := identityProblem(1)
	prob.Ain = mat.NewDense(2, 1, []float64{-1, 1})
	prob.Bin = mat.NewVecDense(2, []float64{-1, 0})

	res, err := NewADMMSolver().Solve(context.Background(), prob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, Infeasible)
}

func TestDeterminism(t *testing.T) {
	prob := identityProblem(4)
	prob.Q = mat.NewVecDense(4, []float64{0.3, -1.2, 0.7, 2.2})
	prob.Aeq = mat.NewDense(1, 4, []float64{1, 1, 1, 1})
	prob.Beq = mat.NewVecDense(1, []float64{1})
	prob.Ain = mat.NewDense(1, 4, []float64{1, 0, 0, 0})
	prob.Bin = mat.NewVecDense(1, []float64{0.2})

	first, err := NewADMMSolver().Solve(context.Background(), prob)
	test.That(t, err, test.ShouldBeNil)
	second, err := NewADMMSolver().Solve(context.Background(), prob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.Status, test.ShouldEqual, Success)
	test.That(t, second.X, test.ShouldResemble, first.X)
}

func TestDeadlineAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prob := identityProblem(3)
	prob.Aeq = mat.NewDense(1, 3, []float64{1, 1, 1})
	prob.Beq = mat.NewVecDense(1, []float64{1})

	res, err := NewADMMSolver().Solve(ctx, prob)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, NumericalFail)
}

func TestRegularized(t *testing.T) {
	prob := identityProblem(2)
	reg := prob.Regularized(0.5)
	test.That(t, reg.P.At(0, 0), test.ShouldAlmostEqual, 1.5, 1e-12)
	test.That(t, reg.P.At(1, 1), test.ShouldAlmostEqual, 1.5, 1e-12)
	// The original is untouched.
	test.That(t, prob.P.At(0, 0), test.ShouldAlmostEqual, 1, 1e-12)
}
