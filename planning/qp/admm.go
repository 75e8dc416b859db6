package qp

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ADMM solver parameters. The defaults are tuned for the small dense
// problems the planner produces (60 to 90 variables with five degree-5
// segments).
const (
	defaultRho      = 0.1
	defaultSigma    = 1e-6
	defaultAlpha    = 1.6
	defaultEpsAbs   = 1e-7
	defaultEpsRel   = 1e-7
	defaultMaxIters = 8000
	ctxCheckEvery   = 64
	infBound        = 1e20
)

// ADMMSolver is a dense operator-splitting QP solver in the style of OSQP.
// It is fully deterministic: no randomization, fixed iteration order, and a
// single Cholesky factorization per solve.
type ADMMSolver struct {
	Rho      float64
	Sigma    float64
	Alpha    float64
	EpsAbs   float64
	EpsRel   float64
	MaxIters int
}

// NewADMMSolver returns a solver with default parameters.
func NewADMMSolver() *ADMMSolver {
	return &ADMMSolver{
		Rho:      defaultRho,
		Sigma:    defaultSigma,
		Alpha:    defaultAlpha,
		EpsAbs:   defaultEpsAbs,
		EpsRel:   defaultEpsRel,
		MaxIters: defaultMaxIters,
	}
}

// stackConstraints merges equalities and inequalities into l <= Ax <= u.
func stackConstraints(prob *Problem) (a *mat.Dense, l, u []float64) {
	n := prob.Dim()
	var rows int
	if prob.Aeq != nil {
		r, _ := prob.Aeq.Dims()
		rows += r
	}
	if prob.Ain != nil {
		r, _ := prob.Ain.Dims()
		rows += r
	}
	if rows == 0 {
		return nil, nil, nil
	}

	a = mat.NewDense(rows, n, nil)
	l = make([]float64, rows)
	u = make([]float64, rows)
	row := 0
	if prob.Aeq != nil {
		r, _ := prob.Aeq.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < n; j++ {
				a.Set(row, j, prob.Aeq.At(i, j))
			}
			l[row] = prob.Beq.AtVec(i)
			u[row] = prob.Beq.AtVec(i)
			row++
		}
	}
	if prob.Ain != nil {
		r, _ := prob.Ain.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < n; j++ {
				a.Set(row, j, prob.Ain.At(i, j))
			}
			l[row] = -infBound
			u[row] = prob.Bin.AtVec(i)
			row++
		}
	}
	return a, l, u
}

// Solve implements Solver.
func (s *ADMMSolver) Solve(ctx context.Context, prob *Problem) (*Result, error) {
	n := prob.Dim()
	if n == 0 {
		return nil, errors.New("empty problem")
	}

	a, l, u := stackConstraints(prob)
	if a == nil {
		return s.solveUnconstrained(prob)
	}
	m, _ := a.Dims()

	// KKT matrix P + sigma*I + rho*AᵀA, factorized once.
	kkt := mat.NewSymDense(n, nil)
	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			kkt.SetSym(i, j, prob.P.At(i, j)+s.Rho*ata.At(i, j))
		}
		kkt.SetSym(i, i, kkt.At(i, i)+s.Sigma)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(kkt); !ok {
		return &Result{Status: NumericalFail}, nil
	}

	x := mat.NewVecDense(n, nil)
	if len(prob.Warm) == n {
		copy(x.RawVector().Data, prob.Warm)
	}
	z := mat.NewVecDense(m, nil)
	y := mat.NewVecDense(m, nil)
	var ax mat.VecDense
	ax.MulVec(a, x)
	for i := 0; i < m; i++ {
		z.SetVec(i, clamp(ax.AtVec(i), l[i], u[i]))
	}

	rhs := mat.NewVecDense(n, nil)
	xNew := mat.NewVecDense(n, nil)
	var aty, tmpM mat.VecDense

	iter := 0
	for ; iter < s.MaxIters; iter++ {
		if iter%ctxCheckEvery == 0 {
			select {
			case <-ctx.Done():
				return &Result{Status: NumericalFail, Iterations: iter}, nil
			default:
			}
		}

		// rhs = sigma*x - q + Aᵀ(rho*z - y)
		tmpM.Reset()
		tmpM.ScaleVec(s.Rho, z)
		tmpM.SubVec(&tmpM, y)
		aty.Reset()
		aty.MulVec(a.T(), &tmpM)
		for i := 0; i < n; i++ {
			rhs.SetVec(i, s.Sigma*x.AtVec(i)-prob.Q.AtVec(i)+aty.AtVec(i))
		}
		if err := chol.SolveVecTo(xNew, rhs); err != nil {
			return &Result{Status: NumericalFail, Iterations: iter}, nil
		}

		// Relaxed update of the constraint-space iterate.
		ax.MulVec(a, xNew)
		for i := 0; i < m; i++ {
			axr := s.Alpha*ax.AtVec(i) + (1-s.Alpha)*z.AtVec(i)
			zNew := clamp(axr+y.AtVec(i)/s.Rho, l[i], u[i])
			y.SetVec(i, y.AtVec(i)+s.Rho*(axr-zNew))
			z.SetVec(i, zNew)
		}
		x.CopyVec(xNew)

		if iter%10 == 0 {
			if s.converged(prob, a, x, z, y) {
				obj := s.objective(prob, x)
				out := make([]float64, n)
				copy(out, x.RawVector().Data)
				return &Result{Status: Success, X: out, Objective: obj, Iterations: iter}, nil
			}
		}
	}

	// Did not converge: distinguish an infeasible program (persistent
	// constraint violation) from numerical trouble.
	ax.MulVec(a, x)
	maxViol := 0.0
	for i := 0; i < m; i++ {
		v := math.Max(l[i]-ax.AtVec(i), ax.AtVec(i)-u[i])
		if v > maxViol {
			maxViol = v
		}
	}
	if maxViol > 1e-4 {
		return &Result{Status: Infeasible, Iterations: iter}, nil
	}
	return &Result{Status: NumericalFail, Iterations: iter}, nil
}

func (s *ADMMSolver) solveUnconstrained(prob *Problem) (*Result, error) {
	n := prob.Dim()
	var chol mat.Cholesky
	if ok := chol.Factorize(prob.P); !ok {
		return &Result{Status: NumericalFail}, nil
	}
	neg := mat.NewVecDense(n, nil)
	neg.ScaleVec(-1, prob.Q)
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, neg); err != nil {
		return &Result{Status: NumericalFail}, nil
	}
	out := make([]float64, n)
	copy(out, x.RawVector().Data)
	return &Result{Status: Success, X: out, Objective: s.objective(prob, x)}, nil
}

func (s *ADMMSolver) converged(prob *Problem, a *mat.Dense, x, z, y *mat.VecDense) bool {
	var ax, px, aty mat.VecDense
	ax.MulVec(a, x)
	px.MulVec(prob.P, x)
	aty.MulVec(a.T(), y)

	primRes, primScale := 0.0, 0.0
	for i := 0; i < z.Len(); i++ {
		primRes = math.Max(primRes, math.Abs(ax.AtVec(i)-z.AtVec(i)))
		primScale = math.Max(primScale, math.Max(math.Abs(ax.AtVec(i)), math.Abs(z.AtVec(i))))
	}
	dualRes, dualScale := 0.0, 0.0
	for i := 0; i < x.Len(); i++ {
		r := px.AtVec(i) + prob.Q.AtVec(i) + aty.AtVec(i)
		dualRes = math.Max(dualRes, math.Abs(r))
		dualScale = math.Max(dualScale,
			math.Max(math.Abs(px.AtVec(i)), math.Max(math.Abs(prob.Q.AtVec(i)), math.Abs(aty.AtVec(i)))))
	}

	epsPrim := s.EpsAbs + s.EpsRel*primScale
	epsDual := s.EpsAbs + s.EpsRel*dualScale
	return primRes <= epsPrim && dualRes <= epsDual
}

func (s *ADMMSolver) objective(prob *Problem, x *mat.VecDense) float64 {
	var px mat.VecDense
	px.MulVec(prob.P, x)
	return 0.5*mat.Dot(&px, x) + mat.Dot(prob.Q, x)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
