//go:build !windows && !no_cgo

package qp

import (
	"context"
	"math"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NloptSolver solves the QP with nlopt's SLSQP, as an alternative to the
// in-process ADMM solver. It exists mainly for cross-checking solutions; the
// planner default remains the ADMM solver.
type NloptSolver struct {
	MaxEval int
}

// NewNloptSolver returns an SLSQP-backed solver.
func NewNloptSolver() *NloptSolver {
	return &NloptSolver{MaxEval: 10000}
}

// Solve implements Solver.
func (s *NloptSolver) Solve(ctx context.Context, prob *Problem) (*Result, error) {
	n := prob.Dim()
	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(n))
	if err != nil {
		return nil, errors.Wrap(err, "creating nlopt optimizer")
	}
	defer opt.Destroy()

	evals := 0
	objective := func(x, gradient []float64) float64 {
		evals++
		if evals%ctxCheckEvery == 0 {
			select {
			case <-ctx.Done():
				opt.ForceStop()
			default:
			}
		}
		xv := mat.NewVecDense(n, x)
		var px mat.VecDense
		px.MulVec(prob.P, xv)
		if len(gradient) > 0 {
			for i := range gradient {
				gradient[i] = px.AtVec(i) + prob.Q.AtVec(i)
			}
		}
		return 0.5*mat.Dot(&px, xv) + mat.Dot(prob.Q, xv)
	}
	if err := opt.SetMinObjective(objective); err != nil {
		return nil, err
	}

	addLinear := func(a *mat.Dense, b *mat.VecDense, equality bool) error {
		if a == nil {
			return nil
		}
		m, _ := a.Dims()
		tols := make([]float64, m)
		for i := range tols {
			tols[i] = 1e-8
		}
		fn := func(result, x, gradient []float64) {
			xv := mat.NewVecDense(n, x)
			var ax mat.VecDense
			ax.MulVec(a, xv)
			for i := 0; i < m; i++ {
				result[i] = ax.AtVec(i) - b.AtVec(i)
			}
			if len(gradient) > 0 {
				for i := 0; i < m; i++ {
					for j := 0; j < n; j++ {
						gradient[i*n+j] = a.At(i, j)
					}
				}
			}
		}
		if equality {
			return opt.AddEqualityMConstraint(fn, tols)
		}
		return opt.AddInequalityMConstraint(fn, tols)
	}
	if err := addLinear(prob.Aeq, prob.Beq, true); err != nil {
		return nil, err
	}
	if err := addLinear(prob.Ain, prob.Bin, false); err != nil {
		return nil, err
	}

	if err := opt.SetMaxEval(s.MaxEval); err != nil {
		return nil, err
	}
	if err := opt.SetFtolAbs(1e-10); err != nil {
		return nil, err
	}

	seed := make([]float64, n)
	if len(prob.Warm) == n {
		copy(seed, prob.Warm)
	}
	x, minf, err := opt.Optimize(seed)
	if err != nil {
		// nlopt reports roundoff-limited and forced-stop conditions as
		// errors; both map to a numerical failure for the caller.
		return &Result{Status: NumericalFail, Iterations: evals}, nil
	}
	if math.IsNaN(minf) {
		return &Result{Status: NumericalFail, Iterations: evals}, nil
	}

	// SLSQP can return points that mildly violate constraints when the
	// program is infeasible; classify by residual.
	if viol := maxViolation(prob, x); viol > 1e-4 {
		return &Result{Status: Infeasible, Iterations: evals}, nil
	}
	return &Result{Status: Success, X: x, Objective: minf, Iterations: evals}, nil
}

func maxViolation(prob *Problem, x []float64) float64 {
	n := prob.Dim()
	xv := mat.NewVecDense(n, x)
	viol := 0.0
	if prob.Aeq != nil {
		var ax mat.VecDense
		ax.MulVec(prob.Aeq, xv)
		for i := 0; i < ax.Len(); i++ {
			viol = math.Max(viol, math.Abs(ax.AtVec(i)-prob.Beq.AtVec(i)))
		}
	}
	if prob.Ain != nil {
		var ax mat.VecDense
		ax.MulVec(prob.Ain, xv)
		for i := 0; i < ax.Len(); i++ {
			viol = math.Max(viol, ax.AtVec(i)-prob.Bin.AtVec(i))
		}
	}
	return viol
}
