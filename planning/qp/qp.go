// Package qp defines the quadratic-program interface between the trajectory
// planner and its solver, plus an in-process dense solver. The planner
// assembles problems of the form
//
//	minimize   1/2 xᵀPx + qᵀx
//	subject to Aeq x = beq
//	           Ain x <= bin
//
// and only consumes the narrow Solver interface, so tests can run against a
// pure in-process implementation.
package qp

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Status is the solver outcome. Infeasible and NumericalFail are recovered
// differently by the caller and must be distinguished.
type Status int

// Solver outcomes.
const (
	Success Status = iota
	Infeasible
	NumericalFail
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Infeasible:
		return "infeasible"
	case NumericalFail:
		return "numerical_fail"
	default:
		return "unknown"
	}
}

// Problem is a dense convex QP. P must be positive semidefinite; the
// assembler guarantees positive definiteness by construction (smoothness
// Gramians plus a warm-start ridge).
type Problem struct {
	P *mat.SymDense
	Q *mat.VecDense

	// Aeq x = Beq; may be nil when there are no equality constraints.
	Aeq *mat.Dense
	Beq *mat.VecDense

	// Ain x <= Bin; may be nil when there are no inequality constraints.
	Ain *mat.Dense
	Bin *mat.VecDense

	// Warm is an optional starting point with the same dimension as P.
	Warm []float64
}

// Dim returns the number of decision variables.
func (p *Problem) Dim() int {
	n, _ := p.P.Dims()
	return n
}

// Regularized returns a copy of the problem with eps added to the Hessian
// diagonal, the retry used after a numerical failure.
func (p *Problem) Regularized(eps float64) *Problem {
	n := p.Dim()
	reg := mat.NewSymDense(n, nil)
	reg.CopySym(p.P)
	for i := 0; i < n; i++ {
		reg.SetSym(i, i, reg.At(i, i)+eps)
	}
	out := *p
	out.P = reg
	return &out
}

// Result is a solve outcome. X is only meaningful when Status is Success.
type Result struct {
	Status     Status
	X          []float64
	Objective  float64
	Iterations int
}

// Solver solves QPs. Implementations must be deterministic: identical
// problems produce identical results. A solver that overruns the context
// deadline aborts and reports NumericalFail.
type Solver interface {
	Solve(ctx context.Context, prob *Problem) (*Result, error)
}
