//go:build windows || no_cgo

package qp

import (
	"context"

	"github.com/pkg/errors"
)

// NloptSolver is unavailable without cgo; the ADMM solver is the only
// in-process option on this platform.
type NloptSolver struct {
	MaxEval int
}

// NewNloptSolver returns a stub that fails at solve time.
func NewNloptSolver() *NloptSolver {
	return &NloptSolver{}
}

// Solve implements Solver.
func (s *NloptSolver) Solve(ctx context.Context, prob *Problem) (*Result, error) {
	return nil, errors.New("nlopt is not supported on this platform")
}
