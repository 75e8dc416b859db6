package distmap

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestServiceMergeAndRefresh(t *testing.T) {
	svc, err := NewService(r3.Vector{}, 50, 50, 20, 0.1, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// Before any deltas, everything is free.
	test.That(t, svc.Distance(r3.Vector{X: 2, Y: 2, Z: 1}), test.ShouldBeGreaterThan, 100)

	occ := r3.Vector{X: 2.05, Y: 2.05, Z: 1.05}
	svc.MergeDelta([]r3.Vector{occ})

	// Deltas are invisible until the tick-boundary refresh.
	test.That(t, svc.Distance(occ), test.ShouldBeGreaterThan, 100)

	test.That(t, svc.Refresh(), test.ShouldBeNil)
	test.That(t, svc.Distance(occ), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, svc.Distance(occ.Add(r3.Vector{X: 0.5})), test.ShouldAlmostEqual, 0.5, 1e-9)

	// A refresh with no pending deltas is a no-op.
	test.That(t, svc.Refresh(), test.ShouldBeNil)
}
