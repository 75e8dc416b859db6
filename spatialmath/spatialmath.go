// Package spatialmath provides the geometric primitives and exact
// closest-point routines used by the trajectory planner: points, rays, line
// segments, convex hulls (via GJK), and the collision-time computation
// between two linearly moving points.
package spatialmath

import "github.com/golang/geo/r3"

const (
	// Epsilon is the dimensionless tolerance applied after normalization.
	Epsilon = 1e-5

	// EpsilonExact guards comparisons that should only absorb floating
	// point rounding, not modeling error.
	EpsilonExact = 1e-9
)

// VectorsAlmostEqual returns whether the Euclidean distance between two
// vectors is below eps.
func VectorsAlmostEqual(a, b r3.Vector, eps float64) bool {
	return a.Sub(b).Norm() < eps
}

// Float64AlmostEqual returns whether two floats are within eps of each other.
func Float64AlmostEqual(a, b, eps float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

// Clamp returns x limited to [min, max].
func Clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// ScaleZ returns v with its z component multiplied by s. Downwash-aware
// distance metrics are computed by scaling z before measuring.
func ScaleZ(v r3.Vector, s float64) r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z * s}
}
