// Package trajectory implements the Bernstein-basis piecewise polynomial
// trajectory representation used by the planner: evaluation, derivatives,
// control-point access, and the basis matrices needed to assemble objective
// and constraint terms on control points.
package trajectory

import "math"

// Binomial returns the binomial coefficient C(n, k).
func Binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	res := 1.0
	for i := 0; i < k; i++ {
		res = res * float64(n-i) / float64(i+1)
	}
	return res
}

// BernsteinBasis evaluates the i-th Bernstein basis polynomial of the given
// degree at u in [0, 1].
func BernsteinBasis(degree, i int, u float64) float64 {
	if i < 0 || i > degree {
		return 0
	}
	return Binomial(degree, i) * math.Pow(u, float64(i)) * math.Pow(1-u, float64(degree-i))
}

// DifferenceMatrix returns the (n)x(n+1) linear operator taking the control
// points of a degree-n Bernstein polynomial over a segment of the given
// duration to the control points of its derivative (degree n-1):
// d_i = n/duration * (p_{i+1} - p_i).
func DifferenceMatrix(degree int, duration float64) [][]float64 {
	scale := float64(degree) / duration
	rows := make([][]float64, degree)
	for i := 0; i < degree; i++ {
		row := make([]float64, degree+1)
		row[i] = -scale
		row[i+1] = scale
		rows[i] = row
	}
	return rows
}

// BasisGramian returns the (n+1)x(n+1) matrix of inner products
// ∫0^duration b_{n,i}(t/duration) b_{n,j}(t/duration) dt, which is
// duration * C(n,i)C(n,j) / (C(2n,i+j) * (2n+1)).
func BasisGramian(degree int, duration float64) [][]float64 {
	n := degree
	g := make([][]float64, n+1)
	for i := 0; i <= n; i++ {
		g[i] = make([]float64, n+1)
		for j := 0; j <= n; j++ {
			g[i][j] = duration * Binomial(n, i) * Binomial(n, j) /
				(Binomial(2*n, i+j) * float64(2*n+1))
		}
	}
	return g
}

// deCasteljau evaluates a Bernstein polynomial with scalar coefficients at
// u in [0, 1]. It is numerically stable and fully deterministic.
func deCasteljau(coeffs []float64, u float64) float64 {
	work := make([]float64, len(coeffs))
	copy(work, coeffs)
	for r := 1; r < len(coeffs); r++ {
		for i := 0; i < len(coeffs)-r; i++ {
			work[i] = (1-u)*work[i] + u*work[i+1]
		}
	}
	return work[0]
}
