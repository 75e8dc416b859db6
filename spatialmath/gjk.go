package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// gjkMaxIterations bounds the GJK refinement loop. Distance queries on the
// small hulls used here converge in well under ten iterations.
const gjkMaxIterations = 64

// supportVertex is one vertex of the simplex in the Minkowski difference,
// remembering which vertex of each body produced it so witnesses can be
// reconstructed from barycentric weights.
type supportVertex struct {
	m r3.Vector // a - b
	a r3.Vector
	b r3.Vector
}

// support returns the vertex of hull furthest along dir.
func support(hull []r3.Vector, dir r3.Vector) r3.Vector {
	best := hull[0]
	bestDot := best.Dot(dir)
	for _, v := range hull[1:] {
		if d := v.Dot(dir); d > bestDot {
			best = v
			bestDot = d
		}
	}
	return best
}

// ClosestPointsBetweenPointAndConvexHull returns the witness pair between a
// point and the convex hull of the given vertices.
func ClosestPointsBetweenPointAndConvexHull(point r3.Vector, convexHull []r3.Vector) (ClosestPoints, error) {
	return ClosestPointsBetweenConvexHulls([]r3.Vector{point}, convexHull)
}

// ClosestPointsBetweenConvexHulls runs the GJK distance algorithm on the
// convex hulls of two vertex sets and returns actual witness points on each
// hull. Overlapping hulls report distance zero with coincident witnesses.
func ClosestPointsBetweenConvexHulls(hull1, hull2 []r3.Vector) (ClosestPoints, error) {
	if len(hull1) == 0 || len(hull2) == 0 {
		return ClosestPoints{}, errors.New("convex hull must have at least one vertex")
	}

	newSupport := func(dir r3.Vector) supportVertex {
		a := support(hull1, dir)
		b := support(hull2, dir.Mul(-1))
		return supportVertex{m: a.Sub(b), a: a, b: b}
	}

	simplex := []supportVertex{newSupport(r3.Vector{X: 1})}
	v := simplex[0].m

	for i := 0; i < gjkMaxIterations; i++ {
		vNorm2 := v.Norm2()
		if vNorm2 < EpsilonExact*EpsilonExact {
			// Origin contained: the hulls intersect.
			witness := witnessFromSimplex(simplex)
			return ClosestPoints{P1: witness.P1, P2: witness.P2, Dist: 0}, nil
		}

		w := newSupport(v.Mul(-1))
		// Termination: the support point no longer improves on the current
		// closest estimate.
		if vNorm2-v.Dot(w.m) <= Epsilon*Epsilon*vNorm2 {
			break
		}
		if simplexContains(simplex, w.m) {
			break
		}

		simplex = append(simplex, w)
		var ok bool
		simplex, v, ok = reduceSimplex(simplex)
		if !ok {
			return ClosestPoints{}, errors.New("gjk simplex reduction failed")
		}
	}

	witness := witnessFromSimplex(simplex)
	witness.Dist = v.Norm()
	return witness, nil
}

func simplexContains(simplex []supportVertex, m r3.Vector) bool {
	for _, s := range simplex {
		if VectorsAlmostEqual(s.m, m, EpsilonExact) {
			return true
		}
	}
	return false
}

// witnessFromSimplex rebuilds the body-space witness points from the
// barycentric weights of the closest point on the current simplex.
func witnessFromSimplex(simplex []supportVertex) ClosestPoints {
	weights := barycentricClosest(simplex)
	var p1, p2 r3.Vector
	for i, s := range simplex {
		p1 = p1.Add(s.a.Mul(weights[i]))
		p2 = p2.Add(s.b.Mul(weights[i]))
	}
	return ClosestPoints{P1: p1, P2: p2, Dist: p1.Distance(p2)}
}

// reduceSimplex finds the closest point to the origin on the simplex,
// discards vertices that do not support it, and returns the new estimate.
func reduceSimplex(simplex []supportVertex) ([]supportVertex, r3.Vector, bool) {
	weights := barycentricClosest(simplex)

	kept := simplex[:0]
	var v r3.Vector
	var keptWeights []float64
	for i, w := range weights {
		if w > EpsilonExact {
			kept = append(kept, simplex[i])
			keptWeights = append(keptWeights, w)
		}
	}
	if len(kept) == 0 {
		return simplex, r3.Vector{}, false
	}
	for i, s := range kept {
		v = v.Add(s.m.Mul(keptWeights[i]))
	}
	return kept, v, true
}

// barycentricClosest returns convex weights over the simplex vertices whose
// weighted sum is the point of the simplex closest to the origin.
func barycentricClosest(simplex []supportVertex) []float64 {
	switch len(simplex) {
	case 1:
		return []float64{1}
	case 2:
		return closestOnSegment(simplex[0].m, simplex[1].m)
	case 3:
		return closestOnTriangle(simplex[0].m, simplex[1].m, simplex[2].m)
	case 4:
		return closestOnTetrahedron(simplex)
	default:
		return nil
	}
}

func closestOnSegment(a, b r3.Vector) []float64 {
	ab := b.Sub(a)
	denom := ab.Norm2()
	if denom < EpsilonExact*EpsilonExact {
		return []float64{1, 0}
	}
	t := Clamp(-a.Dot(ab)/denom, 0, 1)
	return []float64{1 - t, t}
}

// closestOnTriangle is the standard closest-point-on-triangle region test,
// specialized to query point at the origin.
func closestOnTriangle(a, b, c r3.Vector) []float64 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := a.Mul(-1)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return []float64{1, 0, 0}
	}

	bp := b.Mul(-1)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return []float64{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		t := d1 / (d1 - d3)
		return []float64{1 - t, t, 0}
	}

	cp := c.Mul(-1)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return []float64{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		t := d2 / (d2 - d6)
		return []float64{1 - t, 0, t}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		t := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return []float64{0, 1 - t, t}
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return []float64{1 - v - w, v, w}
}

func closestOnTetrahedron(simplex []supportVertex) []float64 {
	a, b, c, d := simplex[0].m, simplex[1].m, simplex[2].m, simplex[3].m

	if pointInTetrahedron(a, b, c, d) {
		// Origin inside: weights solve the barycentric linear system.
		if w, ok := tetrahedronBarycentric(a, b, c, d); ok {
			return w
		}
	}

	// Check each face and keep the closest.
	type faceResult struct {
		weights [4]float64
		dist2   float64
	}
	best := faceResult{dist2: math.Inf(1)}
	faces := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	verts := [4]r3.Vector{a, b, c, d}
	for _, f := range faces {
		w3 := closestOnTriangle(verts[f[0]], verts[f[1]], verts[f[2]])
		var p r3.Vector
		for i, idx := range f {
			p = p.Add(verts[idx].Mul(w3[i]))
		}
		if d2 := p.Norm2(); d2 < best.dist2 {
			best.dist2 = d2
			best.weights = [4]float64{}
			for i, idx := range f {
				best.weights[idx] = w3[i]
			}
		}
	}
	return best.weights[:]
}

func pointInTetrahedron(a, b, c, d r3.Vector) bool {
	sameSide := func(p1, p2, p3, p4 r3.Vector) bool {
		normal := p2.Sub(p1).Cross(p3.Sub(p1))
		dot4 := normal.Dot(p4.Sub(p1))
		dotO := normal.Dot(p1.Mul(-1))
		return dot4*dotO >= 0
	}
	return sameSide(a, b, c, d) && sameSide(b, c, d, a) && sameSide(c, d, a, b) && sameSide(d, a, b, c)
}

func tetrahedronBarycentric(a, b, c, d r3.Vector) ([]float64, bool) {
	// Solve a*w0 + b*w1 + c*w2 + d*w3 = 0 with weights summing to one,
	// i.e. (a-d)w0 + (b-d)w1 + (c-d)w2 = -d via Cramer's rule.
	c1 := a.Sub(d)
	c2 := b.Sub(d)
	c3 := c.Sub(d)
	rhs := d.Mul(-1)

	det := c1.Dot(c2.Cross(c3))
	if math.Abs(det) < EpsilonExact {
		return nil, false
	}
	w0 := rhs.Dot(c2.Cross(c3)) / det
	w1 := c1.Dot(rhs.Cross(c3)) / det
	w2 := c1.Dot(c2.Cross(rhs)) / det
	w3 := 1 - w0 - w1 - w2
	if w0 < 0 || w1 < 0 || w2 < 0 || w3 < 0 {
		return nil, false
	}
	return []float64{w0, w1, w2, w3}, true
}
