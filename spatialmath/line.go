package spatialmath

import "github.com/golang/geo/r3"

// Line is a segment between two points. Despite the name it is bounded; the
// unbounded routines take a point and a direction instead.
type Line struct {
	Start r3.Vector
	End   r3.Vector
}

// NewLine creates a Line from start to end.
func NewLine(start, end r3.Vector) Line {
	return Line{Start: start, End: end}
}

// Direction returns the unit vector from start to end, or the zero vector for
// a degenerate segment.
func (l Line) Direction() r3.Vector {
	d := l.End.Sub(l.Start)
	if d.Norm() < Epsilon {
		return r3.Vector{}
	}
	return d.Normalize()
}

// Length returns the segment length.
func (l Line) Length() float64 {
	return l.End.Sub(l.Start).Norm()
}

// Sub returns the relative segment l - other, start to start and end to end.
// Two linear paths of equal duration collide exactly when the relative path
// passes within the combined radius of the origin.
func (l Line) Sub(other Line) Line {
	return Line{Start: l.Start.Sub(other.Start), End: l.End.Sub(other.End)}
}

// At returns the point at parameter alpha in [0, 1] along the segment.
func (l Line) At(alpha float64) r3.Vector {
	return l.Start.Add(l.End.Sub(l.Start).Mul(alpha))
}

// ClosestPoints is the result of a closest-point query. P1 and P2 are the
// witness points on the first and second argument respectively; Dist is the
// distance between them.
type ClosestPoints struct {
	P1   r3.Vector
	P2   r3.Vector
	Dist float64
}

// Swapped returns the same result with the witnesses exchanged.
func (cp ClosestPoints) Swapped() ClosestPoints {
	return ClosestPoints{P1: cp.P2, P2: cp.P1, Dist: cp.Dist}
}
