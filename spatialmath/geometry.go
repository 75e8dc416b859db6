package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ClosestPointsBetweenPointAndLine returns the witness pair between a point
// and the infinite line through linePoint with unit direction lineDirection.
func ClosestPointsBetweenPointAndLine(point, linePoint, lineDirection r3.Vector) ClosestPoints {
	a := linePoint.Sub(point)
	c := a.Sub(lineDirection.Mul(a.Dot(lineDirection)))
	return ClosestPoints{
		P1:   point,
		P2:   point.Add(c),
		Dist: c.Norm(),
	}
}

// ClosestPointsBetweenPointAndRay returns the witness pair between a point
// and the ray from rayStart with unit direction rayDirection.
func ClosestPointsBetweenPointAndRay(point, rayStart, rayDirection r3.Vector) ClosestPoints {
	deltaToStart := point.Sub(rayStart)
	if deltaToStart.Dot(rayDirection) < 0 {
		// The foot of the perpendicular lies behind the ray origin.
		return ClosestPoints{
			P1:   point,
			P2:   rayStart,
			Dist: deltaToStart.Norm(),
		}
	}
	return ClosestPointsBetweenPointAndLine(point, rayStart, rayDirection)
}

// ClosestPointsBetweenPointAndLineSegment returns the witness pair between a
// point and a bounded segment. Degenerate segments degrade to a point-point
// distance.
func ClosestPointsBetweenPointAndLineSegment(point r3.Vector, line Line) ClosestPoints {
	a := line.Start.Sub(point)
	b := line.End.Sub(point)

	distMin := a.Norm()
	relClosest := a

	if !VectorsAlmostEqual(a, b, EpsilonExact) {
		if d := b.Norm(); d < distMin {
			distMin = d
			relClosest = b
		}
		nLine := b.Sub(a).Normalize()
		c := a.Sub(nLine.Mul(a.Dot(nLine)))
		// The perpendicular foot only counts when it falls between the
		// endpoints.
		if c.Sub(a).Dot(c.Sub(b)) < 0 {
			if d := c.Norm(); d < distMin {
				distMin = d
				relClosest = c
			}
		}
	}

	return ClosestPoints{
		P1:   point,
		P2:   relClosest.Add(point),
		Dist: distMin,
	}
}

// ClosestPointsBetweenLinePaths treats each segment as a linear path of equal
// duration and returns the witness pair at the single parameter alpha that
// minimizes the relative distance, i.e. it minimizes
// ‖line1(alpha) - line2(alpha)‖ over alpha in [0, 1].
func ClosestPointsBetweenLinePaths(line1, line2 Line) ClosestPoints {
	relPath := line2.Sub(line1)
	relClosest := ClosestPointsBetweenPointAndLineSegment(r3.Vector{}, relPath)

	var alpha float64
	if lineLength := relPath.Length(); lineLength > 0 {
		alpha = relClosest.P2.Sub(relPath.Start).Norm() / lineLength
	}

	return ClosestPoints{
		P1:   line1.At(alpha),
		P2:   line2.At(alpha),
		Dist: relClosest.Dist,
	}
}

// ClosestPointsBetweenLines returns the witness pair between the two infinite
// lines through the given segments. Both segments must have nonzero length.
func ClosestPointsBetweenLines(line1, line2 Line) (ClosestPoints, error) {
	if VectorsAlmostEqual(line1.Start, line1.End, EpsilonExact) {
		return ClosestPoints{}, errors.New("line1 start and end are the same")
	}
	if VectorsAlmostEqual(line2.Start, line2.End, EpsilonExact) {
		return ClosestPoints{}, errors.New("line2 start and end are the same")
	}

	n1 := line1.End.Sub(line1.Start).Normalize()
	n2 := line2.End.Sub(line2.Start).Normalize()

	if n1.Sub(n2).Norm() < Epsilon || n1.Add(n2).Norm() < Epsilon {
		// Parallel lines: project the offset out of the shared direction.
		delta := line2.Start.Sub(line1.Start)
		delta = delta.Sub(n1.Mul(delta.Dot(n1)))
		return ClosestPoints{
			P1:   line1.Start,
			P2:   line1.Start.Add(delta),
			Dist: delta.Norm(),
		}, nil
	}

	// Solve line1.Start + alpha1*n1 + alpha3*n3 = line2.Start + alpha2*n2
	// with n3 orthogonal to both directions, by Cramer's rule on the system
	// [n1 -n2 n3] * alphas = delta.
	delta := line2.Start.Sub(line1.Start)
	n3 := n2.Cross(n1).Normalize()
	c2 := n2.Mul(-1)

	det := n1.Dot(c2.Cross(n3))
	if math.Abs(det) < EpsilonExact {
		return ClosestPoints{}, errors.New("degenerate line pair")
	}
	alpha1 := delta.Dot(c2.Cross(n3)) / det
	alpha2 := n1.Dot(delta.Cross(n3)) / det
	alpha3 := n1.Dot(c2.Cross(delta)) / det

	return ClosestPoints{
		P1:   line1.Start.Add(n1.Mul(alpha1)),
		P2:   line2.Start.Add(n2.Mul(alpha2)),
		Dist: math.Abs(alpha3),
	}, nil
}

// ClosestPointsBetweenLineSegments returns the witness pair between two
// bounded segments. Degenerate segments degrade to the point-segment routine;
// parallel segments take an explicit branch.
func ClosestPointsBetweenLineSegments(line1, line2 Line) ClosestPoints {
	if line1.Length() < Epsilon {
		return ClosestPointsBetweenPointAndLineSegment(line1.Start, line2)
	}
	if line2.Length() < Epsilon {
		return ClosestPointsBetweenPointAndLineSegment(line2.Start, line1).Swapped()
	}

	v1 := line1.End.Sub(line1.Start)
	v2 := line2.End.Sub(line2.Start)
	l1 := v1.Norm()
	l2 := v2.Norm()
	n1 := v1.Mul(1 / l1)
	n2 := v2.Mul(1 / l2)

	var closest ClosestPoints
	if n1.Cross(n2).Norm() < Epsilon {
		// Parallel segments: order line2's endpoints along n1 and clamp.
		boundMin := line2.Start.Sub(line1.Start).Dot(n1)
		boundMax := line2.End.Sub(line1.Start).Dot(n1)
		p2Min := line2.Start
		p2Max := line2.End
		if boundMax < boundMin {
			boundMin, boundMax = boundMax, boundMin
			p2Min, p2Max = p2Max, p2Min
		}

		delta := line2.Start.Sub(line1.Start)
		delta = delta.Sub(n1.Mul(delta.Dot(n1)))
		switch {
		case l1 < boundMin:
			closest.P1 = line1.End
			closest.P2 = p2Min
		case boundMax < 0:
			closest.P1 = line1.Start
			closest.P2 = p2Max
		case boundMin < 0:
			closest.P1 = line1.Start
			closest.P2 = line1.Start.Add(delta)
		default:
			closest.P1 = p2Min.Sub(delta)
			closest.P2 = p2Min
		}
		closest.Dist = closest.P1.Distance(closest.P2)
		return closest
	}

	lineClosest, err := ClosestPointsBetweenLines(line1, line2)
	if err != nil {
		// Cannot happen for nondegenerate, nonparallel inputs; degrade to
		// the endpoints.
		return ClosestPoints{P1: line1.Start, P2: line2.Start, Dist: line1.Start.Distance(line2.Start)}
	}
	closest = lineClosest

	alpha1 := closest.P1.Sub(line1.Start).Dot(n1) / l1
	alpha2 := closest.P2.Sub(line2.Start).Dot(n2) / l2

	if alpha1 < 0 {
		closest.P1 = line1.Start
	} else if alpha1 > 1 {
		closest.P1 = line1.End
	}
	if alpha2 < 0 {
		closest.P2 = line2.Start
	} else if alpha2 > 1 {
		closest.P2 = line2.End
	}

	if alpha1 < 0 || alpha1 > 1 {
		dot := Clamp(n2.Dot(closest.P1.Sub(line2.Start)), 0, l2)
		closest.P2 = line2.Start.Add(n2.Mul(dot))
	}
	if alpha2 < 0 || alpha2 > 1 {
		dot := Clamp(n1.Dot(closest.P2.Sub(line1.Start)), 0, l1)
		closest.P1 = line1.Start.Add(n1.Mul(dot))
	}

	closest.Dist = closest.P1.Distance(closest.P2)
	return closest
}

// ComputeCollisionTime returns the first time within [0, timeHorizon] at
// which two points moving linearly along obsPath and agentPath come within
// collisionRadius of each other, or +Inf if they never do. Both paths span
// the same duration timeHorizon.
func ComputeCollisionTime(obsPath, agentPath Line, collisionRadius, timeHorizon float64) float64 {
	closest := ClosestPointsBetweenLinePaths(obsPath, agentPath)
	if closest.Dist > collisionRadius {
		return math.Inf(1)
	}

	a := agentPath.Start.Sub(obsPath.Start)
	b := agentPath.End.Sub(obsPath.End)
	delta := closest.P2.Sub(closest.P1)

	switch {
	case a.Norm() <= collisionRadius:
		return 0
	case VectorsAlmostEqual(delta, b, EpsilonExact):
		// Minimum attained at the path end: the pair is still approaching
		// at the horizon, enter time measured back from the endpoint.
		distToB := b.Norm()
		nLine := b.Sub(a).Normalize()
		c := a.Sub(nLine.Mul(a.Dot(nLine)))
		distToC := c.Norm()
		distInSphere1 := math.Sqrt(math.Max(collisionRadius*collisionRadius-distToC*distToC, 0))
		distInSphere2 := math.Sqrt(math.Max(distToB*distToB-distToC*distToC, 0))
		return (1 - (distInSphere1-distInSphere2)/b.Sub(a).Norm()) * timeHorizon
	default:
		distToB := b.Norm()
		distInSphere1 := math.Sqrt(math.Max(collisionRadius*collisionRadius-closest.Dist*closest.Dist, 0))
		distInSphere2 := math.Sqrt(math.Max(distToB*distToB-closest.Dist*closest.Dist, 0))
		return (1 - (distInSphere1+distInSphere2)/b.Sub(a).Norm()) * timeHorizon
	}
}
