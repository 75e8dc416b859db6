package planning

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/distmap"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// SFC is one safe flight corridor: an axis-aligned box that every control
// point of segment SegmentIdx must lie inside to stay clear of static
// geometry.
type SFC struct {
	SegmentIdx int
	Min        r3.Vector
	Max        r3.Vector
}

// Contains reports whether p lies inside the box within eps.
func (s SFC) Contains(p r3.Vector, eps float64) bool {
	return p.X >= s.Min.X-eps && p.X <= s.Max.X+eps &&
		p.Y >= s.Min.Y-eps && p.Y <= s.Max.Y+eps &&
		p.Z >= s.Min.Z-eps && p.Z <= s.Max.Z+eps
}

// intersects reports whether two boxes share a region.
func (s SFC) intersects(o SFC) bool {
	return s.Min.X <= o.Max.X && o.Min.X <= s.Max.X &&
		s.Min.Y <= o.Max.Y && o.Min.Y <= s.Max.Y &&
		s.Min.Z <= o.Max.Z && o.Min.Z <= s.Max.Z
}

// SFCBuilder constructs the static-environment corridors for a tick.
type SFCBuilder struct {
	param  config.Param
	logger golog.Logger
}

// NewSFCBuilder returns a builder for the given parameters.
func NewSFCBuilder(param config.Param, logger golog.Logger) *SFCBuilder {
	return &SFCBuilder{param: param, logger: logger}
}

// Build constructs one SFC per segment: the axis-aligned bounding box of the
// warm-start control points, grown face by face in distance-map-resolution
// steps until a step would cross within the agent radius of static geometry.
func (b *SFCBuilder) Build(
	agent *Agent,
	warmStart trajectory.Trajectory,
	dm distmap.DistanceMap,
) []SFC {
	out := make([]SFC, 0, len(warmStart.Segments))
	for k, seg := range warmStart.Segments {
		box := boundingBox(seg.ControlPoints)
		box.SegmentIdx = k
		box = b.expand(box, agent.Radius, dm)
		out = append(out, box)
	}

	// Adjacent corridors must overlap around the shared boundary control
	// point. Both initial bounding boxes contain it, and expansion only
	// grows them, so overlap failure indicates a construction bug; recover
	// by growing the smaller box to the shared point.
	for k := 1; k < len(out); k++ {
		if out[k-1].intersects(out[k]) {
			continue
		}
		shared := warmStart.Segments[k].StartPoint()
		b.logger.Warnw("adjacent safe flight corridors disjoint, stitching at shared point",
			"agent", agent.ID, "segment", k)
		if volume(out[k-1]) < volume(out[k]) {
			out[k-1] = growTo(out[k-1], shared)
		} else {
			out[k] = growTo(out[k], shared)
		}
	}
	return out
}

// expand grows each face outward in resolution steps while the freshly
// uncovered slab keeps at least the agent radius of clearance.
func (b *SFCBuilder) expand(box SFC, radius float64, dm distmap.DistanceMap) SFC {
	step := dm.Resolution()
	axes := 3
	if b.param.WorldDimension == 2 {
		axes = 2
	}

	for axis := 0; axis < axes; axis++ {
		for _, side := range []int{-1, 1} {
			for s := 0; s < b.param.SFCMaxExpansionSteps; s++ {
				grown := box
				if side < 0 {
					setAxis(&grown.Min, axis, axisOf(grown.Min, axis)-step)
				} else {
					setAxis(&grown.Max, axis, axisOf(grown.Max, axis)+step)
				}
				if !b.slabClear(grown, axis, side, step, radius, dm) {
					break
				}
				box = grown
			}
		}
	}
	return box
}

// slabClear samples the newly added slab of the grown box at map resolution
// and reports whether every sample keeps the required clearance.
func (b *SFCBuilder) slabClear(grown SFC, axis, side int, step, radius float64, dm distmap.DistanceMap) bool {
	var lo, hi r3.Vector
	lo, hi = grown.Min, grown.Max
	if side < 0 {
		hi = grown.Max
		setAxis(&hi, axis, axisOf(grown.Min, axis)+step)
		lo = grown.Min
	} else {
		lo = grown.Min
		setAxis(&lo, axis, axisOf(grown.Max, axis)-step)
		hi = grown.Max
	}

	for x := lo.X; x <= hi.X+1e-9; x += step {
		for y := lo.Y; y <= hi.Y+1e-9; y += step {
			for z := lo.Z; z <= hi.Z+1e-9; z += step {
				if dm.Distance(r3.Vector{X: x, Y: y, Z: z}) < radius {
					return false
				}
			}
		}
	}
	return true
}

func boundingBox(pts []r3.Vector) SFC {
	min := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range pts {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return SFC{Min: min, Max: max}
}

func growTo(box SFC, p r3.Vector) SFC {
	box.Min.X = math.Min(box.Min.X, p.X)
	box.Min.Y = math.Min(box.Min.Y, p.Y)
	box.Min.Z = math.Min(box.Min.Z, p.Z)
	box.Max.X = math.Max(box.Max.X, p.X)
	box.Max.Y = math.Max(box.Max.Y, p.Y)
	box.Max.Z = math.Max(box.Max.Z, p.Z)
	return box
}

func volume(box SFC) float64 {
	d := box.Max.Sub(box.Min)
	return d.X * d.Y * d.Z
}

func axisOf(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func setAxis(v *r3.Vector, axis int, val float64) {
	switch axis {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
}
