package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
)

// State is the kinematic state of an agent.
type State struct {
	Position     r3.Vector
	Velocity     r3.Vector
	Acceleration r3.Vector
}

// Segment is one piece of a piecewise polynomial: a Bernstein polynomial of
// degree len(ControlPoints)-1 over [0, Duration].
type Segment struct {
	ControlPoints []r3.Vector
	Duration      float64
}

// NewConstantSegment returns a segment that holds a single position, with all
// derivatives identically zero.
func NewConstantSegment(position r3.Vector, degree int, duration float64) Segment {
	pts := make([]r3.Vector, degree+1)
	for i := range pts {
		pts[i] = position
	}
	return Segment{ControlPoints: pts, Duration: duration}
}

// Degree returns the polynomial degree of the segment.
func (s Segment) Degree() int {
	return len(s.ControlPoints) - 1
}

// StartPoint returns the first control point, which the polynomial passes
// through at t=0.
func (s Segment) StartPoint() r3.Vector {
	return s.ControlPoints[0]
}

// EndPoint returns the last control point, which the polynomial passes
// through at t=Duration.
func (s Segment) EndPoint() r3.Vector {
	return s.ControlPoints[len(s.ControlPoints)-1]
}

// Line returns the chord between the segment endpoints, used by the corridor
// constructors which treat each segment as a linear path.
func (s Segment) Line() spatialmath.Line {
	return spatialmath.NewLine(s.StartPoint(), s.EndPoint())
}

// PositionAt evaluates the segment position at local time t in [0, Duration].
func (s Segment) PositionAt(t float64) r3.Vector {
	u := spatialmath.Clamp(t/s.Duration, 0, 1)
	return s.evalAt(u)
}

// VelocityAt evaluates the segment velocity at local time t.
func (s Segment) VelocityAt(t float64) r3.Vector {
	return s.Derivative().PositionAt(t)
}

// AccelerationAt evaluates the segment acceleration at local time t.
func (s Segment) AccelerationAt(t float64) r3.Vector {
	return s.Derivative().Derivative().PositionAt(t)
}

// Derivative returns the segment representing the time derivative of s, one
// degree lower over the same duration.
func (s Segment) Derivative() Segment {
	n := s.Degree()
	scale := float64(n) / s.Duration
	pts := make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		pts[i] = s.ControlPoints[i+1].Sub(s.ControlPoints[i]).Mul(scale)
	}
	return Segment{ControlPoints: pts, Duration: s.Duration}
}

func (s Segment) evalAt(u float64) r3.Vector {
	xs := make([]float64, len(s.ControlPoints))
	ys := make([]float64, len(s.ControlPoints))
	zs := make([]float64, len(s.ControlPoints))
	for i, p := range s.ControlPoints {
		xs[i] = p.X
		ys[i] = p.Y
		zs[i] = p.Z
	}
	return r3.Vector{
		X: deCasteljau(xs, u),
		Y: deCasteljau(ys, u),
		Z: deCasteljau(zs, u),
	}
}

// Trajectory is a sequence of equal-duration Bernstein segments starting at
// an absolute time.
type Trajectory struct {
	StartTime float64
	Segments  []Segment
}

// New builds a trajectory from per-segment control points.
func New(startTime, segmentDuration float64, controlPoints [][]r3.Vector) (Trajectory, error) {
	if len(controlPoints) == 0 {
		return Trajectory{}, errors.New("trajectory needs at least one segment")
	}
	degree := len(controlPoints[0]) - 1
	segments := make([]Segment, len(controlPoints))
	for i, pts := range controlPoints {
		if len(pts)-1 != degree {
			return Trajectory{}, errors.Errorf("segment %d has degree %d, want %d", i, len(pts)-1, degree)
		}
		segments[i] = Segment{ControlPoints: pts, Duration: segmentDuration}
	}
	return Trajectory{StartTime: startTime, Segments: segments}, nil
}

// Empty reports whether the trajectory holds no segments.
func (tr Trajectory) Empty() bool {
	return len(tr.Segments) == 0
}

// SegmentDuration returns the duration of each segment.
func (tr Trajectory) SegmentDuration() float64 {
	if tr.Empty() {
		return 0
	}
	return tr.Segments[0].Duration
}

// Horizon returns the total planned duration.
func (tr Trajectory) Horizon() float64 {
	return float64(len(tr.Segments)) * tr.SegmentDuration()
}

// Degree returns the polynomial degree of the segments.
func (tr Trajectory) Degree() int {
	if tr.Empty() {
		return 0
	}
	return tr.Segments[0].Degree()
}

// segmentIndexAt maps an absolute time onto (segment index, local time),
// clamping to the first and last segments.
func (tr Trajectory) segmentIndexAt(t float64) (int, float64) {
	dt := t - tr.StartTime
	delta := tr.SegmentDuration()
	idx := int(math.Floor(dt / delta))
	if idx < 0 {
		idx = 0
	}
	if idx > len(tr.Segments)-1 {
		idx = len(tr.Segments) - 1
	}
	local := spatialmath.Clamp(dt-float64(idx)*delta, 0, delta)
	return idx, local
}

// PositionAt evaluates the trajectory position at absolute time t.
func (tr Trajectory) PositionAt(t float64) r3.Vector {
	idx, local := tr.segmentIndexAt(t)
	return tr.Segments[idx].PositionAt(local)
}

// StateAt evaluates position, velocity and acceleration at absolute time t.
func (tr Trajectory) StateAt(t float64) State {
	idx, local := tr.segmentIndexAt(t)
	seg := tr.Segments[idx]
	return State{
		Position:     seg.PositionAt(local),
		Velocity:     seg.VelocityAt(local),
		Acceleration: seg.AccelerationAt(local),
	}
}

// EndPoint returns the final position of the trajectory.
func (tr Trajectory) EndPoint() r3.Vector {
	return tr.Segments[len(tr.Segments)-1].EndPoint()
}

// ControlPoints returns a deep copy of the per-segment control-point arrays.
func (tr Trajectory) ControlPoints() [][]r3.Vector {
	out := make([][]r3.Vector, len(tr.Segments))
	for i, seg := range tr.Segments {
		pts := make([]r3.Vector, len(seg.ControlPoints))
		copy(pts, seg.ControlPoints)
		out[i] = pts
	}
	return out
}

// ShiftForward returns the trajectory advanced by one segment: segment k
// becomes segment k-1 and the final segment is extrapolated by holding the
// terminal position. The terminal derivative constraints make the hold
// consistent with the previous plan.
func (tr Trajectory) ShiftForward(newStartTime float64) Trajectory {
	segments := make([]Segment, 0, len(tr.Segments))
	segments = append(segments, tr.Segments[1:]...)
	segments = append(segments, NewConstantSegment(tr.EndPoint(), tr.Degree(), tr.SegmentDuration()))
	return Trajectory{StartTime: newStartTime, Segments: segments}
}
