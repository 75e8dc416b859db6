// Package obstacle defines the planner's view of everything it must avoid:
// peer agents with published trajectories, non-cooperative dynamic obstacles,
// and static geometry (which is consumed through the distance map and only
// identified here).
package obstacle

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// Type distinguishes the obstacle kinds the planner knows about.
type Type int

const (
	// Agent is another planner instance that broadcasts its trajectory.
	Agent Type = iota
	// Dynamic is a non-cooperative moving obstacle; only its position and
	// velocity are known.
	Dynamic
	// Static is occupancy geometry, consumed via the distance map only.
	Static
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Agent:
		return "agent"
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// Obstacle is the state of one obstacle as reported for a replanning tick.
type Obstacle struct {
	ID             int
	Type           Type
	Position       r3.Vector
	Velocity       r3.Vector
	Goal           r3.Vector
	Radius         float64
	Downwash       float64
	MaxAcc         float64
	CollisionAlert bool
	// PrevTraj is the most recently published trajectory; empty for
	// non-agent obstacles.
	PrevTraj trajectory.Trajectory
}

// HasTrajectory reports whether a published trajectory is available.
func (o Obstacle) HasTrajectory() bool {
	return !o.PrevTraj.Empty()
}

// PredictedLine returns the obstacle's linear path over [start, start+dt]
// under a constant-velocity prediction.
func (o Obstacle) PredictedLine(start, dt float64) spatialmath.Line {
	p0 := o.Position.Add(o.Velocity.Mul(start))
	p1 := o.Position.Add(o.Velocity.Mul(start + dt))
	return spatialmath.NewLine(p0, p1)
}

// SegmentLine returns the obstacle's path chord over segment k of a horizon
// with the given segment duration, measured from the tick start. Agents with
// a published trajectory use its segment endpoints; everything else falls
// back to constant-velocity prediction.
func (o Obstacle) SegmentLine(k int, segmentDuration, tickStart float64) spatialmath.Line {
	if o.HasTrajectory() {
		t0 := tickStart + float64(k)*segmentDuration
		t1 := t0 + segmentDuration
		// Take the end point from the segment that ends at t1, so that a
		// segment boundary at t1 does not resolve to the next segment's start.
		dur := o.PrevTraj.SegmentDuration()
		rel := t1 - o.PrevTraj.StartTime
		idx := int(math.Ceil(rel/dur-spatialmath.EpsilonExact)) - 1
		if idx < 0 {
			idx = 0
		}
		if last := len(o.PrevTraj.Segments) - 1; idx > last {
			idx = last
		}
		end := o.PrevTraj.Segments[idx].PositionAt(rel - float64(idx)*dur)
		return spatialmath.NewLine(o.PrevTraj.PositionAt(t0), end)
	}
	return o.PredictedLine(float64(k)*segmentDuration, segmentDuration)
}
