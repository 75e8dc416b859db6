package planning

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/obstacle"
	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// LSC is one linear safe corridor constraint: the half-space
// {x : Normal·x >= Offset} that every control point of segment SegmentIdx
// must satisfy to stay clear of obstacle ObstacleID during that segment.
// Normal is not necessarily unit length: downwash-scaled constraints fold
// the ellipsoidal metric into it.
type LSC struct {
	SegmentIdx int
	ObstacleID int
	Normal     r3.Vector
	Offset     float64
}

// Evaluate returns the signed slack of p against the constraint; negative
// means violated.
func (l LSC) Evaluate(p r3.Vector) float64 {
	return l.Normal.Dot(p) - l.Offset
}

// LSCBuilder constructs the pairwise corridors for a tick.
type LSCBuilder struct {
	param  config.Param
	logger golog.Logger
}

// NewLSCBuilder returns a builder for the given parameters.
func NewLSCBuilder(param config.Param, logger golog.Logger) *LSCBuilder {
	return &LSCBuilder{param: param, logger: logger}
}

// Build constructs one LSC per (segment, obstacle) pair for every agent and
// dynamic obstacle in the snapshot. Static obstacles are excluded: the
// distance map handles them through the SFCs. The returned flag reports
// whether any pair is already inside its hard collision threshold at the
// start of the horizon.
func (b *LSCBuilder) Build(
	agent *Agent,
	warmStart trajectory.Trajectory,
	obstacles []obstacle.Obstacle,
	tickStart float64,
) ([]LSC, bool) {
	var out []LSC
	collisionAlert := false

	selfPriority := NewPriority(agent.ID, agent.CurrentState.Position, agent.DesiredGoalPoint)

	for _, obs := range obstacles {
		if obs.Type == obstacle.Static {
			continue
		}

		dw := b.combinedDownwash(agent, obs)
		scale := 1 / dw
		rSum := agent.Radius + obs.Radius

		selfHigher := true
		if obs.Type == obstacle.Agent {
			obsPriority := NewPriority(obs.ID, obs.Position, obs.Goal)
			selfHigher = selfPriority.HigherThan(obsPriority)
		}

		for k := 0; k < len(warmStart.Segments); k++ {
			selfLine := scaleLine(warmStart.Segments[k].Line(), scale)
			obsLine := scaleLine(obs.SegmentLine(k, b.param.SegmentDuration, tickStart), scale)

			cp := spatialmath.ClosestPointsBetweenLineSegments(selfLine, obsLine)

			normal := cp.P1.Sub(cp.P2)
			if normal.Norm() < spatialmath.Epsilon {
				// Coincident witnesses: fall back to the relative position
				// of the bodies now, then to a fixed axis.
				normal = spatialmath.ScaleZ(agent.CurrentState.Position.Sub(obs.Position), scale)
				if normal.Norm() < spatialmath.Epsilon {
					b.logger.Warnw("degenerate witness pair, using conservative default",
						"agent", agent.ID, "obstacle", obs.ID, "segment", k, "error", ErrGeometryDegenerate)
					normal = r3.Vector{X: 1}
				}
			}
			normal = normal.Normalize()
			mid := cp.P1.Add(cp.P2).Mul(0.5)

			margin := rSum / 2
			if cp.Dist < rSum {
				if k == 0 {
					selfNow := spatialmath.ScaleZ(agent.CurrentState.Position, scale)
					obsNow := spatialmath.ScaleZ(obs.Position, scale)
					if selfNow.Distance(obsNow) < rSum {
						// Already colliding: relax to the tightest feasible
						// half-space through the current position.
						collisionAlert = true
						margin = normal.Dot(selfNow.Sub(mid))
						out = append(out, b.toWorldSpace(k, obs.ID, normal, mid, margin, scale))
						continue
					}
				}
				// Soft violation over the horizon: split the remaining gap,
				// the lower-priority side yielding the feasibility margin.
				margin = cp.Dist / 2
				if !selfHigher {
					margin -= b.param.PriorityMarginE
				}
			}

			out = append(out, b.toWorldSpace(k, obs.ID, normal, mid, margin, scale))
		}
	}

	return out, collisionAlert
}

// combinedDownwash mirrors the pairwise downwash model: a radius-weighted
// blend for agent pairs, the obstacle's own coefficient otherwise.
func (b *LSCBuilder) combinedDownwash(agent *Agent, obs obstacle.Obstacle) float64 {
	if b.param.WorldDimension == 2 {
		return 1
	}
	switch {
	case obs.Type == obstacle.Agent && obs.Downwash > 0:
		return (agent.Radius*agent.Downwash + obs.Radius*obs.Downwash) / (agent.Radius + obs.Radius)
	case obs.Downwash > 0:
		return obs.Downwash
	default:
		return 1
	}
}

// toWorldSpace maps a half-space computed in downwash-scaled coordinates
// back onto real-space control points: n'·(Sx) >= d + n'·m' becomes
// (Sᵀn')·x >= d + n'·m'.
func (b *LSCBuilder) toWorldSpace(segIdx, obsID int, normal, mid r3.Vector, margin, scale float64) LSC {
	return LSC{
		SegmentIdx: segIdx,
		ObstacleID: obsID,
		Normal:     spatialmath.ScaleZ(normal, scale),
		Offset:     margin + normal.Dot(mid),
	}
}

func scaleLine(l spatialmath.Line, zScale float64) spatialmath.Line {
	return spatialmath.NewLine(spatialmath.ScaleZ(l.Start, zScale), spatialmath.ScaleZ(l.End, zScale))
}
