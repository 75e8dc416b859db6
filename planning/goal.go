package planning

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/obstacle"
	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
)

// GoalSelector picks the goal the planner aims for this tick. The desired
// goal comes from the mission; the selector may substitute an intermediate
// point to route around traffic.
type GoalSelector interface {
	SelectGoal(agent *Agent, obstacles []obstacle.Obstacle) r3.Vector
}

// NewGoalSelector returns the selector for the configured goal mode.
func NewGoalSelector(param config.Param) GoalSelector {
	switch param.GoalMode {
	case config.GoalModeRightHandRule:
		return &rightHandRuleSelector{param: param}
	case config.GoalModeGridBasedPlanner:
		return &gridWaypointSelector{}
	default:
		return &priorBasedSelector{}
	}
}

// priorBasedSelector aims at the farthest safe point on the straight line to
// the desired goal, stopping short of any agent or dynamic obstacle on that
// line whatever its priority.
type priorBasedSelector struct{}

func (s *priorBasedSelector) SelectGoal(agent *Agent, obstacles []obstacle.Obstacle) r3.Vector {
	pos := agent.CurrentState.Position
	delta := agent.DesiredGoalPoint.Sub(pos)
	dist := delta.Norm()
	if dist < spatialmath.EpsilonExact {
		return agent.DesiredGoalPoint
	}
	dir := delta.Mul(1 / dist)
	safe := SafeDistInDirection(pos, dir, obstacles, agent.Radius)
	if safe >= dist {
		return agent.DesiredGoalPoint
	}
	return pos.Add(dir.Mul(safe))
}

// rightHandRuleSelector behaves like the prior-based selector until blocked,
// then biases the intermediate goal to the right of the blocked direction so
// that symmetric head-on encounters resolve consistently.
type rightHandRuleSelector struct {
	param config.Param
}

func (s *rightHandRuleSelector) SelectGoal(agent *Agent, obstacles []obstacle.Obstacle) r3.Vector {
	pos := agent.CurrentState.Position
	delta := agent.DesiredGoalPoint.Sub(pos)
	dist := delta.Norm()
	if dist < spatialmath.EpsilonExact {
		return agent.DesiredGoalPoint
	}
	dir := delta.Mul(1 / dist)
	safe := SafeDistInDirection(pos, dir, obstacles, agent.Radius)
	if safe >= dist {
		return agent.DesiredGoalPoint
	}

	// Blocked: steer toward a point offset to the right of the direct line.
	right := dir.Cross(r3.Vector{Z: 1})
	if right.Norm() < spatialmath.Epsilon {
		right = r3.Vector{X: 1}
	} else {
		right = right.Normalize()
	}
	sideStep := math.Max(2*agent.Radius, safe/2)
	return pos.Add(dir.Mul(safe)).Add(right.Mul(sideStep))
}

// gridWaypointSelector consumes the next waypoint produced by the upstream
// grid-based global planner.
type gridWaypointSelector struct{}

func (s *gridWaypointSelector) SelectGoal(agent *Agent, obstacles []obstacle.Obstacle) r3.Vector {
	return agent.NextWaypoint
}

// SafeDistInDirection returns how far an agent can travel from position
// along direction before entering the collision radius of any agent or
// dynamic obstacle, measured along the ray.
func SafeDistInDirection(position, direction r3.Vector, obstacles []obstacle.Obstacle, radius float64) float64 {
	safeDist := math.Inf(1)
	for _, obs := range obstacles {
		if obs.Type == obstacle.Static {
			continue
		}
		radiusSum := obs.Radius + radius
		cp := spatialmath.ClosestPointsBetweenPointAndRay(obs.Position, position, direction)
		if cp.Dist >= radiusSum {
			continue
		}
		distToClosest := cp.P2.Sub(position).Norm()
		cand := math.Max(distToClosest-math.Sqrt(radiusSum*radiusSum-cp.Dist*cp.Dist), 0)
		if cand < safeDist {
			safeDist = cand
		}
	}
	return safeDist
}
