// Package planning implements the per-tick trajectory planning core: warm
// start generation, linear safe corridor (LSC) and safe flight corridor
// (SFC) construction, and assembly of the quadratic program over Bernstein
// control points that yields the next trajectory.
package planning

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// Agent is the planner's mutable view of the vehicle it plans for. It is
// owned by a single agent.Manager and mutated only by it; neighbors see it
// through broadcast obstacle messages.
type Agent struct {
	config.AgentSpec

	CurrentState     trajectory.State
	StartPoint       r3.Vector
	DesiredGoalPoint r3.Vector
	CurrentGoalPoint r3.Vector
	NextWaypoint     r3.Vector
}

// NewAgent initializes an agent at its mission start point.
func NewAgent(spec config.AgentSpec) *Agent {
	start := spec.StartAt.R3()
	return &Agent{
		AgentSpec:        spec,
		CurrentState:     trajectory.State{Position: start},
		StartPoint:       start,
		DesiredGoalPoint: spec.GoalAt.R3(),
		CurrentGoalPoint: start,
		NextWaypoint:     start,
	}
}

// Report is the exit status of one plan call.
type Report int

// Plan outcomes.
const (
	// ReportWaitForMessages means required inputs had not arrived; retry
	// next tick.
	ReportWaitForMessages Report = iota
	ReportSuccess
	ReportInitTrajGenerationFail
	ReportConstraintGenerationFail
	ReportQPFail
)

// String implements fmt.Stringer.
func (r Report) String() string {
	switch r {
	case ReportWaitForMessages:
		return "wait_for_messages"
	case ReportSuccess:
		return "success"
	case ReportInitTrajGenerationFail:
		return "init_traj_generation_fail"
	case ReportConstraintGenerationFail:
		return "constraint_generation_fail"
	case ReportQPFail:
		return "qp_fail"
	default:
		return "unknown"
	}
}

// ErrGeometryDegenerate flags a geometry kernel invariant violation; callers
// log it and continue with a conservative default.
var ErrGeometryDegenerate = errors.New("degenerate geometry input")
