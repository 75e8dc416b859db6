package agent

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/distmap"
	"github.com/Geonhee-LEE/lsc-dr-planner/obstacle"
	"github.com/Geonhee-LEE/lsc-dr-planner/planning"
	"github.com/Geonhee-LEE/lsc-dr-planner/planning/qp"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// Manager owns one agent: its state machine, its trajectory planner, its
// view of the world, and its coupling to the command executor. All methods
// are called from the agent's single worker goroutine; the obstacle cache is
// the only concurrency boundary (the bus feeds it asynchronously).
type Manager struct {
	param      config.Param
	logger     golog.Logger
	agent      *planning.Agent
	planner    *planning.TrajPlanner
	cache      *obstacle.Cache
	executor   CommandExecutor
	mapService *distmap.Service

	state        PlannerState
	desiredTraj  trajectory.Trajectory
	missionStart r3.Vector
	missionGoal  r3.Vector

	hasCurrentState bool
	hasObstacles    bool
	disturbed       bool
	disturbedTicks  int
	collisionAlert  bool
}

// NewManager builds a manager for one mission agent. The executor may be nil
// when multisim coupling is disabled; the solver may be nil to use the
// default in-process solver.
func NewManager(
	param config.Param,
	spec config.AgentSpec,
	solver qp.Solver,
	executor CommandExecutor,
	logger golog.Logger,
) *Manager {
	ag := planning.NewAgent(spec)
	return &Manager{
		param:        param,
		logger:       logger,
		agent:        ag,
		planner:      planning.NewTrajPlanner(param, solver, logger),
		cache:        obstacle.NewCache(),
		executor:     executor,
		state:        Wait,
		missionStart: spec.StartAt.R3(),
		missionGoal:  spec.GoalAt.R3(),
	}
}

// DoStep advances the agent's current state to the given absolute time:
// either the ideal state integrated from the previous plan, or, when the
// command executor reports a disturbance, the externally observed position
// with zeroed derivatives.
func (m *Manager) DoStep(tick float64) {
	stepIdeal := true
	if m.param.MultisimExperiment && m.executor != nil {
		m.disturbed = m.executor.IsDisturbed()
		if m.disturbed {
			if observed, ok := m.executor.ObservedPosition(); ok {
				m.agent.CurrentState = trajectory.State{Position: observed}
				stepIdeal = false
			}
		}
	}

	if stepIdeal && !m.desiredTraj.Empty() {
		m.agent.CurrentState = m.desiredTraj.StateAt(tick)
	}

	if m.param.WorldDimension == 2 {
		m.agent.CurrentState.Position.Z = m.param.WorldZ2D
	}
	m.hasCurrentState = true
}

// SetCurrentState feeds an externally measured state instead of the ideal
// integrated one; the two input paths are mutually exclusive per tick.
func (m *Manager) SetCurrentState(state trajectory.State) {
	m.agent.CurrentState = state
	if m.param.WorldDimension == 2 {
		m.agent.CurrentState.Position.Z = m.param.WorldZ2D
	}
	m.hasCurrentState = true
}

// ObstacleCallback merges a batch of obstacle reports for the next tick.
func (m *Manager) ObstacleCallback(reports []obstacle.Obstacle) {
	m.cache.Update(reports)
	m.hasObstacles = true
}

// SetMapService attaches the distance map service receiving merge-map
// updates for this agent.
func (m *Manager) SetMapService(svc *distmap.Service) {
	m.mapService = svc
}

// MergeMapCallback forwards an incremental octree delta to the map service.
func (m *Manager) MergeMapCallback(points []r3.Vector) {
	if m.mapService == nil {
		return
	}
	m.mapService.MergeDelta(points)
}

// AgentStateCallback merges one peer broadcast; handed to the bus
// subscription. It only touches the cache, which is safe from the bus's
// delivery goroutine; the tick driver marks obstacle inputs complete via
// ObstacleCallback at the tick boundary.
func (m *Manager) AgentStateCallback(o obstacle.Obstacle) {
	m.cache.Update([]obstacle.Obstacle{o})
}

// Plan runs one replanning tick. Inputs must have been supplied since the
// previous call; otherwise the caller is told to retry next tick.
func (m *Manager) Plan(ctx context.Context, dm distmap.DistanceMap, tick float64) planning.Report {
	if !m.hasObstacles || !m.hasCurrentState {
		return planning.ReportWaitForMessages
	}

	if m.state == Land && m.param.MultisimExperiment && m.executor != nil {
		// Control belongs to the executor until landing finishes.
		m.executor.Landing()
		m.hasObstacles = false
		m.hasCurrentState = false
		return planning.ReportSuccess
	}

	m.planningStateTransition()

	if m.disturbed {
		m.disturbedTicks++
		m.logger.Warnw("disturbance detected", "agent", m.agent.ID, "consecutive", m.disturbedTicks)
		if m.disturbedTicks > m.param.DisturbanceWindow {
			m.logger.Errorw("sustained disturbance, operator attention required",
				"agent", m.agent.ID, "ticks", m.disturbedTicks)
		}
	} else {
		m.disturbedTicks = 0
	}

	snapshot := m.cache.Snapshot(m.agent.ID)
	traj, report := m.planner.Plan(ctx, m.agent, snapshot, dm, tick, m.disturbed)
	m.agent.CurrentGoalPoint = m.planner.CurrentGoal()
	m.collisionAlert = m.planner.CollisionAlert()
	if !traj.Empty() {
		m.desiredTraj = traj
	}

	if m.param.MultisimExperiment && m.executor != nil {
		m.executor.UpdateTrajectory(m.desiredTraj, tick)
	}

	m.hasObstacles = false
	m.hasCurrentState = false
	return report
}

// planningStateTransition updates the desired goal according to the planner
// state before each replan.
func (m *Manager) planningStateTransition() {
	switch m.state {
	case GoTo:
		m.agent.DesiredGoalPoint = m.missionGoal
	case Patrol:
		if m.agent.DesiredGoalPoint.Distance(m.agent.CurrentState.Position) < m.param.GoalThreshold {
			m.agent.StartPoint, m.agent.DesiredGoalPoint = m.agent.DesiredGoalPoint, m.agent.StartPoint
		}
	case GoBack:
		m.agent.DesiredGoalPoint = m.missionStart
	case Wait, Land:
		// Keep the previous desired goal.
	}
}

// SetPlannerState commands a state change. The command is ignored while a
// landing is in progress.
func (m *Manager) SetPlannerState(state PlannerState) {
	if m.state == Land && m.param.MultisimExperiment && m.executor != nil && !m.executor.LandingFinished() {
		m.logger.Debugw("ignoring planner state command during landing", "agent", m.agent.ID)
		return
	}
	m.state = state
}

// PlannerState returns the current state machine mode.
func (m *Manager) PlannerState() PlannerState {
	return m.state
}

// IsInitialStateValid compares the integrated state with the external
// observation, when one exists, against the reset threshold.
func (m *Manager) IsInitialStateValid() bool {
	if !m.param.MultisimExperiment || m.executor == nil {
		return true
	}
	observed, ok := m.executor.ObservedPosition()
	if !ok {
		return true
	}
	dist := observed.Distance(m.agent.CurrentState.Position)
	if dist >= m.param.ResetThreshold {
		m.logger.Warnw("initial state drift beyond reset threshold",
			"agent", m.agent.ID, "observed", observed, "ideal", m.agent.CurrentState.Position, "dist", dist)
		return false
	}
	return true
}

// SetDesiredGoal replaces the mission goal.
func (m *Manager) SetDesiredGoal(goal r3.Vector) {
	m.missionGoal = goal
	m.agent.DesiredGoalPoint = goal
}

// SetStartPosition replaces the mission start point.
func (m *Manager) SetStartPosition(start r3.Vector) {
	m.missionStart = start
	m.agent.StartPoint = start
}

// SetNextWaypoint feeds the next waypoint from the upstream global planner.
func (m *Manager) SetNextWaypoint(wp r3.Vector) {
	m.agent.NextWaypoint = wp
}

// AgentMessage builds the agent-as-obstacle broadcast for peers.
func (m *Manager) AgentMessage() obstacle.Obstacle {
	goal := m.agent.DesiredGoalPoint
	if m.param.GoalMode == config.GoalModeGridBasedPlanner {
		goal = m.agent.CurrentGoalPoint
	}
	return obstacle.Obstacle{
		ID:             m.agent.ID,
		Type:           obstacle.Agent,
		Position:       m.agent.CurrentState.Position,
		Velocity:       m.agent.CurrentState.Velocity,
		Goal:           goal,
		Radius:         m.agent.Radius,
		Downwash:       m.agent.Downwash,
		MaxAcc:         m.agent.MaxAcc.X,
		CollisionAlert: m.collisionAlert,
		PrevTraj:       m.desiredTraj,
	}
}

// CurrentPosition returns the agent's current position.
func (m *Manager) CurrentPosition() r3.Vector {
	return m.agent.CurrentState.Position
}

// CurrentState returns the agent's current kinematic state.
func (m *Manager) CurrentState() trajectory.State {
	return m.agent.CurrentState
}

// Trajectory returns the most recent planned trajectory.
func (m *Manager) Trajectory() trajectory.Trajectory {
	return m.desiredTraj
}

// Statistics returns the last plan call's statistics.
func (m *Manager) Statistics() planning.Statistics {
	return m.planner.Statistics()
}

// PlannerSeq returns the number of plans produced.
func (m *Manager) PlannerSeq() int {
	return m.planner.Seq()
}

// CollisionAlert reports whether the last plan raised the alert.
func (m *Manager) CollisionAlert() bool {
	return m.collisionAlert
}

// CurrentGoalPoint returns the goal the planner last aimed for.
func (m *Manager) CurrentGoalPoint() r3.Vector {
	return m.agent.CurrentGoalPoint
}

// DesiredGoalPoint returns the mission-level goal.
func (m *Manager) DesiredGoalPoint() r3.Vector {
	return m.agent.DesiredGoalPoint
}

// StartPoint returns the agent's current start point (patrol may swap it).
func (m *Manager) StartPoint() r3.Vector {
	return m.agent.StartPoint
}
