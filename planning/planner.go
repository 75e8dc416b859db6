package planning

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/distmap"
	"github.com/Geonhee-LEE/lsc-dr-planner/obstacle"
	"github.com/Geonhee-LEE/lsc-dr-planner/planning/qp"
	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// regularizationEps is added to the Hessian diagonal on the single retry
// after a numerical failure.
const regularizationEps = 1e-4

// TrajPlanner runs one agent's replanning pipeline: goal selection, warm
// start, corridor construction, and the QP solve. It owns the previous
// trajectory and the deadlock bookkeeping between ticks. All methods are
// called from the owning agent's single worker.
type TrajPlanner struct {
	param     config.Param
	logger    golog.Logger
	solver    qp.Solver
	initial   *InitialGenerator
	lsc       *LSCBuilder
	sfc       *SFCBuilder
	goals     GoalSelector
	assembler *assembler

	seq             int
	prevTraj        trajectory.Trajectory
	currentGoal     r3.Vector
	collisionAlert  bool
	infeasibleTicks int
	stats           Statistics
}

// NewTrajPlanner wires the planning pipeline for one agent. A nil solver
// selects the in-process ADMM solver.
func NewTrajPlanner(param config.Param, solver qp.Solver, logger golog.Logger) *TrajPlanner {
	if solver == nil {
		solver = qp.NewADMMSolver()
	}
	return &TrajPlanner{
		param:     param,
		logger:    logger,
		solver:    solver,
		initial:   NewInitialGenerator(param, logger),
		lsc:       NewLSCBuilder(param, logger),
		sfc:       NewSFCBuilder(param, logger),
		goals:     NewGoalSelector(param),
		assembler: newAssembler(param),
	}
}

// Plan runs one replanning tick and returns the trajectory to follow. The
// returned report distinguishes the failure stages; a fallback trajectory is
// still returned whenever one exists.
func (p *TrajPlanner) Plan(
	ctx context.Context,
	agent *Agent,
	obstacles []obstacle.Obstacle,
	dm distmap.DistanceMap,
	tickStart float64,
	disturbed bool,
) (trajectory.Trajectory, Report) {
	start := time.Now()
	p.seq++
	p.stats = Statistics{Seq: p.seq}
	p.collisionAlert = false

	// Goal arbitration. While the agent cannot find a feasible plan, the
	// deadlock override clamps the current goal into a box around its
	// position. The desired goal, and with it the priority used by the
	// corridors, is not changed.
	p.currentGoal = p.goals.SelectGoal(agent, obstacles)
	if p.infeasibleTicks >= p.param.DeadlockTicks {
		p.currentGoal = clampToBox(p.currentGoal, agent.CurrentState.Position, p.param.YieldBoxHalf)
		p.logger.Debugw("deadlock yielding active", "agent", agent.ID, "goal", p.currentGoal)
	}
	agent.CurrentGoalPoint = p.currentGoal

	// Warm start.
	phase := time.Now()
	warmStart, err := p.initial.Generate(agent, p.prevTraj, tickStart, disturbed)
	p.stats.InitialTrajTime = time.Since(phase)
	if err != nil {
		p.logger.Errorw("initial trajectory generation failed", "agent", agent.ID, "error", err)
		p.stats.Report = ReportInitTrajGenerationFail
		return p.prevTraj, ReportInitTrajGenerationFail
	}

	// Corridors.
	phase = time.Now()
	lscs, alert := p.lsc.Build(agent, warmStart, obstacles, tickStart)
	sfcs := p.sfc.Build(agent, warmStart, dm)
	p.stats.ConstraintTime = time.Since(phase)
	p.stats.LSCConstraints = len(lscs)
	p.stats.SFCConstraints = len(sfcs)
	p.collisionAlert = alert

	prob, err := p.assembler.Assemble(agent, warmStart, lscs, sfcs)
	if err != nil {
		p.logger.Errorw("constraint assembly failed", "agent", agent.ID, "error", err)
		p.stats.Report = ReportConstraintGenerationFail
		return p.fallback(warmStart), ReportConstraintGenerationFail
	}

	// Solve, with a deadline and one regularized retry on numerical
	// failure.
	phase = time.Now()
	res := p.solve(ctx, prob)
	p.stats.SolveTime = time.Since(phase)
	p.stats.QPStatus = res.Status
	p.stats.QPIterations = res.Iterations

	var out trajectory.Trajectory
	report := ReportSuccess
	switch res.Status {
	case qp.Success:
		out, err = p.assembler.trajectoryFromSolution(res.X, tickStart, agent)
		if err != nil {
			p.logger.Errorw("solution reconstruction failed", "agent", agent.ID, "error", err)
			p.stats.Report = ReportQPFail
			return p.fallback(warmStart), ReportQPFail
		}
		p.infeasibleTicks = 0
	case qp.Infeasible, qp.NumericalFail:
		// Keep flying the warm start; it satisfies the boundary conditions
		// by construction.
		p.collisionAlert = true
		p.infeasibleTicks++
		out = warmStart
	}

	p.prevTraj = out
	p.stats.CollisionAlert = p.collisionAlert
	p.stats.Report = report
	p.stats.TotalTime = time.Since(start)
	return out, report
}

func (p *TrajPlanner) solve(ctx context.Context, prob *qp.Problem) *qp.Result {
	deadline := time.Duration(p.param.SolverDeadlineMillis) * time.Millisecond
	solveCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	res, err := p.solver.Solve(solveCtx, prob)
	if err != nil {
		p.logger.Errorw("solver error", "error", err)
		return &qp.Result{Status: qp.NumericalFail}
	}
	if res.Status != qp.NumericalFail {
		return res
	}

	retryCtx, cancelRetry := context.WithTimeout(ctx, deadline)
	defer cancelRetry()
	retry, err := p.solver.Solve(retryCtx, prob.Regularized(regularizationEps))
	if err != nil {
		p.logger.Errorw("regularized retry error", "error", err)
		return &qp.Result{Status: qp.NumericalFail}
	}
	return retry
}

// fallback returns the warm start while recording that no new plan was
// produced.
func (p *TrajPlanner) fallback(warmStart trajectory.Trajectory) trajectory.Trajectory {
	p.prevTraj = warmStart
	return warmStart
}

// CurrentGoal returns the goal point chosen by the last Plan call.
func (p *TrajPlanner) CurrentGoal() r3.Vector {
	return p.currentGoal
}

// CollisionAlert returns whether the last Plan call raised the alert.
func (p *TrajPlanner) CollisionAlert() bool {
	return p.collisionAlert
}

// Statistics returns the statistics of the last Plan call.
func (p *TrajPlanner) Statistics() Statistics {
	return p.stats
}

// Seq returns the number of Plan calls made.
func (p *TrajPlanner) Seq() int {
	return p.seq
}

// PreviousTrajectory returns the most recent output trajectory.
func (p *TrajPlanner) PreviousTrajectory() trajectory.Trajectory {
	return p.prevTraj
}

func clampToBox(p, center r3.Vector, half float64) r3.Vector {
	return r3.Vector{
		X: spatialmath.Clamp(p.X, center.X-half, center.X+half),
		Y: spatialmath.Clamp(p.Y, center.Y-half, center.Y+half),
		Z: spatialmath.Clamp(p.Z, center.Z-half, center.Z+half),
	}
}
