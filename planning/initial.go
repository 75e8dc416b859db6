package planning

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/spatialmath"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// InitialGenerator produces the feasible warm-start trajectory each tick.
// The warm start doubles as the fallback plan when the QP cannot improve on
// it, so it must satisfy the initial-state and terminal-rest conditions on
// its own.
type InitialGenerator struct {
	param  config.Param
	logger golog.Logger
}

// NewInitialGenerator returns a generator for the given parameters.
func NewInitialGenerator(param config.Param, logger golog.Logger) *InitialGenerator {
	return &InitialGenerator{param: param, logger: logger}
}

// Generate builds the warm start. When a previous trajectory exists and
// shifting it stays consistent with the current state, the previous solution
// shifted by one segment is preferred; otherwise the stay-in-place warm
// start is built from scratch.
func (g *InitialGenerator) Generate(
	agent *Agent,
	prev trajectory.Trajectory,
	tickStart float64,
	disturbed bool,
) (trajectory.Trajectory, error) {
	if !prev.Empty() && !disturbed {
		shifted := prev.ShiftForward(tickStart)
		if spatialmath.VectorsAlmostEqual(shifted.Segments[0].StartPoint(), agent.CurrentState.Position, g.param.ResetThreshold) {
			g.retargetTail(agent, &shifted)
			return shifted, nil
		}
		g.logger.Debugw("previous trajectory inconsistent with current state, regenerating",
			"agent", agent.ID)
	}
	return g.fromScratch(agent, tickStart)
}

// retargetTail replaces the extrapolated hold segment appended by the shift
// with a step toward the current goal, so the horizon keeps advancing from
// tick to tick. Terminal rest is restored on the new tail.
func (g *InitialGenerator) retargetTail(agent *Agent, shifted *trajectory.Trajectory) {
	m := len(shifted.Segments)
	n := shifted.Degree()

	from := shifted.Segments[m-1].StartPoint()
	goal := agent.CurrentGoalPoint
	if g.param.WorldDimension == 2 {
		goal.Z = g.param.WorldZ2D
	}
	to := stepToward(from, goal, agent.MaxVel.R3(), shifted.SegmentDuration())

	pts := make([]r3.Vector, n+1)
	for i := 0; i <= n; i++ {
		alpha := float64(i) / float64(n)
		pts[i] = from.Add(to.Sub(from).Mul(alpha))
	}
	pts[n-1] = pts[n]
	pts[n-2] = pts[n]
	shifted.Segments[m-1] = trajectory.Segment{ControlPoints: pts, Duration: shifted.SegmentDuration()}
}

// fromScratch builds the stay-in-place warm start: every control point sits
// at the current position, with the first-segment boundary points fixed to
// reproduce the current derivatives. Terminal rest holds trivially. Goal
// progress enters on subsequent ticks through the shifted-and-retargeted
// previous solution.
func (g *InitialGenerator) fromScratch(agent *Agent, tickStart float64) (trajectory.Trajectory, error) {
	m := g.param.SegmentCount
	n := g.param.BasisDegree
	dt := g.param.SegmentDuration
	if n < 2 {
		return trajectory.Trajectory{}, errors.New("basis degree too low for derivative fixes")
	}

	pos := agent.CurrentState.Position
	v := agent.CurrentState.Velocity
	a := agent.CurrentState.Acceleration
	if g.param.WorldDimension == 2 {
		pos.Z = g.param.WorldZ2D
		v.Z = 0
		a.Z = 0
	}

	cps := make([][]r3.Vector, m)
	for k := 0; k < m; k++ {
		pts := make([]r3.Vector, n+1)
		for i := range pts {
			pts[i] = pos
		}
		cps[k] = pts
	}

	// Derivative fixes on the first segment:
	// p1 = p0 + v*dt/n, p2 = a*dt²/(n(n-1)) + 2p1 - p0.
	cps[0][1] = pos.Add(v.Mul(dt / float64(n)))
	cps[0][2] = a.Mul(dt * dt / float64(n*(n-1))).Add(cps[0][1].Mul(2)).Sub(cps[0][0])

	traj, err := trajectory.New(tickStart, dt, cps)
	if err != nil {
		return trajectory.Trajectory{}, errors.Wrap(err, "building warm start")
	}
	return traj, nil
}

// stepToward advances from p toward goal by at most vmax*dt per axis.
func stepToward(p, goal, vmax r3.Vector, dt float64) r3.Vector {
	delta := goal.Sub(p)
	dist := delta.Norm()
	if dist < spatialmath.EpsilonExact {
		return goal
	}
	dir := delta.Mul(1 / dist)

	// The step scale is limited by the tightest per-axis bound.
	scale := dist
	for _, ax := range []struct{ d, vm float64 }{
		{dir.X, vmax.X}, {dir.Y, vmax.Y}, {dir.Z, vmax.Z},
	} {
		if ad := abs(ax.d); ad > spatialmath.EpsilonExact {
			if lim := ax.vm * dt / ad; lim < scale {
				scale = lim
			}
		}
	}
	return p.Add(dir.Mul(scale))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
