package agent

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Geonhee-LEE/lsc-dr-planner/comm"
	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/distmap"
	"github.com/Geonhee-LEE/lsc-dr-planner/planning"
)

// Runner co-simulates a set of agents in-process: every tick each agent
// steps, plans against the snapshots that arrived before the tick, and
// publishes its result on the bus before the next tick. Agents are
// independent workers; the bus is their only coupling.
type Runner struct {
	param    config.Param
	logger   golog.Logger
	managers []*Manager
	bus      comm.Bus
	dm       distmap.DistanceMap
	clock    clock.Clock
	realtime bool
}

// NewRunner wires the managers to the bus. A nil clk selects the wall
// clock; realtime=false runs ticks back to back.
func NewRunner(
	param config.Param,
	managers []*Manager,
	bus comm.Bus,
	dm distmap.DistanceMap,
	clk clock.Clock,
	realtime bool,
	logger golog.Logger,
) (*Runner, error) {
	if len(managers) == 0 {
		return nil, errors.New("runner needs at least one agent")
	}
	if clk == nil {
		clk = clock.New()
	}
	r := &Runner{
		param:    param,
		logger:   logger,
		managers: managers,
		bus:      bus,
		dm:       dm,
		clock:    clk,
		realtime: realtime,
	}
	for _, m := range managers {
		mgr := m
		if err := bus.Subscribe(mgr.agent.ID, func(msg comm.AgentStateMsg) {
			mgr.AgentStateCallback(msg.Obstacle())
		}); err != nil {
			return nil, errors.Wrap(err, "subscribing agent to bus")
		}
	}
	return r, nil
}

// Run executes the given number of ticks, or until the context is canceled.
func (r *Runner) Run(ctx context.Context, ticks int) error {
	dt := r.param.SegmentDuration
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.Tick(ctx, float64(i)*dt); err != nil {
			return err
		}
		if r.realtime {
			r.clock.Sleep(time.Duration(dt * float64(time.Second)))
		}
	}
	return nil
}

// Tick runs one synchronized replanning round at the given simulation time.
func (r *Runner) Tick(ctx context.Context, now float64) error {
	// Swap in any pending map updates before anyone starts reading.
	if svc, ok := r.dm.(*distmap.Service); ok {
		if err := svc.Refresh(); err != nil {
			return err
		}
	}

	// Step everyone to the tick boundary, then mark obstacle inputs
	// complete: the snapshot each agent plans with is whatever arrived
	// before this point.
	for _, m := range r.managers {
		m.DoStep(now)
		m.ObstacleCallback(nil)
	}

	// Replanning is independent across agents.
	group, groupCtx := errgroup.WithContext(ctx)
	for _, m := range r.managers {
		mgr := m
		group.Go(func() error {
			report := mgr.Plan(groupCtx, r.dm, now)
			switch report {
			case planning.ReportSuccess, planning.ReportWaitForMessages:
			default:
				r.logger.Warnw("plan did not succeed", "agent", mgr.agent.ID, "report", report)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// Publish before the next tick boundary.
	for _, m := range r.managers {
		if err := r.bus.Publish(comm.NewAgentStateMsg(m.AgentMessage())); err != nil {
			r.logger.Errorw("publishing agent state", "agent", m.agent.ID, "error", err)
		}
	}
	return nil
}

// Managers exposes the runner's agents, for inspection by callers.
func (r *Runner) Managers() []*Manager {
	return r.managers
}
