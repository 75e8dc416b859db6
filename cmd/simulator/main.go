// Command simulator co-simulates a mission of planner agents in-process,
// exchanging trajectories over the local bus (or NATS when --nats is given),
// and reports per-agent planning statistics.
package main

import (
	"context"
	"fmt"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"github.com/Geonhee-LEE/lsc-dr-planner/agent"
	"github.com/Geonhee-LEE/lsc-dr-planner/comm"
	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/distmap"
)

func main() {
	goutils.ContextualMain(mainWithArgs, golog.NewDevelopmentLogger("simulator"))
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	app := &cli.App{
		Name:  "simulator",
		Usage: "co-simulate a mission of trajectory planner agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to the YAML mission/parameter file",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "ticks",
				Usage: "number of replanning ticks to run",
				Value: 300,
			},
			&cli.StringFlag{
				Name:  "nats",
				Usage: "NATS URL for the trajectory bus (in-process bus when empty)",
			},
			&cli.BoolFlag{
				Name:  "realtime",
				Usage: "pace ticks at the segment duration instead of running flat out",
			},
		},
		Action: func(c *cli.Context) error {
			return runSimulation(c.Context, c, logger)
		},
	}

	return app.RunContext(ctx, args)
}

func runSimulation(ctx context.Context, c *cli.Context, logger golog.Logger) error {
	param, mission, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	dm, err := buildDistanceMap(param, mission)
	if err != nil {
		return err
	}

	var bus comm.Bus
	if url := c.String("nats"); url != "" {
		natsBus, err := comm.NewNatsBus(url, logger)
		if err != nil {
			return err
		}
		bus = natsBus
	} else {
		bus = comm.NewLocalBus()
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warnw("closing bus", "error", err)
		}
	}()

	managers := make([]*agent.Manager, 0, len(mission.Agents))
	for _, spec := range mission.Agents {
		var exec agent.CommandExecutor
		if param.MultisimExperiment {
			exec = agent.NewSimExecutor(10)
		}
		m := agent.NewManager(param, spec, nil, exec, logger.Named(fmt.Sprintf("agent-%d", spec.ID)))
		m.SetPlannerState(agent.GoTo)
		managers = append(managers, m)
	}

	runner, err := agent.NewRunner(param, managers, bus, dm, nil, c.Bool("realtime"), logger)
	if err != nil {
		return err
	}

	logger.Infow("starting simulation",
		"agents", len(managers), "ticks", c.Int("ticks"), "horizon", param.Horizon())
	if err := runner.Run(ctx, c.Int("ticks")); err != nil {
		return err
	}

	for _, m := range managers {
		stats := m.Statistics()
		logger.Infow("agent finished",
			"position", m.CurrentPosition(),
			"goal", m.DesiredGoalPoint(),
			"remaining", m.CurrentPosition().Distance(m.DesiredGoalPoint()),
			"plans", m.PlannerSeq(),
			"last_qp_status", stats.QPStatus.String(),
			"last_lsc_constraints", stats.LSCConstraints,
			"last_total_time", stats.TotalTime,
			"collision_alert", m.CollisionAlert(),
		)
	}
	return nil
}

// buildDistanceMap rasterizes the mission's static obstacles into a fixed
// 0.1 m voxel grid spanning x and y from -5 to 15 m and z from 0 to 5 m,
// whatever the mission's extent; obstacle voxels outside it are dropped.
func buildDistanceMap(param config.Param, mission config.Mission) (distmap.DistanceMap, error) {
	if len(mission.StaticObstacles) == 0 {
		return distmap.EmptyMap{Res: 0.1}, nil
	}

	const res = 0.1
	min := r3.Vector{X: -5, Y: -5, Z: 0}
	max := r3.Vector{X: 15, Y: 15, Z: 5}
	nx := int((max.X - min.X) / res)
	ny := int((max.Y - min.Y) / res)
	nz := int((max.Z - min.Z) / res)

	grid, err := distmap.NewGrid(min, nx, ny, nz, res)
	if err != nil {
		return nil, err
	}
	for _, obs := range mission.StaticObstacles {
		grid.AddBox(obs.Center.R3(), obs.HalfDims.R3())
	}
	grid.Compute()
	return grid, nil
}
