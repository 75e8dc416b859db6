// Package config holds the planner parameters and mission description, with
// YAML loading and construction-time validation. Invalid configuration is
// fatal; everything downstream assumes a validated Param.
package config

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// GoalMode selects the current-goal policy.
type GoalMode string

// Supported goal modes.
const (
	GoalModePriorBased       GoalMode = "PRIORBASED"
	GoalModeRightHandRule    GoalMode = "RIGHTHANDRULE"
	GoalModeGridBasedPlanner GoalMode = "GRIDBASEDPLANNER"
)

// Vec is a YAML-friendly 3-vector.
type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// R3 converts to an r3.Vector.
func (v Vec) R3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Param is the planner configuration shared by every agent in a run.
type Param struct {
	// World.
	WorldDimension int     `yaml:"world_dimension"`
	WorldZ2D       float64 `yaml:"world_z_2d"`

	// Horizon discretization.
	SegmentCount    int     `yaml:"segment_count"`
	SegmentDuration float64 `yaml:"segment_duration"`
	BasisDegree     int     `yaml:"basis_degree"`

	// Goal handling.
	GoalMode      GoalMode `yaml:"goal_mode"`
	GoalThreshold float64  `yaml:"goal_threshold"`

	// Disturbance handling.
	ResetThreshold    float64 `yaml:"reset_threshold"`
	DisturbanceWindow int     `yaml:"disturbance_window"`

	// Deadlock handling.
	DeadlockTicks   int     `yaml:"deadlock_ticks"`
	YieldBoxHalf    float64 `yaml:"yield_box_half"`
	PriorityMarginE float64 `yaml:"priority_margin"`

	// Safe flight corridors.
	SFCMaxExpansionSteps int `yaml:"sfc_max_expansion_steps"`

	// Solver.
	SolverDeadlineMillis int     `yaml:"solver_deadline_millis"`
	WarmStartWeight      float64 `yaml:"warm_start_weight"`
	JerkWeight           float64 `yaml:"jerk_weight"`
	SnapWeight           float64 `yaml:"snap_weight"`

	// Experiment coupling.
	MultisimExperiment bool `yaml:"multisim_experiment"`
}

// Horizon returns the total planning horizon T = M * dt.
func (p Param) Horizon() float64 {
	return float64(p.SegmentCount) * p.SegmentDuration
}

// Validate returns all configuration errors at once.
func (p Param) Validate() error {
	var err error
	if p.WorldDimension != 2 && p.WorldDimension != 3 {
		err = multierr.Append(err, errors.Errorf("world_dimension must be 2 or 3, got %d", p.WorldDimension))
	}
	if p.SegmentCount < 1 {
		err = multierr.Append(err, errors.Errorf("segment_count must be positive, got %d", p.SegmentCount))
	}
	if p.SegmentDuration <= 0 {
		err = multierr.Append(err, errors.Errorf("segment_duration must be positive, got %f", p.SegmentDuration))
	}
	if p.BasisDegree < 3 {
		err = multierr.Append(err, errors.Errorf("basis_degree must be at least 3 for acceleration continuity, got %d", p.BasisDegree))
	}
	switch p.GoalMode {
	case GoalModePriorBased, GoalModeRightHandRule, GoalModeGridBasedPlanner:
	default:
		err = multierr.Append(err, errors.Errorf("unknown goal_mode %q", p.GoalMode))
	}
	if p.GoalThreshold <= 0 {
		err = multierr.Append(err, errors.Errorf("goal_threshold must be positive, got %f", p.GoalThreshold))
	}
	if p.ResetThreshold <= 0 {
		err = multierr.Append(err, errors.Errorf("reset_threshold must be positive, got %f", p.ResetThreshold))
	}
	return err
}

// DefaultParam returns the parameter set used when a field is not supplied.
func DefaultParam() Param {
	return Param{
		WorldDimension:       3,
		WorldZ2D:             1.0,
		SegmentCount:         5,
		SegmentDuration:      0.2,
		BasisDegree:          5,
		GoalMode:             GoalModePriorBased,
		GoalThreshold:        0.1,
		ResetThreshold:       0.3,
		DisturbanceWindow:    10,
		DeadlockTicks:        3,
		YieldBoxHalf:         0.5,
		PriorityMarginE:      0.01,
		SFCMaxExpansionSteps: 20,
		SolverDeadlineMillis: 500,
		WarmStartWeight:      50.0,
		JerkWeight:           0.01,
		SnapWeight:           0.0,
	}
}

// AgentSpec is one agent's static mission description.
type AgentSpec struct {
	ID        int     `yaml:"id"`
	Radius    float64 `yaml:"radius"`
	Downwash  float64 `yaml:"downwash"`
	MaxVel    Vec     `yaml:"max_vel"`
	MaxAcc    Vec     `yaml:"max_acc"`
	StartAt   Vec     `yaml:"start"`
	GoalAt    Vec     `yaml:"goal"`
}

// Validate checks one agent spec.
func (a AgentSpec) Validate() error {
	var err error
	if a.Radius <= 0 {
		err = multierr.Append(err, errors.Errorf("agent %d: radius must be positive", a.ID))
	}
	if a.Downwash < 1 {
		err = multierr.Append(err, errors.Errorf("agent %d: downwash must be at least 1", a.ID))
	}
	if a.MaxVel.X <= 0 || a.MaxVel.Y <= 0 || a.MaxVel.Z <= 0 {
		err = multierr.Append(err, errors.Errorf("agent %d: max_vel must be positive per axis", a.ID))
	}
	if a.MaxAcc.X <= 0 || a.MaxAcc.Y <= 0 || a.MaxAcc.Z <= 0 {
		err = multierr.Append(err, errors.Errorf("agent %d: max_acc must be positive per axis", a.ID))
	}
	return err
}

// StaticObstacleSpec describes one axis-aligned box of static geometry.
type StaticObstacleSpec struct {
	Center   Vec `yaml:"center"`
	HalfDims Vec `yaml:"half_dims"`
}

// Mission is the full scenario description: the agents and the static world.
type Mission struct {
	Agents          []AgentSpec          `yaml:"agents"`
	StaticObstacles []StaticObstacleSpec `yaml:"static_obstacles"`
}

// Validate checks the mission for duplicate ids and invalid agents.
func (m Mission) Validate() error {
	var err error
	if len(m.Agents) == 0 {
		err = multierr.Append(err, errors.New("mission has no agents"))
	}
	seen := map[int]bool{}
	for _, a := range m.Agents {
		if seen[a.ID] {
			err = multierr.Append(err, errors.Errorf("duplicate agent id %d", a.ID))
		}
		seen[a.ID] = true
		err = multierr.Append(err, a.Validate())
	}
	return err
}

// File bundles a parameter block and a mission, the on-disk layout.
type File struct {
	Param   Param   `yaml:"param"`
	Mission Mission `yaml:"mission"`
}

// Load reads and validates a YAML configuration file. Omitted Param fields
// take defaults.
func Load(path string) (Param, Mission, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Param{}, Mission{}, errors.Wrap(err, "reading config")
	}
	return Parse(raw)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(raw []byte) (Param, Mission, error) {
	f := File{Param: DefaultParam()}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Param{}, Mission{}, errors.Wrap(err, "parsing config")
	}
	if err := multierr.Combine(f.Param.Validate(), f.Mission.Validate()); err != nil {
		return Param{}, Mission{}, err
	}
	return f.Param, f.Mission, nil
}
