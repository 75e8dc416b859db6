// Package comm carries the coordination protocol transport: every agent
// broadcasts an agent-as-obstacle message each tick and consumes its peers'
// latest broadcasts at the next tick boundary. The Bus interface abstracts
// the transport; an in-process bus serves co-simulation and tests, a NATS
// bus serves distributed deployments.
package comm

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/Geonhee-LEE/lsc-dr-planner/obstacle"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// Vec3 is the wire form of a vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vec3Of(v r3.Vector) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vec3) r3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// TrajectoryMsg is the wire form of a piecewise Bernstein trajectory.
type TrajectoryMsg struct {
	StartTime       float64  `json:"start_time"`
	SegmentDuration float64  `json:"segment_duration"`
	SegmentCount    int      `json:"segment_count"`
	BasisDegree     int      `json:"basis_degree"`
	ControlPoints   [][]Vec3 `json:"control_points"`
}

// NewTrajectoryMsg converts a trajectory for broadcast.
func NewTrajectoryMsg(traj trajectory.Trajectory) *TrajectoryMsg {
	if traj.Empty() {
		return nil
	}
	cps := traj.ControlPoints()
	wire := make([][]Vec3, len(cps))
	for i, seg := range cps {
		wire[i] = make([]Vec3, len(seg))
		for j, p := range seg {
			wire[i][j] = vec3Of(p)
		}
	}
	return &TrajectoryMsg{
		StartTime:       traj.StartTime,
		SegmentDuration: traj.SegmentDuration(),
		SegmentCount:    len(cps),
		BasisDegree:     traj.Degree(),
		ControlPoints:   wire,
	}
}

// Trajectory rebuilds the in-memory trajectory.
func (m *TrajectoryMsg) Trajectory() (trajectory.Trajectory, error) {
	if m == nil || len(m.ControlPoints) == 0 {
		return trajectory.Trajectory{}, errors.New("empty trajectory message")
	}
	cps := make([][]r3.Vector, len(m.ControlPoints))
	for i, seg := range m.ControlPoints {
		cps[i] = make([]r3.Vector, len(seg))
		for j, p := range seg {
			cps[i][j] = p.r3()
		}
	}
	return trajectory.New(m.StartTime, m.SegmentDuration, cps)
}

// AgentStateMsg is the per-tick agent-as-obstacle broadcast.
type AgentStateMsg struct {
	ID             int            `json:"id"`
	Position       Vec3           `json:"position"`
	Velocity       Vec3           `json:"velocity"`
	Goal           Vec3           `json:"goal"`
	Radius         float64        `json:"radius"`
	Downwash       float64        `json:"downwash"`
	MaxAcc         float64        `json:"max_acc"`
	CollisionAlert bool           `json:"collision_alert"`
	PrevTraj       *TrajectoryMsg `json:"prev_traj,omitempty"`
}

// NewAgentStateMsg builds the broadcast from an obstacle-view of an agent.
func NewAgentStateMsg(o obstacle.Obstacle) AgentStateMsg {
	msg := AgentStateMsg{
		ID:             o.ID,
		Position:       vec3Of(o.Position),
		Velocity:       vec3Of(o.Velocity),
		Goal:           vec3Of(o.Goal),
		Radius:         o.Radius,
		Downwash:       o.Downwash,
		MaxAcc:         o.MaxAcc,
		CollisionAlert: o.CollisionAlert,
	}
	if o.HasTrajectory() {
		msg.PrevTraj = NewTrajectoryMsg(o.PrevTraj)
	}
	return msg
}

// Obstacle converts the broadcast back into the local obstacle model. A
// malformed embedded trajectory degrades to a trajectory-less agent rather
// than failing the whole snapshot.
func (m AgentStateMsg) Obstacle() obstacle.Obstacle {
	o := obstacle.Obstacle{
		ID:             m.ID,
		Type:           obstacle.Agent,
		Position:       m.Position.r3(),
		Velocity:       m.Velocity.r3(),
		Goal:           m.Goal.r3(),
		Radius:         m.Radius,
		Downwash:       m.Downwash,
		MaxAcc:         m.MaxAcc,
		CollisionAlert: m.CollisionAlert,
	}
	if m.PrevTraj != nil {
		if traj, err := m.PrevTraj.Trajectory(); err == nil {
			o.PrevTraj = traj
		}
	}
	return o
}
