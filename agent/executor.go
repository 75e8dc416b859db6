package agent

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// CommandExecutor is the external collaborator that turns planned
// trajectories into actuator setpoints and reports back what the vehicle
// actually did. The planner only needs this narrow view of it.
type CommandExecutor interface {
	// UpdateTrajectory hands over the freshly planned trajectory.
	UpdateTrajectory(traj trajectory.Trajectory, tick float64)
	// IsDisturbed reports whether the vehicle deviated from the plan beyond
	// the executor's tolerance since the last tick.
	IsDisturbed() bool
	// ObservedPosition returns the externally observed vehicle position and
	// whether an observation is available.
	ObservedPosition() (r3.Vector, bool)
	// Landing drives the landing sequence; called once per tick while the
	// planner is in the Land state.
	Landing()
	// LandingFinished reports whether a commanded landing has completed.
	LandingFinished() bool
}

// SimExecutor is a scriptable CommandExecutor for co-simulation and tests.
type SimExecutor struct {
	mu sync.Mutex

	traj        trajectory.Trajectory
	trajTick    float64
	disturbed   bool
	observedPos r3.Vector
	hasObserved bool

	landingTicks    int
	landingElapsed  int
	landingActive   bool
	landingComplete bool
}

// NewSimExecutor returns an executor whose landing takes landingTicks calls.
func NewSimExecutor(landingTicks int) *SimExecutor {
	return &SimExecutor{landingTicks: landingTicks}
}

// UpdateTrajectory implements CommandExecutor.
func (e *SimExecutor) UpdateTrajectory(traj trajectory.Trajectory, tick float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.traj = traj
	e.trajTick = tick
}

// Trajectory returns the most recently handed-over trajectory.
func (e *SimExecutor) Trajectory() trajectory.Trajectory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.traj
}

// SetDisturbance scripts a disturbance observation for the next tick.
func (e *SimExecutor) SetDisturbance(observed r3.Vector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disturbed = true
	e.observedPos = observed
	e.hasObserved = true
}

// ClearDisturbance removes the scripted disturbance.
func (e *SimExecutor) ClearDisturbance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disturbed = false
}

// IsDisturbed implements CommandExecutor.
func (e *SimExecutor) IsDisturbed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disturbed
}

// ObservedPosition implements CommandExecutor.
func (e *SimExecutor) ObservedPosition() (r3.Vector, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observedPos, e.hasObserved
}

// Landing implements CommandExecutor.
func (e *SimExecutor) Landing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.landingActive = true
	e.landingElapsed++
	if e.landingElapsed >= e.landingTicks {
		e.landingComplete = true
	}
}

// LandingFinished implements CommandExecutor.
func (e *SimExecutor) LandingFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.landingComplete
}

// LandingActive reports whether landing has been driven at least once.
func (e *SimExecutor) LandingActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.landingActive
}
