package planning

import (
	"time"

	"github.com/Geonhee-LEE/lsc-dr-planner/planning/qp"
)

// Statistics records what one plan call did and how long each phase took.
type Statistics struct {
	Seq int

	InitialTrajTime time.Duration
	ConstraintTime  time.Duration
	SolveTime       time.Duration
	TotalTime       time.Duration

	QPStatus       qp.Status
	QPIterations   int
	LSCConstraints int
	SFCConstraints int

	CollisionAlert bool
	Report         Report
}
