package planning

import "github.com/golang/geo/r3"

// Priority is a totally ordered key: agents closer to their goal rank
// higher, with the stable id breaking exact ties. Both sides of a pair
// compute the same order from broadcast state, so no negotiation is needed.
type Priority struct {
	DistToGoal float64
	ID         int
}

// NewPriority builds the key from an agent's position and desired goal.
func NewPriority(id int, position, goal r3.Vector) Priority {
	return Priority{DistToGoal: position.Distance(goal), ID: id}
}

// HigherThan reports whether p outranks other. The order is total: distance
// ascending, then id ascending, and ids are unique.
func (p Priority) HigherThan(other Priority) bool {
	if p.DistToGoal != other.DistToGoal {
		return p.DistToGoal < other.DistToGoal
	}
	return p.ID < other.ID
}
