// Package distmap provides the static-environment distance field consumed by
// the safe flight corridor constructor: a Euclidean distance transform over a
// voxel occupancy grid, fed by incremental octree merges. From the planner's
// perspective the map is read-only during a tick; swap-in happens between
// ticks.
package distmap

import "github.com/golang/geo/r3"

// DistanceMap answers distance-to-nearest-static-obstacle queries.
type DistanceMap interface {
	// Distance returns the Euclidean distance from p to the nearest
	// occupied voxel. An empty map returns a large finite sentinel (1e9)
	// rather than +Inf.
	Distance(p r3.Vector) float64
	// Resolution returns the voxel edge length.
	Resolution() float64
}

// EmptyMap is a DistanceMap with no obstacles.
type EmptyMap struct{ Res float64 }

// Distance implements DistanceMap.
func (e EmptyMap) Distance(r3.Vector) float64 { return infDistance }

// Resolution implements DistanceMap.
func (e EmptyMap) Resolution() float64 {
	if e.Res <= 0 {
		return 0.1
	}
	return e.Res
}

const infDistance = 1e9
