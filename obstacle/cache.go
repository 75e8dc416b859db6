package obstacle

import (
	"sort"
	"sync"
)

// Cache keeps the most recent report for every obstacle so that a replanning
// tick can take a consistent value snapshot. Missed messages are tolerated:
// the last known report for a neighbor stays in the cache and its trajectory
// is reused; a neighbor that never reported a trajectory is modeled by its
// current state alone.
type Cache struct {
	mu     sync.Mutex
	latest map[int]Obstacle
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{latest: map[int]Obstacle{}}
}

// Update merges a batch of obstacle reports into the cache. A report with an
// empty trajectory does not erase a previously known trajectory for the same
// agent; the stale trajectory remains the best available prediction.
func (c *Cache) Update(reports []Obstacle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range reports {
		if prev, ok := c.latest[o.ID]; ok && o.Type == Agent && !o.HasTrajectory() && prev.HasTrajectory() {
			o.PrevTraj = prev.PrevTraj
		}
		c.latest[o.ID] = o
	}
}

// Snapshot returns a value copy of every cached obstacle except selfID,
// ordered by id so that downstream constraint construction is deterministic.
func (c *Cache) Snapshot(selfID int) []Obstacle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Obstacle, 0, len(c.latest))
	for id, o := range c.latest {
		if id == selfID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached obstacles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.latest)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = map[int]Obstacle{}
}
