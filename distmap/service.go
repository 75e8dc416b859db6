package distmap

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Service owns the static-environment map for one agent: an occupancy
// octree accumulating merge-map deltas from peers, and the distance grid
// rasterized from it. The planner reads the grid for a whole tick; the
// service swaps a freshly computed grid in atomically between ticks, so
// readers never observe a half-built transform.
type Service struct {
	logger golog.Logger

	origin     r3.Vector
	nx, ny, nz int
	resolution float64

	octree *Octree

	mu      sync.RWMutex
	current *Grid
	dirty   bool
}

// NewService allocates the octree and an initially empty grid.
func NewService(origin r3.Vector, nx, ny, nz int, resolution float64, logger golog.Logger) (*Service, error) {
	grid, err := NewGrid(origin, nx, ny, nz, resolution)
	if err != nil {
		return nil, err
	}
	grid.Compute()

	side := resolution * float64(maxInt(nx, maxInt(ny, nz)))
	center := origin.Add(r3.Vector{
		X: float64(nx) * resolution / 2,
		Y: float64(ny) * resolution / 2,
		Z: float64(nz) * resolution / 2,
	})
	octree, err := NewOctree(center, side, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:     logger,
		origin:     origin,
		nx:         nx,
		ny:         ny,
		nz:         nz,
		resolution: resolution,
		octree:     octree,
		current:    grid,
	}, nil
}

// MergeDelta accumulates an incremental batch of occupied points. The
// distance grid is not rebuilt here; call Refresh at a tick boundary.
func (s *Service) MergeDelta(points []r3.Vector) {
	if len(points) == 0 {
		return
	}
	s.octree.MergeDelta(points)
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Refresh rebuilds the distance grid from the accumulated octree if any
// deltas arrived, and swaps it in atomically.
func (s *Service) Refresh() error {
	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()
	if !dirty {
		return nil
	}

	grid, err := NewGrid(s.origin, s.nx, s.ny, s.nz, s.resolution)
	if err != nil {
		return errors.Wrap(err, "rebuilding distance grid")
	}
	s.octree.Rasterize(grid)

	s.mu.Lock()
	s.current = grid
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Distance implements DistanceMap against the current grid.
func (s *Service) Distance(p r3.Vector) float64 {
	s.mu.RLock()
	grid := s.current
	s.mu.RUnlock()
	return grid.Distance(p)
}

// Resolution implements DistanceMap.
func (s *Service) Resolution() float64 {
	return s.resolution
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
