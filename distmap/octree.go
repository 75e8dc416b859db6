package distmap

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Node types for the occupancy octree. Each node is either an internal node
// linking to eight octants, an empty leaf, or a filled leaf holding a single
// occupied point.
const (
	internalNode = nodeType(iota)
	leafNodeEmpty
	leafNodeFilled
)

type nodeType uint8

// Octree is a sparse occupancy store for merge-map updates. Peers broadcast
// incremental deltas of occupied points; the map service accumulates them
// here and rasterizes into the distance grid between ticks.
type Octree struct {
	logger     golog.Logger
	node       octreeNode
	center     r3.Vector
	sideLength float64
	size       int
}

type octreeNode struct {
	nodeType nodeType
	children []*Octree
	point    r3.Vector
}

// NewOctree creates an empty octree covering a cube of the given side length
// around center.
func NewOctree(center r3.Vector, sideLength float64, logger golog.Logger) (*Octree, error) {
	if sideLength <= 0 {
		return nil, errors.Errorf("invalid side length (%.2f) for octree", sideLength)
	}
	return &Octree{
		logger:     logger,
		node:       octreeNode{nodeType: leafNodeEmpty},
		center:     center,
		sideLength: sideLength,
	}, nil
}

// Size returns the number of stored points.
func (ot *Octree) Size() int {
	return ot.size
}

// Set inserts an occupied point, splitting leaves into octants as needed.
func (ot *Octree) Set(p r3.Vector) error {
	if !ot.contains(p) {
		return errors.New("point is outside the bounds of this octree")
	}

	switch ot.node.nodeType {
	case internalNode:
		child := ot.childContaining(p)
		before := child.size
		if err := child.Set(p); err != nil {
			return err
		}
		ot.size += child.size - before
	case leafNodeEmpty:
		ot.node = octreeNode{nodeType: leafNodeFilled, point: p}
		ot.size++
	case leafNodeFilled:
		if ot.node.point.Sub(p).Norm() < ot.sideLength*1e-9 {
			// Duplicate insert of the same point.
			return nil
		}
		existing := ot.node.point
		if err := ot.split(); err != nil {
			return err
		}
		ot.size = 0
		if err := ot.Set(existing); err != nil {
			return err
		}
		return ot.Set(p)
	}
	return nil
}

func (ot *Octree) split() error {
	children := make([]*Octree, 0, 8)
	quarter := ot.sideLength / 4
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				childCenter := ot.center.Add(r3.Vector{X: sx * quarter, Y: sy * quarter, Z: sz * quarter})
				child, err := NewOctree(childCenter, ot.sideLength/2, ot.logger)
				if err != nil {
					return err
				}
				children = append(children, child)
			}
		}
	}
	ot.node = octreeNode{nodeType: internalNode, children: children}
	return nil
}

func (ot *Octree) contains(p r3.Vector) bool {
	half := ot.sideLength / 2
	d := p.Sub(ot.center)
	return d.X >= -half && d.X < half && d.Y >= -half && d.Y < half && d.Z >= -half && d.Z < half
}

func (ot *Octree) childContaining(p r3.Vector) *Octree {
	idx := 0
	if p.X >= ot.center.X {
		idx += 4
	}
	if p.Y >= ot.center.Y {
		idx += 2
	}
	if p.Z >= ot.center.Z {
		idx++
	}
	return ot.node.children[idx]
}

// Iterate calls fn for every stored point.
func (ot *Octree) Iterate(fn func(p r3.Vector)) {
	switch ot.node.nodeType {
	case leafNodeFilled:
		fn(ot.node.point)
	case internalNode:
		for _, child := range ot.node.children {
			child.Iterate(fn)
		}
	}
}

// MergeDelta inserts a batch of occupied points, skipping (with a log entry)
// points outside the octree bounds.
func (ot *Octree) MergeDelta(points []r3.Vector) {
	for _, p := range points {
		if err := ot.Set(p); err != nil {
			ot.logger.Debugw("skipping out-of-bounds merge point", "point", p, "error", err)
		}
	}
}

// Rasterize marks every stored point as occupied in the grid and recomputes
// the distance transform.
func (ot *Octree) Rasterize(grid *Grid) {
	ot.Iterate(func(p r3.Vector) {
		grid.SetOccupied(p)
	})
	grid.Compute()
}
