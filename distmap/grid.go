package distmap

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Grid is a dense voxel occupancy grid with a precomputed exact Euclidean
// distance transform. Mutations (SetOccupied, AddBox, merges) invalidate the
// transform; Compute rebuilds it. The planner only ever calls Distance, so a
// map service owning a Grid recomputes before swapping it in.
type Grid struct {
	origin     r3.Vector
	resolution float64
	nx, ny, nz int

	occupied []bool
	dist     []float64
	computed bool
}

// NewGrid allocates a grid of nx x ny x nz voxels starting at origin.
func NewGrid(origin r3.Vector, nx, ny, nz int, resolution float64) (*Grid, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, errors.Errorf("invalid grid dimensions %dx%dx%d", nx, ny, nz)
	}
	if resolution <= 0 {
		return nil, errors.Errorf("invalid grid resolution %f", resolution)
	}
	return &Grid{
		origin:     origin,
		resolution: resolution,
		nx:         nx,
		ny:         ny,
		nz:         nz,
		occupied:   make([]bool, nx*ny*nz),
	}, nil
}

// Resolution implements DistanceMap.
func (g *Grid) Resolution() float64 { return g.resolution }

func (g *Grid) index(ix, iy, iz int) int {
	return (iz*g.ny+iy)*g.nx + ix
}

func (g *Grid) voxelOf(p r3.Vector) (int, int, int, bool) {
	rel := p.Sub(g.origin)
	ix := int(math.Floor(rel.X / g.resolution))
	iy := int(math.Floor(rel.Y / g.resolution))
	iz := int(math.Floor(rel.Z / g.resolution))
	ok := ix >= 0 && ix < g.nx && iy >= 0 && iy < g.ny && iz >= 0 && iz < g.nz
	return ix, iy, iz, ok
}

// VoxelCenter returns the center of the voxel containing p, snapped to the
// grid lattice regardless of bounds.
func (g *Grid) VoxelCenter(p r3.Vector) r3.Vector {
	rel := p.Sub(g.origin)
	return g.origin.Add(r3.Vector{
		X: (math.Floor(rel.X/g.resolution) + 0.5) * g.resolution,
		Y: (math.Floor(rel.Y/g.resolution) + 0.5) * g.resolution,
		Z: (math.Floor(rel.Z/g.resolution) + 0.5) * g.resolution,
	})
}

// SetOccupied marks the voxel containing p. Points outside the grid are
// ignored.
func (g *Grid) SetOccupied(p r3.Vector) {
	if ix, iy, iz, ok := g.voxelOf(p); ok {
		g.occupied[g.index(ix, iy, iz)] = true
		g.computed = false
	}
}

// AddBox marks every voxel intersecting the axis-aligned box described by
// its center and half dimensions.
func (g *Grid) AddBox(center, halfDims r3.Vector) {
	min := center.Sub(halfDims)
	max := center.Add(halfDims)
	for x := min.X + g.resolution/2; x < max.X; x += g.resolution {
		for y := min.Y + g.resolution/2; y < max.Y; y += g.resolution {
			for z := min.Z + g.resolution/2; z < max.Z; z += g.resolution {
				g.SetOccupied(r3.Vector{X: x, Y: y, Z: z})
			}
		}
	}
}

// Compute rebuilds the exact Euclidean distance transform with the
// Felzenszwalb-Huttenlocher separable parabola method, one pass per axis on
// squared distances measured in voxel units.
func (g *Grid) Compute() {
	n := len(g.occupied)
	sq := make([]float64, n)
	for i, occ := range g.occupied {
		if occ {
			sq[i] = 0
		} else {
			sq[i] = math.Inf(1)
		}
	}

	// X axis.
	row := make([]float64, g.nx)
	for iz := 0; iz < g.nz; iz++ {
		for iy := 0; iy < g.ny; iy++ {
			for ix := 0; ix < g.nx; ix++ {
				row[ix] = sq[g.index(ix, iy, iz)]
			}
			out := edt1d(row)
			for ix := 0; ix < g.nx; ix++ {
				sq[g.index(ix, iy, iz)] = out[ix]
			}
		}
	}

	// Y axis.
	col := make([]float64, g.ny)
	for iz := 0; iz < g.nz; iz++ {
		for ix := 0; ix < g.nx; ix++ {
			for iy := 0; iy < g.ny; iy++ {
				col[iy] = sq[g.index(ix, iy, iz)]
			}
			out := edt1d(col)
			for iy := 0; iy < g.ny; iy++ {
				sq[g.index(ix, iy, iz)] = out[iy]
			}
		}
	}

	// Z axis.
	pil := make([]float64, g.nz)
	for iy := 0; iy < g.ny; iy++ {
		for ix := 0; ix < g.nx; ix++ {
			for iz := 0; iz < g.nz; iz++ {
				pil[iz] = sq[g.index(ix, iy, iz)]
			}
			out := edt1d(pil)
			for iz := 0; iz < g.nz; iz++ {
				sq[g.index(ix, iy, iz)] = out[iz]
			}
		}
	}

	g.dist = make([]float64, n)
	for i, d2 := range sq {
		if math.IsInf(d2, 1) {
			g.dist[i] = infDistance
		} else {
			g.dist[i] = math.Sqrt(d2) * g.resolution
		}
	}
	g.computed = true
}

// Distance implements DistanceMap. Queries outside the grid clamp to the
// nearest voxel inside it.
func (g *Grid) Distance(p r3.Vector) float64 {
	if !g.computed {
		g.Compute()
	}
	rel := p.Sub(g.origin)
	ix := clampInt(int(math.Floor(rel.X/g.resolution)), 0, g.nx-1)
	iy := clampInt(int(math.Floor(rel.Y/g.resolution)), 0, g.ny-1)
	iz := clampInt(int(math.Floor(rel.Z/g.resolution)), 0, g.nz-1)
	return g.dist[g.index(ix, iy, iz)]
}

// Occupied reports whether the voxel containing p is occupied.
func (g *Grid) Occupied(p r3.Vector) bool {
	ix, iy, iz, ok := g.voxelOf(p)
	if !ok {
		return false
	}
	return g.occupied[g.index(ix, iy, iz)]
}

func clampInt(x, min, max int) int {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// edt1d computes the lower envelope of parabolas rooted at the input squared
// distances, the 1D step of the separable exact EDT. Entries of +Inf carry
// no parabola.
func edt1d(f []float64) []float64 {
	n := len(f)
	out := make([]float64, n)

	sites := make([]int, 0, n)
	for i, fi := range f {
		if !math.IsInf(fi, 1) {
			sites = append(sites, i)
		}
	}
	if len(sites) == 0 {
		for i := range out {
			out[i] = math.Inf(1)
		}
		return out
	}

	v := make([]int, len(sites))
	z := make([]float64, len(sites)+1)
	k := 0
	v[0] = sites[0]
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)

	for _, q := range sites[1:] {
		var s float64
		for {
			p := v[k]
			s = ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
			if s <= z[k] {
				k--
			} else {
				break
			}
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		p := v[k]
		d := float64(q - p)
		out[q] = d*d + f[p]
	}
	return out
}
