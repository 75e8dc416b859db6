package planning

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/Geonhee-LEE/lsc-dr-planner/config"
	"github.com/Geonhee-LEE/lsc-dr-planner/planning/qp"
	"github.com/Geonhee-LEE/lsc-dr-planner/trajectory"
)

// assembler translates one tick's constraints into a dense QP over the
// control points of the new trajectory. In 2D mode the z variables are
// fixed to the plane height and removed from the program.
type assembler struct {
	param config.Param
	m     int // segments
	n     int // degree
	dim   int // active axes
}

func newAssembler(param config.Param) *assembler {
	dim := 3
	if param.WorldDimension == 2 {
		dim = 2
	}
	return &assembler{param: param, m: param.SegmentCount, n: param.BasisDegree, dim: dim}
}

func (a *assembler) numVars() int {
	return a.m * (a.n + 1) * a.dim
}

// idx maps (segment, control point, axis) onto the flat variable vector.
func (a *assembler) idx(seg, cp, axis int) int {
	return (seg*(a.n+1)+cp)*a.dim + axis
}

func axisValue(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Assemble builds the full QP for a tick.
func (a *assembler) Assemble(
	agent *Agent,
	warmStart trajectory.Trajectory,
	lscs []LSC,
	sfcs []SFC,
) (*qp.Problem, error) {
	if len(warmStart.Segments) != a.m {
		return nil, errors.Errorf("warm start has %d segments, want %d", len(warmStart.Segments), a.m)
	}

	nVars := a.numVars()
	warm := a.warmVector(warmStart)

	p, q := a.objective(warm)
	aeq, beq := a.equalities(agent)
	ain, bin := a.inequalities(agent, lscs, sfcs)

	prob := &qp.Problem{
		P:    p,
		Q:    q,
		Warm: warm,
	}
	if len(beq) > 0 {
		prob.Aeq = mat.NewDense(len(beq), nVars, aeq)
		prob.Beq = mat.NewVecDense(len(beq), beq)
	}
	if len(bin) > 0 {
		prob.Ain = mat.NewDense(len(bin), nVars, ain)
		prob.Bin = mat.NewVecDense(len(bin), bin)
	}
	return prob, nil
}

func (a *assembler) warmVector(warmStart trajectory.Trajectory) []float64 {
	warm := make([]float64, a.numVars())
	for k, seg := range warmStart.Segments {
		for i, pt := range seg.ControlPoints {
			for ax := 0; ax < a.dim; ax++ {
				warm[a.idx(k, i, ax)] = axisValue(pt, ax)
			}
		}
	}
	return warm
}

// objective builds P and q for the weighted jerk and snap energies
// sum_k jerkW*∫‖x⁽³⁾‖² + snapW*∫‖x⁽⁴⁾‖², expressed exactly in the Bernstein
// basis, plus a warm-start ridge that also keeps P positive definite.
func (a *assembler) objective(warm []float64) (*mat.SymDense, *mat.VecDense) {
	n := a.n
	dt := a.param.SegmentDuration

	block := make([][]float64, n+1)
	for i := range block {
		block[i] = make([]float64, n+1)
	}
	if a.param.JerkWeight > 0 && n >= 3 {
		d3 := composeDiffs(n, dt, 3)
		addQuadraticForm(block, d3, trajectory.BasisGramian(n-3, dt), a.param.JerkWeight)
	}
	if a.param.SnapWeight > 0 && n >= 4 {
		d4 := composeDiffs(n, dt, 4)
		addQuadraticForm(block, d4, trajectory.BasisGramian(n-4, dt), a.param.SnapWeight)
	}

	nVars := a.numVars()
	p := mat.NewSymDense(nVars, nil)
	for k := 0; k < a.m; k++ {
		for ax := 0; ax < a.dim; ax++ {
			for i := 0; i <= n; i++ {
				for j := i; j <= n; j++ {
					vi := a.idx(k, i, ax)
					vj := a.idx(k, j, ax)
					if vi > vj {
						vi, vj = vj, vi
					}
					p.SetSym(vi, vj, p.At(vi, vj)+2*block[i][j])
				}
			}
		}
	}

	w := a.param.WarmStartWeight
	q := mat.NewVecDense(nVars, nil)
	for i := 0; i < nVars; i++ {
		p.SetSym(i, i, p.At(i, i)+2*w)
		q.SetVec(i, -2*w*warm[i])
	}
	return p, q
}

// composeDiffs returns the operator taking control points to the control
// points of the order-th derivative.
func composeDiffs(n int, dt float64, order int) [][]float64 {
	out := trajectory.DifferenceMatrix(n, dt)
	for o := 1; o < order; o++ {
		out = matMul(trajectory.DifferenceMatrix(n-o, dt), out)
	}
	return out
}

// addQuadraticForm accumulates weight * Dᵀ G D into block.
func addQuadraticForm(block, d, g [][]float64, weight float64) {
	gd := matMul(g, d)
	dtgd := matMul(transpose(d), gd)
	for i := range block {
		for j := range block[i] {
			block[i][j] += weight * dtgd[i][j]
		}
	}
}

func matMul(a, b [][]float64) [][]float64 {
	rows := len(a)
	inner := len(b)
	cols := len(b[0])
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for k := 0; k < inner; k++ {
			if a[i][k] == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func transpose(a [][]float64) [][]float64 {
	out := make([][]float64, len(a[0]))
	for i := range out {
		out[i] = make([]float64, len(a))
		for j := range a {
			out[i][j] = a[j][i]
		}
	}
	return out
}

// equalities builds initial-state, continuity, and terminal-rest rows.
func (a *assembler) equalities(agent *Agent) ([]float64, []float64) {
	n := a.n
	dt := a.param.SegmentDuration
	nVars := a.numVars()
	velScale := float64(n) / dt
	accScale := float64(n*(n-1)) / (dt * dt)

	var rows []float64
	var rhs []float64
	addRow := func(coeffs map[int]float64, b float64) {
		row := make([]float64, nVars)
		for i, c := range coeffs {
			row[i] = c
		}
		rows = append(rows, row...)
		rhs = append(rhs, b)
	}

	for ax := 0; ax < a.dim; ax++ {
		pos := axisValue(agent.CurrentState.Position, ax)
		vel := axisValue(agent.CurrentState.Velocity, ax)
		acc := axisValue(agent.CurrentState.Acceleration, ax)

		// Initial state.
		addRow(map[int]float64{a.idx(0, 0, ax): 1}, pos)
		addRow(map[int]float64{
			a.idx(0, 0, ax): -velScale,
			a.idx(0, 1, ax): velScale,
		}, vel)
		addRow(map[int]float64{
			a.idx(0, 0, ax): accScale,
			a.idx(0, 1, ax): -2 * accScale,
			a.idx(0, 2, ax): accScale,
		}, acc)

		// C2 continuity across boundaries. Equal segment durations cancel
		// the derivative scale factors.
		for k := 1; k < a.m; k++ {
			addRow(map[int]float64{
				a.idx(k-1, n, ax): 1,
				a.idx(k, 0, ax):   -1,
			}, 0)
			addRow(map[int]float64{
				a.idx(k-1, n, ax):   1,
				a.idx(k-1, n-1, ax): -1,
				a.idx(k, 1, ax):     -1,
				a.idx(k, 0, ax):     1,
			}, 0)
			addRow(map[int]float64{
				a.idx(k-1, n, ax):   1,
				a.idx(k-1, n-1, ax): -2,
				a.idx(k-1, n-2, ax): 1,
				a.idx(k, 2, ax):     -1,
				a.idx(k, 1, ax):     2,
				a.idx(k, 0, ax):     -1,
			}, 0)
		}

		// Terminal rest.
		addRow(map[int]float64{
			a.idx(a.m-1, n, ax):   1,
			a.idx(a.m-1, n-1, ax): -1,
		}, 0)
		addRow(map[int]float64{
			a.idx(a.m-1, n, ax):   1,
			a.idx(a.m-1, n-1, ax): -2,
			a.idx(a.m-1, n-2, ax): 1,
		}, 0)
	}
	return rows, rhs
}

// inequalities builds dynamic-limit, LSC, and SFC rows in the form
// Ain x <= bin.
func (a *assembler) inequalities(agent *Agent, lscs []LSC, sfcs []SFC) ([]float64, []float64) {
	n := a.n
	dt := a.param.SegmentDuration
	nVars := a.numVars()
	velScale := float64(n) / dt
	accScale := float64(n*(n-1)) / (dt * dt)

	var rows []float64
	var rhs []float64
	addRow := func(coeffs map[int]float64, b float64) {
		row := make([]float64, nVars)
		for i, c := range coeffs {
			row[i] = c
		}
		rows = append(rows, row...)
		rhs = append(rhs, b)
	}

	// Velocity and acceleration bounds on derivative control points.
	maxVel := agent.MaxVel.R3()
	maxAcc := agent.MaxAcc.R3()
	for k := 0; k < a.m; k++ {
		for ax := 0; ax < a.dim; ax++ {
			vm := axisValue(maxVel, ax)
			am := axisValue(maxAcc, ax)
			for i := 0; i < n; i++ {
				addRow(map[int]float64{
					a.idx(k, i+1, ax): velScale,
					a.idx(k, i, ax):   -velScale,
				}, vm)
				addRow(map[int]float64{
					a.idx(k, i+1, ax): -velScale,
					a.idx(k, i, ax):   velScale,
				}, vm)
			}
			for i := 0; i < n-1; i++ {
				addRow(map[int]float64{
					a.idx(k, i+2, ax): accScale,
					a.idx(k, i+1, ax): -2 * accScale,
					a.idx(k, i, ax):   accScale,
				}, am)
				addRow(map[int]float64{
					a.idx(k, i+2, ax): -accScale,
					a.idx(k, i+1, ax): 2 * accScale,
					a.idx(k, i, ax):   -accScale,
				}, am)
			}
		}
	}

	// LSC half-spaces: Normal·p >= Offset for every control point of the
	// segment. In 2D the fixed z contributes a constant.
	for _, l := range lscs {
		offset := l.Offset
		if a.dim == 2 {
			offset -= l.Normal.Z * a.param.WorldZ2D
		}
		for i := 0; i <= n; i++ {
			coeffs := map[int]float64{
				a.idx(l.SegmentIdx, i, 0): -l.Normal.X,
				a.idx(l.SegmentIdx, i, 1): -l.Normal.Y,
			}
			if a.dim == 3 {
				coeffs[a.idx(l.SegmentIdx, i, 2)] = -l.Normal.Z
			}
			addRow(coeffs, -offset)
		}
	}

	// SFC boxes bound every control point of their segment per axis.
	for _, s := range sfcs {
		for i := 0; i <= n; i++ {
			for ax := 0; ax < a.dim; ax++ {
				addRow(map[int]float64{a.idx(s.SegmentIdx, i, ax): 1}, axisValue(s.Max, ax))
				addRow(map[int]float64{a.idx(s.SegmentIdx, i, ax): -1}, -axisValue(s.Min, ax))
			}
		}
	}

	return rows, rhs
}

// trajectoryFromSolution rebuilds the piecewise polynomial from the solved
// variable vector and snaps the first three control points onto the exact
// current state. The solver meets the initial-state equalities to its own
// tolerance; the snap removes that residual so the emitted trajectory
// reproduces the input state to machine precision.
func (a *assembler) trajectoryFromSolution(x []float64, tickStart float64, agent *Agent) (trajectory.Trajectory, error) {
	cps := make([][]r3.Vector, a.m)
	for k := 0; k < a.m; k++ {
		pts := make([]r3.Vector, a.n+1)
		for i := 0; i <= a.n; i++ {
			var v r3.Vector
			v.X = x[a.idx(k, i, 0)]
			v.Y = x[a.idx(k, i, 1)]
			if a.dim == 3 {
				v.Z = x[a.idx(k, i, 2)]
			} else {
				v.Z = a.param.WorldZ2D
			}
			pts[i] = v
		}
		cps[k] = pts
	}

	n := a.n
	dt := a.param.SegmentDuration
	pos := agent.CurrentState.Position
	vel := agent.CurrentState.Velocity
	acc := agent.CurrentState.Acceleration
	if a.dim == 2 {
		pos.Z = a.param.WorldZ2D
		vel.Z = 0
		acc.Z = 0
	}
	cps[0][0] = pos
	cps[0][1] = pos.Add(vel.Mul(dt / float64(n)))
	cps[0][2] = acc.Mul(dt * dt / float64(n*(n-1))).Add(cps[0][1].Mul(2)).Sub(cps[0][0])

	return trajectory.New(tickStart, a.param.SegmentDuration, cps)
}
