package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	corelp "github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/infra/logger"
)

// DefaultTolerance is the reduced cost threshold of the simplex solvers.
const DefaultTolerance = 1e-9

const (
	pivotTolerance = 1e-9
	feasTolerance  = 1e-7
	// Consecutive degenerate pivots before switching to Bland's rule.
	blandAfter = 64
	// Iterations between context checks.
	checkEvery = 16
)

var (
	errUnbounded      = errors.New("simplex: objective decreases without limit")
	errIterationLimit = errors.New("simplex: iteration limit reached")
)

// Simplex is a two-phase primal simplex on a dense tableau with bounded
// variables. Variable bounds are kept out of the constraint rows, so the
// tableau has one row per model constraint. The context is checked between
// pivots and a cancelled solve stops right away.
type Simplex struct {
	Tolerance float64
	// MaxIterations caps pivots plus bound flips. Zero picks a limit from the
	// model size.
	MaxIterations int
	log           logger.Logger
}

// NewSimplex returns a simplex solver. A non-positive tolerance selects
// DefaultTolerance.
func NewSimplex(tol float64, log logger.Logger) *Simplex {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Simplex{Tolerance: tol, log: log}
}

// Solve implements corelp.Solver.
func (s *Simplex) Solve(ctx context.Context, m *corelp.Model) (sol corelp.Solution) {
	if err := ctx.Err(); err != nil {
		return corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("simplex: %w", err)}
	}
	defer func() {
		if r := recover(); r != nil {
			sol = corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("simplex: %v", r)}
		}
	}()

	r, status, err := presolve(m, s.Tolerance)
	if err != nil || status != corelp.StatusOptimal {
		return corelp.Solution{Status: status, Err: err}
	}

	x := make([]float64, len(r.cost))
	if len(r.rows) > 0 {
		t := newTableau(r, s.Tolerance)
		limit := s.MaxIterations
		if limit <= 0 {
			limit = 20*(t.m+t.n) + 1000
		}
		status, err := t.solve(ctx, limit)
		s.log.Debugw("simplex finished", map[string]any{
			"model":      m.Name,
			"rows":       t.m,
			"columns":    t.n,
			"fixed":      r.fixed,
			"iterations": t.iter,
			"status":     status.String(),
		})
		if status != corelp.StatusOptimal {
			return corelp.Solution{Status: status, Err: err}
		}
		x = t.values()
	}

	values := r.assignment(m, x)
	if err := m.Check(values, feasTolerance*1e2*r.scale()); err != nil {
		return corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("simplex: inaccurate solution: %w", err)}
	}
	return corelp.Solution{
		Status:    corelp.StatusOptimal,
		Objective: m.Objective().Eval(values),
		Values:    values,
	}
}

// tableau holds B⁻¹A for the structural and slack columns. Artificial
// variables have no column: the artificial of row i is only ever basic in
// row i and is marked there as basis[i] == n+i.
type tableau struct {
	m, n    int
	rows    [][]float64
	beta    []float64 // values of the basic variables
	d       []float64 // reduced costs
	cost    []float64 // phase two cost per column
	upper   []float64
	basis   []int
	pos     []int // column -> basic row, -1 when nonbasic
	atUpper []bool
	artHi   float64 // artificial upper bound: +Inf in phase one, 0 in phase two
	nStruct int
	tol     float64
	feasTol float64
	iter    int
}

func newTableau(r *reduced, tol float64) *tableau {
	nStruct := len(r.cost)
	nSlack := 0
	for _, row := range r.rows {
		if row.slack {
			nSlack++
		}
	}
	m, n := len(r.rows), nStruct+nSlack
	t := &tableau{
		m:       m,
		n:       n,
		rows:    make([][]float64, m),
		beta:    make([]float64, m),
		cost:    make([]float64, n),
		upper:   make([]float64, n),
		basis:   make([]int, m),
		pos:     make([]int, n),
		atUpper: make([]bool, n),
		artHi:   math.Inf(1),
		nStruct: nStruct,
		tol:     tol,
		feasTol: feasTolerance * r.scale(),
	}
	copy(t.cost, r.cost)
	copy(t.upper, r.upper)
	for j := nStruct; j < n; j++ {
		t.upper[j] = math.Inf(1)
	}
	for j := range t.pos {
		t.pos[j] = -1
	}

	slack := nStruct
	for i, row := range r.rows {
		a := make([]float64, n)
		for k, j := range row.idx {
			a[j] = row.coef[k]
		}
		b := row.rhs
		t.basis[i] = n + i
		if row.slack {
			a[slack] = 1
			if b >= 0 {
				t.basis[i] = slack
				t.pos[slack] = i
			}
			slack++
		}
		if b < 0 {
			floats.Scale(-1, a)
			b = -b
		}
		t.rows[i] = a
		t.beta[i] = b
	}
	return t
}

func (t *tableau) solve(ctx context.Context, limit int) (corelp.Status, error) {
	t.d = make([]float64, t.n)
	artificial := false
	for i, b := range t.basis {
		if b >= t.n {
			floats.AddScaled(t.d, -1, t.rows[i])
			artificial = true
		}
	}
	if artificial {
		if err := t.iterate(ctx, limit); err != nil {
			return corelp.StatusError, err
		}
		infeas := 0.0
		for i, b := range t.basis {
			if b >= t.n {
				infeas += t.beta[i]
			}
		}
		if infeas > t.feasTol {
			return corelp.StatusInfeasible, fmt.Errorf("simplex: no feasible point, residual %g", infeas)
		}
	}

	t.artHi = 0
	copy(t.d, t.cost)
	for i, b := range t.basis {
		if b < t.n && t.cost[b] != 0 {
			floats.AddScaled(t.d, -t.cost[b], t.rows[i])
		}
	}
	switch err := t.iterate(ctx, limit); {
	case errors.Is(err, errUnbounded):
		return corelp.StatusUnbounded, err
	case err != nil:
		return corelp.StatusError, err
	}
	return corelp.StatusOptimal, nil
}

func (t *tableau) iterate(ctx context.Context, limit int) error {
	degenerate := 0
	for {
		if t.iter%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("simplex: %w", err)
			}
		}
		if t.iter >= limit {
			return errIterationLimit
		}
		t.iter++

		bland := degenerate >= blandAfter
		j, dir := t.entering(bland)
		if j < 0 {
			return nil
		}
		r, theta := t.ratio(j, dir, bland)
		if math.IsInf(theta, 1) {
			return errUnbounded
		}
		if theta <= t.tol {
			degenerate++
		} else {
			degenerate = 0
		}
		t.step(j, dir, r, theta)
	}
}

// entering picks a nonbasic column whose move improves the objective: the
// largest reduced cost, or the lowest index under Bland's rule. dir is +1
// when the column leaves its lower bound and -1 when it leaves its upper one.
func (t *tableau) entering(bland bool) (int, float64) {
	best, col, dir := t.tol, -1, 0.0
	for j, dj := range t.d {
		if t.pos[j] >= 0 || t.upper[j] == 0 {
			continue
		}
		var gain, s float64
		switch {
		case t.atUpper[j] && dj > t.tol:
			gain, s = dj, -1
		case !t.atUpper[j] && dj < -t.tol:
			gain, s = -dj, 1
		default:
			continue
		}
		if bland {
			return j, s
		}
		if gain > best {
			best, col, dir = gain, j, s
		}
	}
	return col, dir
}

// ratio returns the step length and the row whose basic variable blocks it,
// or -1 when the entering column reaches its own opposite bound first.
func (t *tableau) ratio(j int, dir float64, bland bool) (int, float64) {
	theta, row, piv := t.upper[j], -1, 0.0
	for i, a := range t.rows {
		alpha := a[j] * dir
		if math.Abs(alpha) <= pivotTolerance {
			continue
		}
		var lim float64
		if alpha > 0 {
			lim = t.beta[i] / alpha
		} else {
			hi := t.bound(t.basis[i])
			if math.IsInf(hi, 1) {
				continue
			}
			lim = (hi - t.beta[i]) / -alpha
		}
		lim = math.Max(lim, 0)
		switch {
		case lim < theta:
			if row >= 0 && lim > theta-1e-12 && !t.better(i, row, alpha, piv, bland) {
				continue
			}
			theta, row, piv = lim, i, math.Abs(alpha)
		case row >= 0 && lim <= theta+1e-12 && t.better(i, row, alpha, piv, bland):
			row, piv = i, math.Abs(alpha)
		}
	}
	return row, theta
}

// better breaks ratio ties: the smallest basic index under Bland's rule, the
// largest pivot otherwise.
func (t *tableau) better(i, row int, alpha, piv float64, bland bool) bool {
	if bland {
		return t.basis[i] < t.basis[row]
	}
	return math.Abs(alpha) > piv
}

func (t *tableau) bound(v int) float64 {
	if v >= t.n {
		return t.artHi
	}
	return t.upper[v]
}

func (t *tableau) step(j int, dir float64, r int, theta float64) {
	if delta := theta * dir; delta != 0 {
		for i, a := range t.rows {
			if a[j] != 0 {
				t.beta[i] -= a[j] * delta
				if t.beta[i] < 0 && t.beta[i] > -pivotTolerance {
					t.beta[i] = 0
				}
			}
		}
	}
	if r < 0 {
		t.atUpper[j] = !t.atUpper[j]
		return
	}

	enter := theta
	if t.atUpper[j] {
		enter = t.upper[j] - theta
	}
	if leave := t.basis[r]; leave < t.n {
		t.pos[leave] = -1
		t.atUpper[leave] = t.rows[r][j]*dir < 0
	}
	t.pivot(r, j)
	t.basis[r] = j
	t.pos[j] = r
	t.atUpper[j] = false
	t.beta[r] = enter
}

func (t *tableau) pivot(r, j int) {
	pr := t.rows[r]
	floats.Scale(1/pr[j], pr)
	pr[j] = 1
	// Rows stay sparse on charging models; touch only the pivot row's nonzeros.
	var nz []int
	if sparse := t.nonzeros(pr); len(sparse) < t.n/4 {
		nz = sparse
	}
	eliminate := func(a []float64) {
		f := a[j]
		if nz == nil {
			floats.AddScaled(a, -f, pr)
		} else {
			for _, k := range nz {
				a[k] -= f * pr[k]
			}
		}
		a[j] = 0
	}
	for i, a := range t.rows {
		if i != r && a[j] != 0 {
			eliminate(a)
		}
	}
	if t.d[j] != 0 {
		eliminate(t.d)
	}
}

func (t *tableau) nonzeros(a []float64) []int {
	nz := make([]int, 0, 16)
	for k, v := range a {
		if v != 0 {
			nz = append(nz, k)
			if len(nz) >= t.n/4 {
				break
			}
		}
	}
	return nz
}

// values returns the structural column values clamped to their bounds.
func (t *tableau) values() []float64 {
	x := make([]float64, t.nStruct)
	for j := range x {
		switch {
		case t.pos[j] >= 0:
			x[j] = t.beta[t.pos[j]]
		case t.atUpper[j]:
			x[j] = t.upper[j]
		}
		x[j] = math.Min(math.Max(x[j], 0), t.upper[j])
	}
	return x
}
