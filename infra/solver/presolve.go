package solver

import (
	"errors"
	"fmt"
	"math"
	"sort"

	corelp "github.com/kilianp07/evplan/core/lp"
)

// ErrFreeVariable is returned for variables without a finite lower bound.
var ErrFreeVariable = errors.New("simplex: variables need a finite lower bound")

// reduced is a model with fixed variables substituted and lower bounds
// shifted to zero:
//
//	minimize cost·x  s.t.  rows,  0 <= x <= upper
//
// Every column appears in at least one row. Variables that appear in none are
// settled at the bound their cost prefers.
type reduced struct {
	cost  []float64
	upper []float64   // +Inf when unbounded
	rows  []sparseRow // column indices, ascending
	col   []int       // model variable -> column, -1 when not a column
	base  []float64   // variable value when its column is zero
	fixed int
	tol   float64
}

// sparseRow is Σ coef·x <= rhs when slack is set, Σ coef·x == rhs otherwise.
type sparseRow struct {
	idx   []int
	coef  []float64
	rhs   float64
	slack bool
}

//gocyclo:ignore
func presolve(m *corelp.Model, tol float64) (*reduced, corelp.Status, error) {
	vars := m.Variables()
	n := len(vars)
	base := make([]float64, n)
	fixed := make([]bool, n)
	nFixed := 0
	for i, v := range vars {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) || math.IsNaN(v.Upper) {
			return nil, corelp.StatusError, fmt.Errorf("%w: %s", ErrFreeVariable, v.Name)
		}
		if v.Upper < v.Lower {
			return nil, corelp.StatusInfeasible, fmt.Errorf("simplex: empty bounds for %s", v.Name)
		}
		base[i] = v.Lower
		if v.Fixed() {
			fixed[i] = true
			nFixed++
		}
	}

	var rows []sparseRow
	for _, c := range m.Constraints() {
		acc := make(map[int]float64, len(c.Terms))
		rhs := c.RHS
		for _, t := range c.Terms {
			rhs -= t.Coef * base[t.Var]
			if !fixed[t.Var] {
				acc[int(t.Var)] += t.Coef
			}
		}
		row := sparseRow{rhs: rhs, slack: c.Sense != corelp.Equal}
		for j, v := range acc {
			if v != 0 {
				row.idx = append(row.idx, j)
				row.coef = append(row.coef, v)
			}
		}
		if len(row.idx) == 0 {
			if !emptyRowHolds(c.Sense, rhs, tol) {
				return nil, corelp.StatusInfeasible, fmt.Errorf("simplex: constraint %s cannot hold", c.Name)
			}
			continue
		}
		sortRow(&row)
		if c.Sense == corelp.GreaterEq {
			for k := range row.coef {
				row.coef[k] = -row.coef[k]
			}
			row.rhs = -row.rhs
		}
		rows = append(rows, row)
	}

	obj := make([]float64, n)
	for _, t := range m.Objective().Terms {
		obj[t.Var] += t.Coef
	}
	used := make([]bool, n)
	for _, r := range rows {
		for _, j := range r.idx {
			used[j] = true
		}
	}

	r := &reduced{col: make([]int, n), base: base, fixed: nFixed, tol: tol}
	for i, v := range vars {
		r.col[i] = -1
		if fixed[i] {
			continue
		}
		if !used[i] {
			if obj[i] < 0 {
				if math.IsInf(v.Upper, 1) {
					return nil, corelp.StatusUnbounded, fmt.Errorf("simplex: %s decreases the objective without limit", v.Name)
				}
				base[i] = v.Upper
			}
			continue
		}
		r.col[i] = len(r.cost)
		r.cost = append(r.cost, obj[i])
		r.upper = append(r.upper, v.Upper-v.Lower)
	}
	for k := range rows {
		for p, j := range rows[k].idx {
			rows[k].idx[p] = r.col[j]
		}
	}
	r.rows = rows
	return r, corelp.StatusOptimal, nil
}

func emptyRowHolds(sense corelp.Sense, rhs, tol float64) bool {
	switch sense {
	case corelp.LessEq:
		return 0 <= rhs+tol
	case corelp.GreaterEq:
		return 0 >= rhs-tol
	default:
		return math.Abs(rhs) <= tol
	}
}

func sortRow(r *sparseRow) {
	perm := make([]int, len(r.idx))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool { return r.idx[perm[a]] < r.idx[perm[b]] })
	idx := make([]int, len(perm))
	coef := make([]float64, len(perm))
	for i, p := range perm {
		idx[i] = r.idx[p]
		coef[i] = r.coef[p]
	}
	r.idx, r.coef = idx, coef
}

// assignment maps column values back onto model variables, snapping values
// that overshoot a bound by less than the tolerance.
func (r *reduced) assignment(m *corelp.Model, x []float64) []float64 {
	vars := m.Variables()
	out := make([]float64, len(vars))
	for i, v := range vars {
		val := r.base[i]
		if j := r.col[i]; j >= 0 {
			val += x[j]
		}
		if val < v.Lower && v.Lower-val <= r.tol*1e3 {
			val = v.Lower
		}
		if val > v.Upper && val-v.Upper <= r.tol*1e3 {
			val = v.Upper
		}
		out[i] = val
	}
	return out
}

// scale is the largest absolute right-hand side, at least one.
func (r *reduced) scale() float64 {
	s := 1.0
	for _, row := range r.rows {
		s = math.Max(s, math.Abs(row.rhs))
	}
	return s
}
