package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	corelp "github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/infra/logger"
)

// Dense solves models with gonum's dense simplex. Finite upper bounds become
// rows with their own slack column, so the standard form grows with every
// bounded variable. It suits small models and cross-checks.
type Dense struct {
	Tolerance float64
	log       logger.Logger
	run       *Detached
}

// NewDense returns a gonum backed solver. A non-positive tolerance selects
// DefaultTolerance.
func NewDense(tol float64, log logger.Logger) *Dense {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	d := &Dense{Tolerance: tol, log: log}
	d.run = Detach(corelp.SolverFunc(func(_ context.Context, m *corelp.Model) corelp.Solution {
		return d.solve(m)
	}))
	return d
}

// Solve implements corelp.Solver. gonum cannot be interrupted: on context
// expiry the computation is abandoned and later calls wait for it to finish.
func (d *Dense) Solve(ctx context.Context, m *corelp.Model) corelp.Solution {
	return d.run.Solve(ctx, m)
}

func (d *Dense) solve(m *corelp.Model) (sol corelp.Solution) {
	defer func() {
		if r := recover(); r != nil {
			sol = corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("dense simplex: %v", r)}
		}
	}()

	r, status, err := presolve(m, d.Tolerance)
	if err != nil || status != corelp.StatusOptimal {
		return corelp.Solution{Status: status, Err: err}
	}
	sf, err := toStandardForm(r)
	if err != nil {
		return corelp.Solution{Status: corelp.StatusError, Err: err}
	}
	d.log.Debugw("dense standard form", map[string]any{
		"model":   m.Name,
		"rows":    len(sf.b),
		"columns": len(sf.c),
		"fixed":   r.fixed,
	})

	x := make([]float64, len(sf.c))
	if len(sf.b) > 0 {
		_, x, err = lp.Simplex(sf.c, sf.a, sf.b, d.Tolerance, nil)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return corelp.Solution{Status: corelp.StatusInfeasible, Err: err}
		case errors.Is(err, lp.ErrUnbounded):
			return corelp.Solution{Status: corelp.StatusUnbounded, Err: err}
		case err != nil:
			return corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("dense simplex: %w", err)}
		}
	}

	values := r.assignment(m, x)
	return corelp.Solution{
		Status:    corelp.StatusOptimal,
		Objective: m.Objective().Eval(values),
		Values:    values,
	}
}

// standardForm is minimize cᵀx s.t. a·x = b, x >= 0. The first columns are
// those of the reduced model, slacks follow.
type standardForm struct {
	c []float64
	a *mat.Dense
	b []float64
}

func toStandardForm(r *reduced) (*standardForm, error) {
	nStruct := len(r.cost)
	rows := append([]sparseRow(nil), r.rows...)
	for j, u := range r.upper {
		if !math.IsInf(u, 1) {
			rows = append(rows, sparseRow{idx: []int{j}, coef: []float64{1}, rhs: u, slack: true})
		}
	}
	nSlack := 0
	for _, row := range rows {
		if row.slack {
			nSlack++
		}
	}
	nRows, nCols := len(rows), nStruct+nSlack
	sf := &standardForm{c: make([]float64, nCols), b: make([]float64, nRows)}
	copy(sf.c, r.cost)
	if nRows == 0 {
		return sf, nil
	}
	if nRows > nCols {
		return nil, fmt.Errorf("dense simplex: %d equality rows exceed %d columns", nRows, nCols)
	}
	sf.a = mat.NewDense(nRows, nCols, nil)
	slack := nStruct
	for i, row := range rows {
		for k, j := range row.idx {
			sf.a.Set(i, j, row.coef[k])
		}
		if row.slack {
			sf.a.Set(i, slack, 1)
			slack++
		}
		sf.b[i] = row.rhs
	}
	return sf, nil
}
