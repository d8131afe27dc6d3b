package solver

import (
	"github.com/kilianp07/evplan/core/factory"
	corelp "github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/infra/logger"
)

const (
	// TypeSimplex is the registry name of the bounded-variable simplex.
	TypeSimplex = "simplex"
	// TypeDense is the registry name of the gonum dense simplex.
	TypeDense = "dense"
)

type solverConf struct {
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
}

// init registers built-in solvers.
func init() {
	_ = corelp.RegisterSolver(TypeSimplex, func(conf map[string]any) (corelp.Solver, error) {
		var c solverConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		s := NewSimplex(c.Tolerance, logger.New("simplex"))
		s.MaxIterations = c.MaxIterations
		return s, nil
	})
	_ = corelp.RegisterSolver(TypeDense, func(conf map[string]any) (corelp.Solver, error) {
		var c solverConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewDense(c.Tolerance, logger.New("dense")), nil
	})
}
