package planner

import (
	"errors"
	"fmt"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/model"
)

// ConstructionError reports input that violates a data model invariant.
type ConstructionError = model.ConstructionError

// ErrConstruction is matched by every ConstructionError.
var ErrConstruction = model.ErrConstruction

var (
	// ErrInfeasible indicates no schedule satisfies all constraints.
	ErrInfeasible = errors.New("schedule infeasible")
	// ErrUnbounded indicates a misconfigured objective.
	ErrUnbounded = errors.New("schedule unbounded")
	// ErrSolver wraps internal solver failures.
	ErrSolver = errors.New("solver failure")
)

// statusError maps a non-optimal solution to its sentinel error.
func statusError(sol lp.Solution) error {
	var base error
	switch sol.Status {
	case lp.StatusOptimal:
		return nil
	case lp.StatusInfeasible:
		base = ErrInfeasible
	case lp.StatusUnbounded:
		base = ErrUnbounded
	default:
		base = ErrSolver
	}
	if sol.Err != nil {
		return fmt.Errorf("%w: %w", base, sol.Err)
	}
	return base
}
