package lp

import (
	"context"
	"fmt"
	"math"
)

// Status is the outcome of a solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "solver_error"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the names produced by String.
func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{StatusOptimal, StatusInfeasible, StatusUnbounded, StatusError} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Solution is what a Solver returns. Objective and Values are only defined
// when Status is StatusOptimal. Err carries the cause of StatusError.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Err       error
}

// Value returns the value of v, or NaN when the solution is not optimal.
func (s Solution) Value(v VarID) float64 {
	if s.Status != StatusOptimal || int(v) >= len(s.Values) {
		return math.NaN()
	}
	return s.Values[v]
}

// Solver solves a Model. Implementations must not mutate the model and must
// report failures through the returned Solution rather than panicking.
type Solver interface {
	Solve(ctx context.Context, m *Model) Solution
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) Solution

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, m *Model) Solution { return f(ctx, m) }
