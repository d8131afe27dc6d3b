package solver

import (
	"context"
	"errors"
	"fmt"

	corelp "github.com/kilianp07/evplan/core/lp"
)

// ErrBusy is returned when an earlier, abandoned solve still holds the solver.
var ErrBusy = errors.New("solver busy with an abandoned solve")

// Detached runs a solver that ignores its context in a separate goroutine.
// Solve returns as soon as the context expires, but the computation keeps the
// solver's single slot until it finishes. Callers arriving meanwhile wait for
// the slot and fail with ErrBusy if their own context expires first, so
// expired solves never pile up.
type Detached struct {
	inner corelp.Solver
	slot  chan struct{}
}

// Detach wraps inner.
func Detach(inner corelp.Solver) *Detached {
	return &Detached{inner: inner, slot: make(chan struct{}, 1)}
}

// Solve implements corelp.Solver.
func (d *Detached) Solve(ctx context.Context, m *corelp.Model) corelp.Solution {
	if err := ctx.Err(); err != nil {
		return corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("solve: %w", err)}
	}
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("%w: %w", ErrBusy, ctx.Err())}
	}

	done := make(chan corelp.Solution, 1)
	go func() {
		defer func() { <-d.slot }()
		defer func() {
			if r := recover(); r != nil {
				done <- corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("solve: %v", r)}
			}
		}()
		done <- d.inner.Solve(context.WithoutCancel(ctx), m)
	}()
	select {
	case sol := <-done:
		return sol
	case <-ctx.Done():
		return corelp.Solution{Status: corelp.StatusError, Err: fmt.Errorf("solve: %w", ctx.Err())}
	}
}
