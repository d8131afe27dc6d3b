package model

import (
	"errors"
	"fmt"
)

// ErrConstruction is matched by every ConstructionError.
var ErrConstruction = errors.New("invalid planning input")

// ConstructionError reports input that violates a data model invariant. It is
// raised before any model reaches a solver.
type ConstructionError struct {
	Vehicle string
	Field   string
	Reason  string
}

func (e *ConstructionError) Error() string {
	if e.Vehicle == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("vehicle %s: invalid %s: %s", e.Vehicle, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrConstruction.
func (e *ConstructionError) Unwrap() error { return ErrConstruction }
