package model

import (
	"fmt"
	"math"
)

// TimeGrid is the discretised planning horizon. Slots are numbered
// contiguously and their order is the chronological order.
type TimeGrid struct {
	Slots         []int
	IntervalHours float64
}

// NewTimeGrid returns a grid with slots 1..n of the given duration.
func NewTimeGrid(n int, intervalHours float64) (TimeGrid, error) {
	if n <= 0 {
		return TimeGrid{}, fmt.Errorf("time grid needs at least one slot, got %d", n)
	}
	slots := make([]int, n)
	for i := range slots {
		slots[i] = i + 1
	}
	g := TimeGrid{Slots: slots, IntervalHours: intervalHours}
	if err := g.Validate(); err != nil {
		return TimeGrid{}, err
	}
	return g, nil
}

// Validate checks that slots are contiguous, strictly increasing and that the
// slot duration is positive.
func (g TimeGrid) Validate() error {
	if len(g.Slots) == 0 {
		return &ConstructionError{Field: "slots", Reason: "time grid is empty"}
	}
	if !(g.IntervalHours > 0) || math.IsInf(g.IntervalHours, 0) {
		return &ConstructionError{Field: "interval_hours", Reason: fmt.Sprintf("must be a positive finite duration, got %v", g.IntervalHours)}
	}
	for i := 1; i < len(g.Slots); i++ {
		if g.Slots[i] != g.Slots[i-1]+1 {
			return &ConstructionError{Field: "slots", Reason: fmt.Sprintf("slot %d does not follow %d", g.Slots[i], g.Slots[i-1])}
		}
	}
	return nil
}

// Len returns the number of slots.
func (g TimeGrid) Len() int { return len(g.Slots) }

// First returns the first slot of the horizon.
func (g TimeGrid) First() int {
	if len(g.Slots) == 0 {
		return 0
	}
	return g.Slots[0]
}

// Last returns the last slot of the horizon.
func (g TimeGrid) Last() int {
	if len(g.Slots) == 0 {
		return 0
	}
	return g.Slots[len(g.Slots)-1]
}

// Index returns the position of slot in the grid.
func (g TimeGrid) Index(slot int) (int, bool) {
	if len(g.Slots) == 0 {
		return 0, false
	}
	i := slot - g.Slots[0]
	if i < 0 || i >= len(g.Slots) {
		return 0, false
	}
	return i, true
}

// Contains reports whether slot is part of the horizon.
func (g TimeGrid) Contains(slot int) bool {
	_, ok := g.Index(slot)
	return ok
}

// Hours returns the total horizon length in hours.
func (g TimeGrid) Hours() float64 {
	return float64(len(g.Slots)) * g.IntervalHours
}
