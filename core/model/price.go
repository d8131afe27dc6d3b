package model

import (
	"fmt"
	"math"
	"sort"
)

// PriceSeries maps a slot to the energy price in currency per kWh. Negative
// values are grid credits.
type PriceSeries map[int]float64

// NewPriceSeries numbers values with the slots of grid in order.
func NewPriceSeries(grid TimeGrid, values []float64) (PriceSeries, error) {
	if len(values) != grid.Len() {
		return nil, &ConstructionError{Field: "prices", Reason: fmt.Sprintf("got %d prices for %d slots", len(values), grid.Len())}
	}
	ps := make(PriceSeries, len(values))
	for i, v := range values {
		ps[grid.Slots[i]] = v
	}
	return ps, nil
}

// Validate checks that the price domain equals the grid slots and that all
// prices are finite.
func (p PriceSeries) Validate(grid TimeGrid) error {
	if len(p) != grid.Len() {
		return &ConstructionError{Field: "prices", Reason: fmt.Sprintf("price domain has %d slots, grid has %d", len(p), grid.Len())}
	}
	for _, t := range grid.Slots {
		v, ok := p[t]
		if !ok {
			return &ConstructionError{Field: "prices", Reason: fmt.Sprintf("missing price for slot %d", t)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConstructionError{Field: "prices", Reason: fmt.Sprintf("price for slot %d is not finite", t)}
		}
	}
	return nil
}

// Values returns the prices ordered by slot.
func (p PriceSeries) Values() []float64 {
	slots := make([]int, 0, len(p))
	for t := range p {
		slots = append(slots, t)
	}
	sort.Ints(slots)
	out := make([]float64, len(slots))
	for i, t := range slots {
		out[i] = p[t]
	}
	return out
}
