package planner

import (
	"fmt"
	"math"
)

// DischargePriceMode selects how discharged energy is credited.
type DischargePriceMode string

const (
	// DischargeSameAsCharge credits discharge at the slot price.
	DischargeSameAsCharge DischargePriceMode = "same_as_charge"
	// DischargeFixed credits discharge at Options.FixedDischargePrice.
	DischargeFixed DischargePriceMode = "fixed"
)

// DefaultNegligible is the power below which a slot is left out of the
// schedule records.
const DefaultNegligible = 1e-6

// Options selects the model variant.
type Options struct {
	GridPowerCap          float64            `json:"grid_power_cap_kw" yaml:"grid_power_cap_kw"`
	EnforceGridCap        bool               `json:"enforce_grid_cap" yaml:"enforce_grid_cap"`
	DischargePriceMode    DischargePriceMode `json:"discharge_price_mode" yaml:"discharge_price_mode"`
	FixedDischargePrice   float64            `json:"fixed_discharge_price" yaml:"fixed_discharge_price"` // $/kWh
	LimitEnergyThroughput bool               `json:"limit_energy_throughput" yaml:"limit_energy_throughput"`
	NegligibleThreshold   float64            `json:"negligible_threshold" yaml:"negligible_threshold"`
	ParallelBuild         bool               `json:"parallel_build" yaml:"parallel_build"`
}

// DefaultOptions returns the settings of the reference charging site: a 50 kW
// grid connection and discharge credited at the charging price.
func DefaultOptions() Options {
	return Options{
		GridPowerCap:        50,
		EnforceGridCap:      true,
		DischargePriceMode:  DischargeSameAsCharge,
		NegligibleThreshold: DefaultNegligible,
	}
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.DischargePriceMode == "" {
		o.DischargePriceMode = DischargeSameAsCharge
	}
	if o.NegligibleThreshold == 0 {
		o.NegligibleThreshold = DefaultNegligible
	}
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.EnforceGridCap && (o.GridPowerCap < 0 || math.IsNaN(o.GridPowerCap) || math.IsInf(o.GridPowerCap, 0)) {
		return &ConstructionError{Field: "grid_power_cap_kw", Reason: fmt.Sprintf("must be a non-negative finite value, got %v", o.GridPowerCap)}
	}
	switch o.DischargePriceMode {
	case DischargeSameAsCharge:
	case DischargeFixed:
		if math.IsNaN(o.FixedDischargePrice) || math.IsInf(o.FixedDischargePrice, 0) {
			return &ConstructionError{Field: "fixed_discharge_price", Reason: fmt.Sprintf("must be finite, got %v", o.FixedDischargePrice)}
		}
	default:
		return &ConstructionError{Field: "discharge_price_mode", Reason: fmt.Sprintf("unknown mode %q", o.DischargePriceMode)}
	}
	if o.NegligibleThreshold < 0 || math.IsNaN(o.NegligibleThreshold) {
		return &ConstructionError{Field: "negligible_threshold", Reason: fmt.Sprintf("must be non-negative, got %v", o.NegligibleThreshold)}
	}
	return nil
}

func (o Options) dischargePrice(slotPrice float64) float64 {
	if o.DischargePriceMode == DischargeFixed {
		return o.FixedDischargePrice
	}
	return slotPrice
}
