package model

import (
	"fmt"
	"math"
)

// EVProfile holds the static parameters of one vehicle for a scheduling run.
type EVProfile struct {
	Name                string  `json:"name" yaml:"name"`
	Arrival             int     `json:"arrival" yaml:"arrival"`
	Departure           int     `json:"departure" yaml:"departure"`
	ArrivalEnergy       float64 `json:"arrival_energy_kwh" yaml:"arrival_energy_kwh"`             // stored energy when plugged in
	DesiredEnergy       float64 `json:"desired_energy_kwh" yaml:"desired_energy_kwh"`             // minimum stored energy at departure
	MaxChargingPower    float64 `json:"max_charging_power_kw" yaml:"max_charging_power_kw"`       // kW
	MaxDischargingPower float64 `json:"max_discharging_power_kw" yaml:"max_discharging_power_kw"` // kW, 0 disables V2G
	BatteryCapacity     float64 `json:"battery_capacity_kwh" yaml:"battery_capacity_kwh"`         // kWh
}

// IsActive reports whether the vehicle is plugged in during slot t.
func (ev EVProfile) IsActive(t int) bool {
	return ev.Arrival <= t && t <= ev.Departure
}

// ActiveSlots returns the grid slots inside [Arrival, Departure] in grid order.
func (ev EVProfile) ActiveSlots(grid TimeGrid) []int {
	var out []int
	for _, t := range grid.Slots {
		if ev.IsActive(t) {
			out = append(out, t)
		}
	}
	return out
}

// WindowHours is the time available for charging after arrival.
func (ev EVProfile) WindowHours(intervalHours float64) float64 {
	return float64(ev.Departure-ev.Arrival) * intervalHours
}

// Validate checks the profile against the data model invariants.
//
//gocyclo:ignore
func (ev EVProfile) Validate(grid TimeGrid) error {
	fail := func(field, format string, args ...any) error {
		return &ConstructionError{Vehicle: ev.Name, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if ev.Name == "" {
		return fail("name", "must not be empty")
	}
	if ev.Arrival > ev.Departure {
		return fail("arrival", "arrival slot %d is after departure slot %d", ev.Arrival, ev.Departure)
	}
	if !grid.Contains(ev.Arrival) {
		return fail("arrival", "slot %d is outside the horizon [%d, %d]", ev.Arrival, grid.First(), grid.Last())
	}
	if !grid.Contains(ev.Departure) {
		return fail("departure", "slot %d is outside the horizon [%d, %d]", ev.Departure, grid.First(), grid.Last())
	}
	if !(ev.BatteryCapacity > 0) || math.IsInf(ev.BatteryCapacity, 0) {
		return fail("battery_capacity", "must be positive, got %v", ev.BatteryCapacity)
	}
	checks := []struct {
		field string
		v     float64
	}{
		{"arrival_energy", ev.ArrivalEnergy},
		{"desired_energy", ev.DesiredEnergy},
		{"max_charging_power", ev.MaxChargingPower},
		{"max_discharging_power", ev.MaxDischargingPower},
	}
	for _, c := range checks {
		if c.v < 0 || math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fail(c.field, "must be a non-negative finite value, got %v", c.v)
		}
	}
	if ev.DesiredEnergy > ev.BatteryCapacity {
		return fail("desired_energy", "%.3f kWh exceeds battery capacity %.3f kWh", ev.DesiredEnergy, ev.BatteryCapacity)
	}
	if ev.ArrivalEnergy > ev.BatteryCapacity {
		return fail("arrival_energy", "%.3f kWh exceeds battery capacity %.3f kWh", ev.ArrivalEnergy, ev.BatteryCapacity)
	}
	return nil
}

// FleetDefaults are the power and capacity limits applied to vehicles whose
// input rows do not carry their own.
type FleetDefaults struct {
	MaxChargingPower    float64 `json:"max_charging_power_kw" yaml:"max_charging_power_kw"`
	MaxDischargingPower float64 `json:"max_discharging_power_kw" yaml:"max_discharging_power_kw"`
	BatteryCapacity     float64 `json:"battery_capacity_kwh" yaml:"battery_capacity_kwh"`
}

// DefaultFleet mirrors the limits of the reference charging site.
func DefaultFleet() FleetDefaults {
	return FleetDefaults{MaxChargingPower: 11, MaxDischargingPower: 4, BatteryCapacity: 50}
}

// SetDefaults fills zero fields with DefaultFleet values. A zero discharge
// power stays zero only when capacity is set explicitly, so a config with just
// a capacity can still disable V2G.
func (f *FleetDefaults) SetDefaults() {
	d := DefaultFleet()
	if f.MaxChargingPower == 0 && f.MaxDischargingPower == 0 && f.BatteryCapacity == 0 {
		*f = d
		return
	}
	if f.MaxChargingPower == 0 {
		f.MaxChargingPower = d.MaxChargingPower
	}
	if f.BatteryCapacity == 0 {
		f.BatteryCapacity = d.BatteryCapacity
	}
}

// Profile builds an EVProfile from per-row values and the fleet limits.
func (f FleetDefaults) Profile(name string, arrival, departure int, arrivalEnergy, desiredEnergy float64) EVProfile {
	return EVProfile{
		Name:                name,
		Arrival:             arrival,
		Departure:           departure,
		ArrivalEnergy:       arrivalEnergy,
		DesiredEnergy:       desiredEnergy,
		MaxChargingPower:    f.MaxChargingPower,
		MaxDischargingPower: f.MaxDischargingPower,
		BatteryCapacity:     f.BatteryCapacity,
	}
}

// Fill completes a profile whose limits were left unset. A profile with none
// of the three limits gets all fleet values; otherwise only a zero charging
// power or capacity is replaced.
func (f FleetDefaults) Fill(ev EVProfile) EVProfile {
	if ev.MaxChargingPower == 0 && ev.MaxDischargingPower == 0 && ev.BatteryCapacity == 0 {
		ev.MaxDischargingPower = f.MaxDischargingPower
	}
	if ev.MaxChargingPower == 0 {
		ev.MaxChargingPower = f.MaxChargingPower
	}
	if ev.BatteryCapacity == 0 {
		ev.BatteryCapacity = f.BatteryCapacity
	}
	return ev
}
