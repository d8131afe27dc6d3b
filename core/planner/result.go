package planner

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/evplan/core/lp"
)

// Result is the outcome of one planning run. Records is empty unless Status
// is optimal.
type Result struct {
	RunID       string
	Started     time.Time
	Status      lp.Status
	Objective   float64
	Records     []Record
	Variables   int
	Constraints int
	BuildTime   time.Duration
	SolveTime   time.Duration

	problem  *Problem
	solution lp.Solution
}

// Err returns nil for an optimal run and ErrInfeasible, ErrUnbounded or
// ErrSolver otherwise.
func (r *Result) Err() error {
	return statusError(r.solution)
}

// Problem returns the model the run solved.
func (r *Result) Problem() *Problem { return r.problem }

// Energy returns the stored energy of a vehicle at the end of slot.
func (r *Result) Energy(vehicle string, slot int) (float64, bool) {
	ev, ok := r.problem.VehicleIndex(vehicle)
	if !ok || r.Status != lp.StatusOptimal {
		return 0, false
	}
	v, ok := r.problem.EnergyVar(ev, slot)
	if !ok {
		return 0, false
	}
	return r.solution.Value(v), true
}

// Power returns the charging and discharging power of a vehicle at slot. It
// reports zero for slots outside the vehicle's window.
func (r *Result) Power(vehicle string, slot int) (charge, discharge float64, ok bool) {
	ev, found := r.problem.VehicleIndex(vehicle)
	if !found || r.Status != lp.StatusOptimal || !r.problem.Grid.Contains(slot) {
		return 0, 0, false
	}
	if c, in := r.problem.ChargeVar(ev, slot); in {
		charge = r.solution.Value(c)
	}
	if d, in := r.problem.DischargeVar(ev, slot); in {
		discharge = r.solution.Value(d)
	}
	return charge, discharge, true
}

// SlotTotal is the fleet-wide exchange in one slot.
type SlotTotal struct {
	Slot        int     `json:"time"`
	Price       float64 `json:"price"`
	ChargeKW    float64 `json:"charge_kw"`
	DischargeKW float64 `json:"discharge_kw"`
}

// NetKW is the power drawn from the grid.
func (s SlotTotal) NetKW() float64 { return s.ChargeKW - s.DischargeKW }

// Totals returns one entry per grid slot. It is nil unless the run is optimal.
func (r *Result) Totals() []SlotTotal {
	if r.Status != lp.StatusOptimal {
		return nil
	}
	p := r.problem
	out := make([]SlotTotal, len(p.Grid.Slots))
	for i, t := range p.Grid.Slots {
		out[i] = SlotTotal{Slot: t, Price: p.Prices[t]}
		for ev := range p.Vehicles {
			if c, ok := p.ChargeVar(ev, t); ok {
				out[i].ChargeKW += r.solution.Value(c)
			}
			if d, ok := p.DischargeVar(ev, t); ok {
				out[i].DischargeKW += r.solution.Value(d)
			}
		}
	}
	return out
}

// VehicleSummary aggregates the schedule of one vehicle.
type VehicleSummary struct {
	Vehicle        string  `json:"ev"`
	ChargedKWh     float64 `json:"charged_kwh"`
	DischargedKWh  float64 `json:"discharged_kwh"`
	NetEnergyKWh   float64 `json:"net_energy_kwh"`
	FinalEnergyKWh float64 `json:"final_energy_kwh"`
	Cost           float64 `json:"cost"`
}

// Summary is the per-vehicle breakdown of an optimal run.
type Summary struct {
	Vehicles  []VehicleSummary `json:"vehicles"`
	TotalCost float64          `json:"total_cost"`
}

// Summary computes per-vehicle energy and cost from the solution. It is zero
// unless the run is optimal.
func (r *Result) Summary() Summary {
	if r.Status != lp.StatusOptimal {
		return Summary{}
	}
	p := r.problem
	dt := p.Grid.IntervalHours
	s := Summary{Vehicles: make([]VehicleSummary, len(p.Vehicles))}
	costs := make([]float64, len(p.Vehicles))
	for ev, veh := range p.Vehicles {
		v := p.vars[ev]
		charge := make([]float64, len(v.slots))
		discharge := make([]float64, len(v.slots))
		cost := make([]float64, len(v.slots))
		for i, t := range v.slots {
			charge[i] = r.solution.Value(v.charge[i]) * dt
			discharge[i] = r.solution.Value(v.discharge[i]) * dt
			cost[i] = (charge[i] - discharge[i]) * p.Prices[t]
		}
		vs := VehicleSummary{
			Vehicle:       veh.Name,
			ChargedKWh:    floats.Sum(charge),
			DischargedKWh: floats.Sum(discharge),
			Cost:          floats.Sum(cost),
		}
		vs.NetEnergyKWh = vs.ChargedKWh - vs.DischargedKWh
		if n := len(v.energy); n > 0 {
			vs.FinalEnergyKWh = r.solution.Value(v.energy[n-1])
		}
		s.Vehicles[ev] = vs
		costs[ev] = vs.Cost
	}
	s.TotalCost = floats.Sum(costs)
	return s
}
