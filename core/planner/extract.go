package planner

import (
	"math"

	"github.com/kilianp07/evplan/core/lp"
)

// Record is one scheduled (vehicle, slot) exchange.
type Record struct {
	Vehicle      string  `json:"ev"`
	Slot         int     `json:"time"`
	ChargeKW     float64 `json:"charge_kw"`
	DischargeKW  float64 `json:"discharge_kw"`
	NetEnergyKWh float64 `json:"net_energy_kwh"`
	Price        float64 `json:"price"`
	Cost         float64 `json:"cost"`
	EnergyKWh    float64 `json:"energy_kwh"` // stored energy at the end of the slot
}

// Extract turns an optimal solution into schedule records ordered by vehicle
// then slot. Slots where both powers are below threshold are skipped. A
// non-optimal solution yields no records and the matching sentinel error.
// The arrival slot never produces a record: its powers are pinned to zero.
func Extract(p *Problem, sol lp.Solution, threshold float64) ([]Record, error) {
	if err := statusError(sol); err != nil {
		return nil, err
	}
	dt := p.Grid.IntervalHours
	var out []Record
	for ev, veh := range p.Vehicles {
		v := p.vars[ev]
		for i, t := range v.slots {
			if i == 0 {
				continue
			}
			c := sol.Value(v.charge[i])
			d := sol.Value(v.discharge[i])
			if math.Abs(c) < threshold && math.Abs(d) < threshold {
				continue
			}
			net := (c - d) * dt
			out = append(out, Record{
				Vehicle:      veh.Name,
				Slot:         t,
				ChargeKW:     c,
				DischargeKW:  d,
				NetEnergyKWh: net,
				Price:        p.Prices[t],
				Cost:         net * p.Prices[t],
				EnergyKWh:    sol.Value(v.energy[i]),
			})
		}
	}
	return out, nil
}
