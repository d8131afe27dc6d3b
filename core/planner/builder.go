package planner

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/model"
)

// vehicleVars holds the variables of one vehicle, indexed by position in its
// active slots.
type vehicleVars struct {
	slots     []int
	charge    []lp.VarID
	discharge []lp.VarID
	energy    []lp.VarID
}

func (v vehicleVars) position(slot int) (int, bool) {
	if len(v.slots) == 0 || slot < v.slots[0] || slot > v.slots[len(v.slots)-1] {
		return 0, false
	}
	return slot - v.slots[0], true
}

// Problem is a built model together with the inputs it was built from.
type Problem struct {
	Model    *lp.Model
	Grid     model.TimeGrid
	Prices   model.PriceSeries
	Vehicles []model.EVProfile
	Options  Options

	vars   []vehicleVars
	byName map[string]int
}

// VehicleIndex returns the position of the named vehicle.
func (p *Problem) VehicleIndex(name string) (int, bool) {
	i, ok := p.byName[name]
	return i, ok
}

// ChargeVar returns the charging variable of vehicle ev at slot. ok is false
// outside the active window, where the power is zero by construction.
func (p *Problem) ChargeVar(ev, slot int) (lp.VarID, bool) {
	i, ok := p.vars[ev].position(slot)
	if !ok {
		return 0, false
	}
	return p.vars[ev].charge[i], true
}

// DischargeVar is ChargeVar for discharging power.
func (p *Problem) DischargeVar(ev, slot int) (lp.VarID, bool) {
	i, ok := p.vars[ev].position(slot)
	if !ok {
		return 0, false
	}
	return p.vars[ev].discharge[i], true
}

// EnergyVar is ChargeVar for stored energy.
func (p *Problem) EnergyVar(ev, slot int) (lp.VarID, bool) {
	i, ok := p.vars[ev].position(slot)
	if !ok {
		return 0, false
	}
	return p.vars[ev].energy[i], true
}

// Validate checks all inputs without building a model.
func Validate(grid model.TimeGrid, prices model.PriceSeries, evs []model.EVProfile, opts Options) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if err := prices.Validate(grid); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(evs))
	for _, ev := range evs {
		if err := ev.Validate(grid); err != nil {
			return err
		}
		if _, dup := seen[ev.Name]; dup {
			return &ConstructionError{Vehicle: ev.Name, Field: "name", Reason: "duplicate vehicle"}
		}
		seen[ev.Name] = struct{}{}
	}
	return nil
}

// Build validates the inputs and constructs the cost minimization model. The
// result depends only on the arguments.
func Build(grid model.TimeGrid, prices model.PriceSeries, evs []model.EVProfile, opts Options) (*Problem, error) {
	if err := Validate(grid, prices, evs, opts); err != nil {
		return nil, err
	}

	p := &Problem{
		Model:    lp.NewModel("fleet-charging"),
		Grid:     grid,
		Prices:   prices,
		Vehicles: evs,
		Options:  opts,
		vars:     make([]vehicleVars, len(evs)),
		byName:   make(map[string]int, len(evs)),
	}
	for i, ev := range evs {
		p.byName[ev.Name] = i
		p.vars[i] = declare(p.Model, ev, grid)
	}

	blocks := make([][]lp.Constraint, len(evs))
	if opts.ParallelBuild {
		var g errgroup.Group
		for i := range evs {
			g.Go(func() error {
				var err error
				blocks[i], err = vehicleConstraints(evs[i], p.vars[i], grid.IntervalHours, opts)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range evs {
			var err error
			if blocks[i], err = vehicleConstraints(evs[i], p.vars[i], grid.IntervalHours, opts); err != nil {
				return nil, err
			}
		}
	}
	for _, b := range blocks {
		p.Model.AddConstraints(b)
	}
	if opts.EnforceGridCap {
		p.Model.AddConstraints(gridCapConstraints(p))
	}
	p.Model.SetObjective(objective(p))
	return p, nil
}

// declare adds the variables of one vehicle. Power in the arrival slot is
// fixed at zero: the stored energy there is the arrival energy, so any
// exchange in that slot would never reach the battery.
func declare(m *lp.Model, ev model.EVProfile, grid model.TimeGrid) vehicleVars {
	slots := ev.ActiveSlots(grid)
	v := vehicleVars{
		slots:     slots,
		charge:    make([]lp.VarID, len(slots)),
		discharge: make([]lp.VarID, len(slots)),
		energy:    make([]lp.VarID, len(slots)),
	}
	for i, t := range slots {
		maxC, maxD := ev.MaxChargingPower, ev.MaxDischargingPower
		if i == 0 {
			maxC, maxD = 0, 0
		}
		v.charge[i] = m.AddVariable(fmt.Sprintf("charge[%s,%d]", ev.Name, t), 0, maxC)
		v.discharge[i] = m.AddVariable(fmt.Sprintf("discharge[%s,%d]", ev.Name, t), 0, maxD)
		v.energy[i] = m.AddVariable(fmt.Sprintf("energy[%s,%d]", ev.Name, t), 0, ev.BatteryCapacity)
	}
	return v
}

// vehicleConstraints returns the rows of one vehicle. The variables must cover
// a non-empty window with one energy, charge and discharge variable per slot.
func vehicleConstraints(ev model.EVProfile, v vehicleVars, dt float64, opts Options) ([]lp.Constraint, error) {
	n := len(v.slots)
	if n == 0 || len(v.charge) != n || len(v.discharge) != n || len(v.energy) != n {
		return nil, &ConstructionError{Vehicle: ev.Name, Field: "window", Reason: "variables do not cover the active window"}
	}
	if !(dt > 0) {
		return nil, &ConstructionError{Vehicle: ev.Name, Field: "interval_hours", Reason: fmt.Sprintf("must be positive, got %v", dt)}
	}
	out := make([]lp.Constraint, 0, n+2)
	out = append(out, lp.Constraint{
		Name:  fmt.Sprintf("arrival[%s]", ev.Name),
		Terms: []lp.Term{{Var: v.energy[0], Coef: 1}},
		Sense: lp.Equal,
		RHS:   ev.ArrivalEnergy,
	})
	for i := 1; i < n; i++ {
		out = append(out, lp.Constraint{
			Name: fmt.Sprintf("soc[%s,%d]", ev.Name, v.slots[i]),
			Terms: []lp.Term{
				{Var: v.energy[i], Coef: 1},
				{Var: v.energy[i-1], Coef: -1},
				{Var: v.charge[i], Coef: -dt},
				{Var: v.discharge[i], Coef: dt},
			},
			Sense: lp.Equal,
		})
	}
	out = append(out, lp.Constraint{
		Name:  fmt.Sprintf("departure[%s]", ev.Name),
		Terms: []lp.Term{{Var: v.energy[n-1], Coef: 1}},
		Sense: lp.GreaterEq,
		RHS:   ev.DesiredEnergy,
	})
	if opts.LimitEnergyThroughput && n > 1 {
		terms := make([]lp.Term, 0, n-1)
		for i := 1; i < n; i++ {
			terms = append(terms, lp.Term{Var: v.charge[i], Coef: dt})
		}
		out = append(out, lp.Constraint{
			Name:  fmt.Sprintf("throughput[%s]", ev.Name),
			Terms: terms,
			Sense: lp.LessEq,
			RHS:   ev.BatteryCapacity,
		})
	}
	return out, nil
}

func gridCapConstraints(p *Problem) []lp.Constraint {
	var out []lp.Constraint
	for _, t := range p.Grid.Slots {
		var terms []lp.Term
		for ev := range p.Vehicles {
			c, ok := p.ChargeVar(ev, t)
			if !ok {
				continue
			}
			d, _ := p.DischargeVar(ev, t)
			terms = append(terms, lp.Term{Var: c, Coef: 1}, lp.Term{Var: d, Coef: -1})
		}
		if len(terms) == 0 {
			continue
		}
		out = append(out, lp.Constraint{
			Name:  fmt.Sprintf("grid[%d]", t),
			Terms: terms,
			Sense: lp.LessEq,
			RHS:   p.Options.GridPowerCap,
		})
	}
	return out
}

func objective(p *Problem) lp.Expr {
	dt := p.Grid.IntervalHours
	var obj lp.Expr
	for ev := range p.Vehicles {
		v := p.vars[ev]
		for i, t := range v.slots {
			price := p.Prices[t]
			obj.Add(v.charge[i], price*dt)
			obj.Add(v.discharge[i], -p.Options.dischargePrice(price)*dt)
		}
	}
	return obj
}
