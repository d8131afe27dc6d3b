package planner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/metrics"
	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/core/planner"
	"github.com/kilianp07/evplan/infra/solver"
)

const tol = 1e-6

func grid(t *testing.T, n int, dt float64) model.TimeGrid {
	t.Helper()
	g, err := model.NewTimeGrid(n, dt)
	require.NoError(t, err)
	return g
}

func prices(t *testing.T, g model.TimeGrid, values ...float64) model.PriceSeries {
	t.Helper()
	p, err := model.NewPriceSeries(g, values)
	require.NoError(t, err)
	return p
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func plan(t *testing.T, opts planner.Options, g model.TimeGrid, p model.PriceSeries, evs ...model.EVProfile) *planner.Result {
	t.Helper()
	pl := planner.New(solver.NewSimplex(0, nil), opts, nil, nil)
	res, err := pl.Plan(context.Background(), g, p, evs)
	require.NoError(t, err)
	return res
}

// checkInvariants verifies the physical constraints on an optimal result.
func checkInvariants(t *testing.T, res *planner.Result, opts planner.Options, g model.TimeGrid, evs ...model.EVProfile) {
	t.Helper()
	require.Equal(t, lp.StatusOptimal, res.Status)
	for _, ev := range evs {
		e, ok := res.Energy(ev.Name, ev.Arrival)
		require.True(t, ok)
		assert.InDelta(t, ev.ArrivalEnergy, e, tol, "%s arrival energy", ev.Name)
		e, ok = res.Energy(ev.Name, ev.Departure)
		require.True(t, ok)
		assert.GreaterOrEqual(t, e+tol, ev.DesiredEnergy, "%s departure energy", ev.Name)
		for _, s := range g.Slots {
			c, d, ok := res.Power(ev.Name, s)
			require.True(t, ok)
			if !ev.IsActive(s) {
				assert.Zero(t, c, "%s charge outside window at %d", ev.Name, s)
				assert.Zero(t, d, "%s discharge outside window at %d", ev.Name, s)
				_, in := res.Energy(ev.Name, s)
				assert.False(t, in)
				continue
			}
			e, _ := res.Energy(ev.Name, s)
			assert.GreaterOrEqual(t, e, -tol)
			assert.LessOrEqual(t, e, ev.BatteryCapacity+tol)
			assert.LessOrEqual(t, c, ev.MaxChargingPower+tol)
			assert.LessOrEqual(t, d, ev.MaxDischargingPower+tol)
		}
	}
	if opts.EnforceGridCap {
		for _, tot := range res.Totals() {
			assert.LessOrEqual(t, tot.NetKW(), opts.GridPowerCap+tol, "grid cap at slot %d", tot.Slot)
		}
	}
}

func TestPlan_FlatPrice(t *testing.T) {
	g := grid(t, 9, 0.5)
	p := prices(t, g, flat(9, 0.10)...)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 9, ArrivalEnergy: 10, DesiredEnergy: 20, MaxChargingPower: 5, BatteryCapacity: 50}
	opts := planner.DefaultOptions()

	res := plan(t, opts, g, p, ev)
	require.NoError(t, res.Err())
	checkInvariants(t, res, opts, g, ev)
	assert.InDelta(t, 1.0, res.Objective, tol)

	final, ok := res.Energy("EV1", 9)
	require.True(t, ok)
	assert.InDelta(t, 20, final, tol)

	var cost, energy float64
	for _, r := range res.Records {
		assert.Equal(t, "EV1", r.Vehicle)
		assert.NotEqual(t, 1, r.Slot, "arrival slot exchanges no power")
		assert.InDelta(t, (r.ChargeKW-r.DischargeKW)*0.5, r.NetEnergyKWh, 1e-12)
		assert.InDelta(t, r.NetEnergyKWh*r.Price, r.Cost, 1e-12)
		cost += r.Cost
		energy += r.NetEnergyKWh
	}
	assert.InDelta(t, 1.0, cost, tol)
	assert.InDelta(t, 10, energy, tol)

	sum := res.Summary()
	require.Len(t, sum.Vehicles, 1)
	assert.InDelta(t, 10, sum.Vehicles[0].ChargedKWh, tol)
	assert.InDelta(t, 20, sum.Vehicles[0].FinalEnergyKWh, tol)
	assert.InDelta(t, 1.0, sum.TotalCost, tol)
}

func TestPlan_UnreachableTargetIsInfeasible(t *testing.T) {
	g := grid(t, 5, 1)
	p := prices(t, g, flat(5, 0.2)...)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 5, ArrivalEnergy: 10, DesiredEnergy: 40, MaxChargingPower: 5, BatteryCapacity: 50}

	res := plan(t, planner.DefaultOptions(), g, p, ev)
	assert.Equal(t, lp.StatusInfeasible, res.Status)
	assert.ErrorIs(t, res.Err(), planner.ErrInfeasible)
	assert.Empty(t, res.Records)
	assert.Nil(t, res.Totals())
	assert.Zero(t, res.Objective)
}

func TestPlan_SingleSlotWindow(t *testing.T) {
	g := grid(t, 3, 1)
	p := prices(t, g, 0.1, 0.1, 0.1)

	ok := model.EVProfile{Name: "EV1", Arrival: 2, Departure: 2, ArrivalEnergy: 20, DesiredEnergy: 15, MaxChargingPower: 5, BatteryCapacity: 50}
	res := plan(t, planner.DefaultOptions(), g, p, ok)
	require.NoError(t, res.Err())
	assert.InDelta(t, 0, res.Objective, tol)
	assert.Empty(t, res.Records)

	short := ok
	short.DesiredEnergy = 25
	res = plan(t, planner.DefaultOptions(), g, p, short)
	assert.ErrorIs(t, res.Err(), planner.ErrInfeasible)
}

func sharedCapFleet() []model.EVProfile {
	return []model.EVProfile{
		{Name: "EV1", Arrival: 1, Departure: 5, DesiredEnergy: 8, MaxChargingPower: 5, BatteryCapacity: 50},
		{Name: "EV2", Arrival: 1, Departure: 5, DesiredEnergy: 8, MaxChargingPower: 5, BatteryCapacity: 50},
	}
}

func TestPlan_SharedGridCap(t *testing.T) {
	g := grid(t, 5, 1)
	p := prices(t, g, 0.5, 0.1, 0.1, 0.3, 0.3)
	evs := sharedCapFleet()
	opts := planner.DefaultOptions()
	opts.GridPowerCap = 6

	res := plan(t, opts, g, p, evs...)
	checkInvariants(t, res, opts, g, evs...)
	assert.InDelta(t, 2.4, res.Objective, tol)

	totals := res.Totals()
	require.Len(t, totals, 5)
	assert.InDelta(t, 6, totals[1].ChargeKW, tol)
	assert.InDelta(t, 6, totals[2].ChargeKW, tol)
	assert.InDelta(t, 4, totals[3].ChargeKW+totals[4].ChargeKW, tol)

	opts.EnforceGridCap = false
	res = plan(t, opts, g, p, evs...)
	checkInvariants(t, res, opts, g, evs...)
	assert.InDelta(t, 1.6, res.Objective, tol)
}

func TestPlan_GridCapTooTight(t *testing.T) {
	g := grid(t, 5, 1)
	p := prices(t, g, flat(5, 0.1)...)
	opts := planner.DefaultOptions()
	opts.GridPowerCap = 3

	res := plan(t, opts, g, p, sharedCapFleet()...)
	assert.Equal(t, lp.StatusInfeasible, res.Status)
	assert.ErrorIs(t, res.Err(), planner.ErrInfeasible)
}

func TestPlan_NegativePriceDischarge(t *testing.T) {
	g := grid(t, 4, 1)
	p := prices(t, g, 0.1, 0.3, -0.2, 0.1)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 4, ArrivalEnergy: 18, DesiredEnergy: 18, MaxChargingPower: 10, MaxDischargingPower: 5, BatteryCapacity: 20}
	opts := planner.DefaultOptions()

	res := plan(t, opts, g, p, ev)
	checkInvariants(t, res, opts, g, ev)
	assert.InDelta(t, -3.1, res.Objective, tol)

	_, d, _ := res.Power("EV1", 2)
	assert.InDelta(t, 5, d, tol, "discharge at the power limit before the credit slot")
	c, d, _ := res.Power("EV1", 3)
	assert.InDelta(t, 7, c-d, tol)
	c, d, _ = res.Power("EV1", 4)
	assert.InDelta(t, -2, c-d, tol)

	noV2G := ev
	noV2G.MaxDischargingPower = 0
	base := plan(t, opts, g, p, noV2G)
	checkInvariants(t, base, opts, g, noV2G)
	assert.InDelta(t, -0.4, base.Objective, tol)
	assert.Less(t, res.Objective, base.Objective)
}

func TestPlan_FixedDischargePrice(t *testing.T) {
	g := grid(t, 4, 1)
	p := prices(t, g, 0.1, 0.1, 0.1, 0.4)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 4, ArrivalEnergy: 10, DesiredEnergy: 10, MaxChargingPower: 10, MaxDischargingPower: 5, BatteryCapacity: 20}

	opts := planner.DefaultOptions()
	res := plan(t, opts, g, p, ev)
	checkInvariants(t, res, opts, g, ev)
	assert.InDelta(t, -1.5, res.Objective, tol)

	opts.DischargePriceMode = planner.DischargeFixed
	opts.FixedDischargePrice = 0.05
	res = plan(t, opts, g, p, ev)
	checkInvariants(t, res, opts, g, ev)
	assert.InDelta(t, 0, res.Objective, tol)
	assert.Empty(t, res.Records)
}

func TestPlan_EnergyThroughputLimit(t *testing.T) {
	g := grid(t, 4, 1)
	p := prices(t, g, 0.1, 0.1, 0.5, 0.1)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 4, DesiredEnergy: 10, MaxChargingPower: 10, MaxDischargingPower: 5, BatteryCapacity: 12}

	opts := planner.DefaultOptions()
	res := plan(t, opts, g, p, ev)
	checkInvariants(t, res, opts, g, ev)
	assert.InDelta(t, -1.0, res.Objective, tol)

	opts.LimitEnergyThroughput = true
	res = plan(t, opts, g, p, ev)
	checkInvariants(t, res, opts, g, ev)
	assert.InDelta(t, 0.2, res.Objective, tol)
	assert.LessOrEqual(t, res.Summary().Vehicles[0].ChargedKWh, 12+tol)
}

func TestPlan_Idempotent(t *testing.T) {
	g := grid(t, 5, 1)
	p := prices(t, g, 0.5, 0.1, 0.1, 0.3, 0.3)
	opts := planner.DefaultOptions()
	opts.GridPowerCap = 6

	first := plan(t, opts, g, p, sharedCapFleet()...)
	second := plan(t, opts, g, p, sharedCapFleet()...)
	assert.InDelta(t, first.Objective, second.Objective, tol)
	assert.NotEqual(t, first.RunID, second.RunID)

	opts.ParallelBuild = true
	parallel := plan(t, opts, g, p, sharedCapFleet()...)
	assert.InDelta(t, first.Objective, parallel.Objective, tol)
	assert.Equal(t, first.Constraints, parallel.Constraints)
}

func TestPlan_MoreChargingPowerNeverCostsMore(t *testing.T) {
	g := grid(t, 5, 1)
	p := prices(t, g, 0.5, 0.1, 0.1, 0.3, 0.3)
	opts := planner.DefaultOptions()
	opts.GridPowerCap = 6

	for _, enforce := range []bool{true, false} {
		opts.EnforceGridCap = enforce
		prev := plan(t, opts, g, p, sharedCapFleet()...).Objective
		for _, power := range []float64{6, 8, 11} {
			evs := sharedCapFleet()
			evs[0].MaxChargingPower = power
			obj := plan(t, opts, g, p, evs...).Objective
			assert.LessOrEqual(t, obj, prev+tol, "power %v cap %v", power, enforce)
			prev = obj
		}
	}
}

func TestPlan_ConstructionErrors(t *testing.T) {
	g := grid(t, 4, 1)
	good := prices(t, g, flat(4, 0.1)...)
	valid := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 4, MaxChargingPower: 5, BatteryCapacity: 50}

	called := false
	never := lp.SolverFunc(func(context.Context, *lp.Model) lp.Solution {
		called = true
		return lp.Solution{Status: lp.StatusError}
	})
	pl := planner.New(never, planner.DefaultOptions(), nil, nil)

	late := valid
	late.Arrival, late.Departure = 3, 2
	over := valid
	over.DesiredEnergy = 60

	cases := []struct {
		name   string
		prices model.PriceSeries
		evs    []model.EVProfile
		field  string
	}{
		{"arrival after departure", good, []model.EVProfile{late}, "arrival"},
		{"desired over capacity", good, []model.EVProfile{over}, "desired_energy"},
		{"price domain mismatch", model.PriceSeries{1: 0.1, 2: 0.1}, []model.EVProfile{valid}, "prices"},
		{"duplicate vehicle", good, []model.EVProfile{valid, valid}, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := pl.Plan(context.Background(), g, tc.prices, tc.evs)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, planner.ErrConstruction)
			var ce *planner.ConstructionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.field, ce.Field)
		})
	}
	assert.False(t, called, "solver must not run on invalid input")
}

func TestPlan_InvalidOptions(t *testing.T) {
	opts := planner.DefaultOptions()
	opts.DischargePriceMode = "market"
	g := grid(t, 2, 1)
	_, err := planner.Build(g, prices(t, g, 0.1, 0.1), nil, opts)
	assert.ErrorIs(t, err, planner.ErrConstruction)

	opts = planner.DefaultOptions()
	opts.GridPowerCap = -1
	_, err = planner.Build(g, prices(t, g, 0.1, 0.1), nil, opts)
	assert.ErrorIs(t, err, planner.ErrConstruction)
}

func TestPlan_SolverStatusesAreValues(t *testing.T) {
	g := grid(t, 3, 1)
	p := prices(t, g, flat(3, 0.1)...)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 3, MaxChargingPower: 5, BatteryCapacity: 50}
	boom := errors.New("numerical failure")

	cases := []struct {
		sol  lp.Solution
		want error
	}{
		{lp.Solution{Status: lp.StatusUnbounded}, planner.ErrUnbounded},
		{lp.Solution{Status: lp.StatusError, Err: boom}, planner.ErrSolver},
		{lp.Solution{Status: lp.StatusInfeasible}, planner.ErrInfeasible},
	}
	for _, tc := range cases {
		stub := lp.SolverFunc(func(context.Context, *lp.Model) lp.Solution { return tc.sol })
		res, err := planner.New(stub, planner.DefaultOptions(), nil, nil).Plan(context.Background(), g, p, []model.EVProfile{ev})
		require.NoError(t, err)
		assert.Equal(t, tc.sol.Status, res.Status)
		assert.ErrorIs(t, res.Err(), tc.want)
		if tc.sol.Err != nil {
			assert.ErrorIs(t, res.Err(), boom)
		}
		assert.Empty(t, res.Records)
		assert.Equal(t, planner.Summary{}, res.Summary())
	}
}

type captureSink struct {
	runs   []metrics.RunEvent
	points []metrics.SchedulePoint
}

func (c *captureSink) RecordRun(ev metrics.RunEvent) error {
	c.runs = append(c.runs, ev)
	return nil
}

func (c *captureSink) RecordSchedule(p []metrics.SchedulePoint) error {
	c.points = append(c.points, p...)
	return nil
}

func TestPlan_RecordsMetrics(t *testing.T) {
	g := grid(t, 9, 0.5)
	p := prices(t, g, flat(9, 0.10)...)
	ev := model.EVProfile{Name: "EV1", Arrival: 1, Departure: 9, ArrivalEnergy: 10, DesiredEnergy: 20, MaxChargingPower: 5, BatteryCapacity: 50}
	sink := &captureSink{}

	res, err := planner.New(solver.NewSimplex(0, nil), planner.DefaultOptions(), nil, sink).
		Plan(context.Background(), g, p, []model.EVProfile{ev})
	require.NoError(t, err)
	require.Len(t, sink.runs, 1)
	run := sink.runs[0]
	assert.Equal(t, res.RunID, run.RunID)
	assert.Equal(t, "optimal", run.Status)
	assert.Equal(t, 1, run.Vehicles)
	assert.Equal(t, 9, run.Slots)
	assert.Equal(t, res.Variables, run.Variables)
	assert.Len(t, sink.points, len(res.Records))
}
