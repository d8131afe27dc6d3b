package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/core/planner"
	"github.com/kilianp07/evplan/infra/logger"
	"github.com/kilianp07/evplan/infra/metrics"
	"github.com/kilianp07/evplan/infra/solver"
)

const tolerance = 1e-6

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	grid, prices, evs, err := sc.Inputs()
	if err != nil {
		t.Fatalf("inputs: %v", err)
	}
	p := planner.New(solver.NewSimplex(0, logger.NopLogger{}), sc.Options, logger.NopLogger{}, sink)
	res, err := p.Plan(context.Background(), grid, prices, evs)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if got := res.Status.String(); got != sc.Expected.Status {
		t.Fatalf("scenario %s expected status %s, got %s", sc.Name, sc.Expected.Status, got)
	}
	if n, err := testutil.GatherAndCount(reg, "planner_runs_total"); err != nil || n != 1 {
		t.Errorf("runs metric: %d series, err %v", n, err)
	}
	if res.Status != lp.StatusOptimal {
		return
	}
	if want := sc.Expected.Objective; want != nil && !near(res.Objective, *want) {
		t.Errorf("scenario %s expected objective %.6f, got %.6f", sc.Name, *want, res.Objective)
	}
	for name, want := range sc.Expected.FinalEnergy {
		var dep int
		for _, ev := range evs {
			if ev.Name == name {
				dep = ev.Departure
			}
		}
		got, ok := res.Energy(name, dep)
		if !ok || !near(got, want) {
			t.Errorf("scenario %s: %s final energy %.6f, want %.6f", sc.Name, name, got, want)
		}
	}
	checkPhysics(t, res, sc.Options, evs)

	if sc.Expected.BeatsBaseline {
		base := make([]model.EVProfile, len(evs))
		for i, ev := range evs {
			ev.MaxDischargingPower = 0
			base[i] = ev
		}
		bp := planner.New(solver.NewSimplex(0, nil), sc.Options, nil, nil)
		br, err := bp.Plan(context.Background(), grid, prices, base)
		if err != nil || br.Status != lp.StatusOptimal {
			t.Fatalf("baseline: %v %v", br, err)
		}
		if res.Objective >= br.Objective-tolerance {
			t.Errorf("scenario %s: cost %.4f does not beat baseline %.4f", sc.Name, res.Objective, br.Objective)
		}
	}
}

func checkPhysics(t *testing.T, res *planner.Result, opts planner.Options, evs []model.EVProfile) {
	for _, ev := range evs {
		e, _ := res.Energy(ev.Name, ev.Departure)
		if e < ev.DesiredEnergy-tolerance {
			t.Errorf("%s leaves with %.4f kWh, wants %.4f", ev.Name, e, ev.DesiredEnergy)
		}
	}
	for _, r := range res.Records {
		if r.ChargeKW < -tolerance || r.DischargeKW < -tolerance {
			t.Errorf("negative power in %+v", r)
		}
		if r.EnergyKWh < -tolerance {
			t.Errorf("negative energy in %+v", r)
		}
	}
	if !opts.EnforceGridCap {
		return
	}
	for _, tot := range res.Totals() {
		if tot.NetKW() > opts.GridPowerCap+tolerance {
			t.Errorf("slot %d draws %.4f kW over cap %.4f", tot.Slot, tot.NetKW(), opts.GridPowerCap)
		}
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < tolerance && d > -tolerance
}
