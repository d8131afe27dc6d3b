package planner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/metrics"
	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/infra/logger"
)

// Planner runs the build, solve and extract pipeline. It keeps no state
// between runs and can be used concurrently if its solver and sink can.
type Planner struct {
	solver lp.Solver
	opts   Options
	log    logger.Logger
	sink   metrics.MetricsSink
	now    func() time.Time
}

// New returns a Planner. A nil log or sink disables the respective output.
func New(solver lp.Solver, opts Options, log logger.Logger, sink metrics.MetricsSink) *Planner {
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	opts.SetDefaults()
	return &Planner{solver: solver, opts: opts, log: log, sink: sink, now: time.Now}
}

// Options returns the model variant used by the planner.
func (p *Planner) Options() Options { return p.opts }

// Build constructs the model without solving it.
func (p *Planner) Build(grid model.TimeGrid, prices model.PriceSeries, evs []model.EVProfile) (*Problem, error) {
	prob, err := Build(grid, prices, evs, p.opts)
	if err != nil {
		p.log.Warnf("model construction failed: %v", err)
		return nil, err
	}
	return prob, nil
}

// Plan builds and solves the model. The returned error is only set for
// invalid input; solver outcomes other than optimal are reported through
// Result.Status and Result.Err so that a batch of runs can continue.
func (p *Planner) Plan(ctx context.Context, grid model.TimeGrid, prices model.PriceSeries, evs []model.EVProfile) (*Result, error) {
	start := p.now()
	prob, err := p.Build(grid, prices, evs)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:       uuid.NewString(),
		Started:     start,
		Variables:   prob.Model.NumVariables(),
		Constraints: prob.Model.NumConstraints(),
		BuildTime:   p.now().Sub(start),
		problem:     prob,
	}
	p.log.Debugw("model built", map[string]any{
		"run_id":      res.RunID,
		"vehicles":    len(evs),
		"slots":       grid.Len(),
		"variables":   res.Variables,
		"constraints": res.Constraints,
	})

	solveStart := p.now()
	sol := p.solver.Solve(ctx, prob.Model)
	res.SolveTime = p.now().Sub(solveStart)
	res.solution = sol
	res.Status = sol.Status

	if sol.Status == lp.StatusOptimal {
		res.Objective = sol.Objective
		res.Records, _ = Extract(prob, sol, p.opts.NegligibleThreshold)
		p.log.Infow("schedule solved", map[string]any{
			"run_id":    res.RunID,
			"status":    sol.Status.String(),
			"objective": res.Objective,
			"records":   len(res.Records),
			"solve_ms":  res.SolveTime.Milliseconds(),
		})
	} else if err := res.Err(); errors.Is(err, ErrInfeasible) {
		p.log.Warnf("run %s: %v", res.RunID, err)
	} else {
		p.log.Errorf("run %s: %v", res.RunID, err)
	}

	p.record(res, len(evs), grid.Len())
	return res, nil
}

func (p *Planner) record(res *Result, vehicles, slots int) {
	ev := metrics.RunEvent{
		RunID:       res.RunID,
		Status:      res.Status.String(),
		Objective:   res.Objective,
		Vehicles:    vehicles,
		Slots:       slots,
		Variables:   res.Variables,
		Constraints: res.Constraints,
		BuildTime:   res.BuildTime,
		SolveTime:   res.SolveTime,
		Time:        res.Started,
	}
	if err := p.sink.RecordRun(ev); err != nil {
		p.log.Errorf("record run: %v", err)
	}
	rec, ok := p.sink.(metrics.ScheduleRecorder)
	if !ok || len(res.Records) == 0 {
		return
	}
	points := make([]metrics.SchedulePoint, len(res.Records))
	for i, r := range res.Records {
		points[i] = metrics.SchedulePoint{
			RunID:       res.RunID,
			Vehicle:     r.Vehicle,
			Slot:        r.Slot,
			ChargeKW:    r.ChargeKW,
			DischargeKW: r.DischargeKW,
			NetKWh:      r.NetEnergyKWh,
			EnergyKWh:   r.EnergyKWh,
			Price:       r.Price,
			Cost:        r.Cost,
			Time:        res.Started,
		}
	}
	if err := rec.RecordSchedule(points); err != nil {
		p.log.Errorf("record schedule: %v", err)
	}
}
