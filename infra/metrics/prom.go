package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/kilianp07/evplan/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	solve       prometheus.Histogram
	objective   prometheus.Gauge
	variables   prometheus.Gauge
	constraints prometheus.Gauge
	energy      *prometheus.GaugeVec
	pusher      *push.Pusher
}

// NewPromSink registers planner metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_runs_total",
		Help: "Total number of planning runs by solver status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.solve, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_solve_seconds",
		Help:    "Time spent in the LP solver",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_objective",
		Help: "Total energy cost of the last optimal schedule",
	})); err != nil {
		return nil, err
	}
	if s.variables, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_model_variables",
		Help: "Number of decision variables in the last model",
	})); err != nil {
		return nil, err
	}
	if s.constraints, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_model_constraints",
		Help: "Number of constraints in the last model",
	})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planner_scheduled_energy_kwh",
		Help: "Net energy scheduled per vehicle in the last run",
	}, []string{"ev"})); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when an identical one
// exists, so that several sinks can share the default registerer.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// WithPushGateway makes Flush push the planner metrics to a Prometheus push
// gateway under the given job name.
func (s *PromSink) WithPushGateway(url, job string) *PromSink {
	s.pusher = push.New(url, job).
		Collector(s.runs).
		Collector(s.solve).
		Collector(s.objective).
		Collector(s.variables).
		Collector(s.constraints).
		Collector(s.energy)
	return s
}

// RecordRun updates the run counters and model gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Status).Inc()
	s.solve.Observe(ev.SolveTime.Seconds())
	s.variables.Set(float64(ev.Variables))
	s.constraints.Set(float64(ev.Constraints))
	if ev.Status == "optimal" {
		s.objective.Set(ev.Objective)
	}
	return nil
}

// RecordSchedule sets the per-vehicle net energy of the run.
func (s *PromSink) RecordSchedule(points []coremetrics.SchedulePoint) error {
	s.energy.Reset()
	net := make(map[string]float64)
	for _, p := range points {
		net[p.Vehicle] += p.NetKWh
	}
	for ev, kwh := range net {
		s.energy.WithLabelValues(ev).Set(kwh)
	}
	return nil
}

// Flush pushes the metrics when a push gateway is configured.
func (s *PromSink) Flush() error {
	if s.pusher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.pusher.PushContext(ctx)
}
