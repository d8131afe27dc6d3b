package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/evplan/config"
	"github.com/kilianp07/evplan/core/lp"
	coremetrics "github.com/kilianp07/evplan/core/metrics"
	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/core/planner"
	"github.com/kilianp07/evplan/infra/logger"
	"github.com/kilianp07/evplan/infra/metrics"
	"github.com/kilianp07/evplan/infra/mqtt"
	"github.com/kilianp07/evplan/infra/store"
	"github.com/kilianp07/evplan/pkg/export"

	// registers the solver backends
	_ "github.com/kilianp07/evplan/infra/solver"
)

// ResultPublisher distributes a finished run to the chargers.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res *planner.Result) error
	Disconnect()
}

// Service runs the planner on the configured inputs and hands the result to
// the export, run store, publisher and metrics sinks.
type Service struct {
	cfg       *config.Config
	planner   *planner.Planner
	sink      coremetrics.MetricsSink
	store     store.RunStore
	publisher ResultPublisher
	log       logger.Logger
	stdout    io.Writer
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher replaces the MQTT publisher built from the configuration.
func WithPublisher(p ResultPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithSolver replaces the configured solver.
func WithSolver(sv lp.Solver) Option {
	return func(s *Service) {
		s.planner = planner.New(sv, s.cfg.Planner.Options, logger.New("planner"), s.sink)
	}
}

// WithStdout sets the writer used when no output path is configured.
func WithStdout(w io.Writer) Option { return func(s *Service) { s.stdout = w } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	logg := logger.New("service")
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	sv, err := lp.NewSolver(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	rs, err := store.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	s := &Service{
		cfg:     cfg,
		planner: planner.New(sv, cfg.Planner.Options, logger.New("planner"), sink),
		sink:    sink,
		store:   rs,
		log:     logg,
		stdout:  os.Stdout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.publisher == nil && cfg.MQTT.Enabled() {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.publisher = pub
	}
	return s, nil
}

// Inputs loads the horizon, prices and vehicles named by the configuration.
func (s *Service) Inputs() (model.TimeGrid, model.PriceSeries, []model.EVProfile, error) {
	values, err := s.cfg.Data.LoadPrices()
	if err != nil {
		return model.TimeGrid{}, nil, nil, fmt.Errorf("load prices: %w", err)
	}
	grid, err := s.cfg.Planner.Grid(len(values))
	if err != nil {
		return model.TimeGrid{}, nil, nil, err
	}
	if len(values) > grid.Len() {
		values = values[:grid.Len()]
	}
	prices, err := model.NewPriceSeries(grid, values)
	if err != nil {
		return model.TimeGrid{}, nil, nil, err
	}
	evs, err := s.cfg.Data.LoadVehicles(s.cfg.Fleet)
	if err != nil {
		return model.TimeGrid{}, nil, nil, fmt.Errorf("load vehicles: %w", err)
	}
	return grid, prices, evs, nil
}

// Build loads the inputs and builds the model without solving it.
func (s *Service) Build() (*planner.Problem, error) {
	grid, prices, evs, err := s.Inputs()
	if err != nil {
		return nil, err
	}
	return s.planner.Build(grid, prices, evs)
}

// Run plans once. Construction failures are returned as errors; any solver
// outcome is returned as a Result after it has been exported and recorded.
func (s *Service) Run(ctx context.Context) (*planner.Result, error) {
	grid, prices, evs, err := s.Inputs()
	if err != nil {
		return nil, err
	}
	s.log.Infof("planning %d vehicles over %d slots", len(evs), grid.Len())

	solveCtx := ctx
	if t := s.cfg.Planner.Timeout(); t > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	res, err := s.planner.Plan(solveCtx, grid, prices, evs)
	if err != nil {
		return nil, err
	}
	if err := s.write(res); err != nil {
		return res, fmt.Errorf("write output: %w", err)
	}
	if s.store != nil {
		if err := s.store.Append(ctx, store.NewRunRecord(res)); err != nil {
			s.log.Errorf("run store: %v", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishResult(ctx, res); err != nil {
			s.log.Errorf("publish: %v", err)
		}
	}
	if f, ok := s.sink.(coremetrics.Flusher); ok {
		if err := f.Flush(); err != nil {
			s.log.Warnf("metrics flush: %v", err)
		}
	}
	return res, nil
}

func (s *Service) write(res *planner.Result) error {
	out := s.cfg.Output
	if out.Path == "" {
		return export.Write(s.stdout, out.Format, res)
	}
	f, err := os.Create(out.Path)
	if err != nil {
		return err
	}
	if err := export.Write(f, out.Format, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Serve exposes the Prometheus endpoint until ctx is cancelled. It returns
// immediately when no listen address is configured.
func (s *Service) Serve(ctx context.Context) error {
	if s.cfg.Metrics.ListenAddr == "" {
		return nil
	}
	return metrics.StartPromServer(ctx, s.cfg.Metrics.ListenAddr)
}

// History returns the stored runs matching q.
func (s *Service) History(ctx context.Context, q store.RunQuery) ([]store.RunRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("run store is disabled")
	}
	return s.store.Query(ctx, q)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
