package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/planner"
	"github.com/kilianp07/evplan/infra/logger"
)

// Setpoint is the power a vehicle should exchange during one slot.
type Setpoint struct {
	Slot        int     `json:"slot"`
	ChargeKW    float64 `json:"charge_kw"`
	DischargeKW float64 `json:"discharge_kw"`
	EnergyKWh   float64 `json:"energy_kwh"`
}

// VehiclePlan is the message published for one vehicle.
type VehiclePlan struct {
	RunID         string     `json:"run_id"`
	Vehicle       string     `json:"ev"`
	IntervalHours float64    `json:"interval_hours"`
	Arrival       int        `json:"arrival"`
	Departure     int        `json:"departure"`
	Setpoints     []Setpoint `json:"setpoints"`
	GeneratedAt   int64      `json:"generated_at"`
}

// RunStatus is the message published once per run.
type RunStatus struct {
	RunID       string  `json:"run_id"`
	Status      string  `json:"status"`
	Objective   float64 `json:"objective"`
	Error       string  `json:"error,omitempty"`
	GeneratedAt int64   `json:"generated_at"`
}

// Plans returns one plan per vehicle covering its whole window, including
// slots without exchange. It is empty unless the run is optimal.
func Plans(res *planner.Result) []VehiclePlan {
	if res.Status != lp.StatusOptimal {
		return nil
	}
	p := res.Problem()
	out := make([]VehiclePlan, 0, len(p.Vehicles))
	for _, ev := range p.Vehicles {
		plan := VehiclePlan{
			RunID:         res.RunID,
			Vehicle:       ev.Name,
			IntervalHours: p.Grid.IntervalHours,
			Arrival:       ev.Arrival,
			Departure:     ev.Departure,
			GeneratedAt:   res.Started.UnixMilli(),
		}
		for _, t := range ev.ActiveSlots(p.Grid) {
			c, d, _ := res.Power(ev.Name, t)
			e, _ := res.Energy(ev.Name, t)
			plan.Setpoints = append(plan.Setpoints, Setpoint{Slot: t, ChargeKW: c, DischargeKW: d, EnergyKWh: e})
		}
		out = append(out, plan)
	}
	return out
}

// Publisher sends schedules to vehicles over MQTT.
type Publisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewPublisher connects to the configured broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt_publisher")
	c, err := connect(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &Publisher{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}, nil
}

// ScheduleTopic is the topic carrying the plan of one vehicle.
func (p *Publisher) ScheduleTopic(vehicle string) string {
	return fmt.Sprintf("%s/%s/schedule", p.prefix, vehicle)
}

// StatusTopic is the topic carrying the outcome of each run.
func (p *Publisher) StatusTopic() string {
	return p.prefix + "/status"
}

// PublishResult publishes the run status and, for optimal runs, one plan per
// vehicle. It stops at the first failed message.
func (p *Publisher) PublishResult(ctx context.Context, res *planner.Result) error {
	st := RunStatus{
		RunID:       res.RunID,
		Status:      res.Status.String(),
		Objective:   res.Objective,
		GeneratedAt: res.Started.UnixMilli(),
	}
	if err := res.Err(); err != nil {
		st.Error = err.Error()
	}
	if err := p.send(ctx, p.StatusTopic(), st); err != nil {
		return err
	}
	plans := Plans(res)
	for _, plan := range plans {
		if err := p.send(ctx, p.ScheduleTopic(plan.Vehicle), plan); err != nil {
			return err
		}
	}
	p.log.Infof("published %d vehicle plans for run %s", len(plans), res.RunID)
	return nil
}

func (p *Publisher) send(ctx context.Context, topic string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := publish(ctx, p.cli, topic, p.qos, p.retain, payload, p.maxRetries, p.backoff, p.log); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
