package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evplan/core/metrics"
	"github.com/kilianp07/evplan/infra/logger"
)

// InfluxSink writes planning runs and schedules to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one planner_run point.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("planner_run").
		AddTag("run_id", ev.RunID).
		AddTag("status", ev.Status).
		AddField("objective", round3(ev.Objective)).
		AddField("vehicles", ev.Vehicles).
		AddField("slots", ev.Slots).
		AddField("variables", ev.Variables).
		AddField("constraints", ev.Constraints).
		AddField("solve_ms", round3(ev.SolveTime.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one schedule_slot point per record in a single batch.
func (s *InfluxSink) RecordSchedule(points []coremetrics.SchedulePoint) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	batch := make([]*write.Point, len(points))
	for i, r := range points {
		batch[i] = write.NewPointWithMeasurement("schedule_slot").
			AddTag("run_id", r.RunID).
			AddTag("ev", r.Vehicle).
			AddTag("slot", strconv.Itoa(r.Slot)).
			AddField("charge_kw", round3(r.ChargeKW)).
			AddField("discharge_kw", round3(r.DischargeKW)).
			AddField("net_kwh", round3(r.NetKWh)).
			AddField("energy_kwh", round3(r.EnergyKWh)).
			AddField("price", r.Price).
			AddField("cost", round3(r.Cost)).
			SetTime(r.Time)
	}
	return s.writeAPI.WritePoint(ctx, batch...)
}

// Flush releases the client resources.
func (s *InfluxSink) Flush() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
