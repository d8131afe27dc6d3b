package metrics

import "time"

// RunEvent summarizes one planning run.
type RunEvent struct {
	RunID       string
	Status      string
	Objective   float64
	Vehicles    int
	Slots       int
	Variables   int
	Constraints int
	BuildTime   time.Duration
	SolveTime   time.Duration
	Time        time.Time
}

// MetricsSink records planning runs for observability purposes.
type MetricsSink interface {
	RecordRun(ev RunEvent) error
}

// SchedulePoint is one scheduled (vehicle, slot) exchange.
type SchedulePoint struct {
	RunID       string
	Vehicle     string
	Slot        int
	ChargeKW    float64
	DischargeKW float64
	NetKWh      float64
	EnergyKWh   float64 // stored energy at the end of the slot
	Price       float64
	Cost        float64
	Time        time.Time
}

// ScheduleRecorder is implemented by sinks able to store schedule rows.
type ScheduleRecorder interface {
	RecordSchedule(points []SchedulePoint) error
}

// Flusher is implemented by sinks that buffer or push their data at the end
// of a run.
type Flusher interface {
	Flush() error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error             { return nil }
func (NopSink) RecordSchedule([]SchedulePoint) error { return nil }
func (NopSink) Flush() error                         { return nil }
