// Package metrics defines the events emitted by planning runs and the sinks
// that record them. Sinks like PromSink and InfluxSink live in infra/metrics
// and register themselves by name; NewMetricsSink returns a MultiSink when
// several are configured.
package metrics
