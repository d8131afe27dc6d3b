// Package infra contains technical adapters: the simplex solver, CSV
// loaders, the run store, MQTT publishing and metrics exporters. These
// packages should depend only on the interfaces defined in the core packages.
package infra
