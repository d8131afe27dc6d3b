package metrics

import (
	"fmt"

	"github.com/kilianp07/evplan/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks      []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	ListenAddr string                 `json:"listen_addr" yaml:"listen_addr"` // optional /metrics endpoint
}

// Validate checks that every sink has a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: type is required", i)
		}
	}
	return nil
}
