package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/core/planner"
)

// PlannerConfig describes the horizon and the optimization options.
type PlannerConfig struct {
	// IntervalHours is the slot length; 0.5 for half-hourly prices.
	IntervalHours float64 `json:"interval_hours"`
	// Slots is the horizon length. Zero uses one slot per loaded price.
	Slots          int             `json:"slots"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	Options        planner.Options `json:"options"`
}

// DefaultPlanner is a half-hourly day with the default site options.
func DefaultPlanner() PlannerConfig {
	return PlannerConfig{IntervalHours: 0.5, TimeoutSeconds: 30, Options: planner.DefaultOptions()}
}

func (c *PlannerConfig) SetDefaults() {
	if c.IntervalHours == 0 {
		c.IntervalHours = 0.5
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	c.Options.SetDefaults()
}

func (c PlannerConfig) Validate() error {
	if c.IntervalHours <= 0 {
		return fmt.Errorf("planner: interval_hours must be positive")
	}
	if c.Slots < 0 || c.TimeoutSeconds < 0 {
		return fmt.Errorf("planner: slots and timeout_seconds must not be negative")
	}
	return c.Options.Validate()
}

// Timeout bounds a single solve.
func (c PlannerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Grid builds the horizon for n loaded prices.
func (c PlannerConfig) Grid(n int) (model.TimeGrid, error) {
	if c.Slots > 0 {
		n = c.Slots
	}
	return model.NewTimeGrid(n, c.IntervalHours)
}
