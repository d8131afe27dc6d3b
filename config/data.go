package config

import (
	"fmt"

	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/infra/dataset"
)

// DataConfig locates the price feed and the vehicle table. Inline values
// take precedence over files.
type DataConfig struct {
	Prices       dataset.PriceConfig `json:"prices"`
	PriceValues  []float64           `json:"price_values"`
	VehiclesPath string              `json:"vehicles_path"`
	Vehicles     []model.EVProfile   `json:"vehicles"`
}

func (c *DataConfig) SetDefaults() {
	c.Prices.SetDefaults()
}

func (c DataConfig) Validate() error {
	if len(c.PriceValues) == 0 {
		if err := c.Prices.Validate(); err != nil {
			return err
		}
	}
	if len(c.Vehicles) == 0 && c.VehiclesPath == "" {
		return fmt.Errorf("data: vehicles or vehicles_path is required")
	}
	return nil
}

// LoadPrices returns the inline prices or reads the price file.
func (c DataConfig) LoadPrices() ([]float64, error) {
	if len(c.PriceValues) > 0 {
		return c.PriceValues, nil
	}
	return dataset.LoadPrices(c.Prices)
}

// LoadVehicles returns the inline vehicles completed with fleet limits, or
// reads the vehicle table.
func (c DataConfig) LoadVehicles(fleet model.FleetDefaults) ([]model.EVProfile, error) {
	if len(c.Vehicles) == 0 {
		return dataset.LoadVehicles(c.VehiclesPath, fleet)
	}
	out := make([]model.EVProfile, len(c.Vehicles))
	for i, ev := range c.Vehicles {
		out[i] = fleet.Fill(ev)
	}
	return out, nil
}

// OutputConfig selects where the schedule is written. An empty Path writes
// to stdout.
type OutputConfig struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = "csv"
	}
}

func (c OutputConfig) Validate() error {
	if c.Format != "csv" && c.Format != "json" {
		return fmt.Errorf("output: unknown format %q", c.Format)
	}
	return nil
}
