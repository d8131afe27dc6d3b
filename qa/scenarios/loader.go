package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/core/planner"
)

type Expected struct {
	Status    string   `yaml:"status"`
	Objective *float64 `yaml:"objective,omitempty"`
	// FinalEnergy pins the stored energy at departure per vehicle.
	FinalEnergy map[string]float64 `yaml:"final_energy,omitempty"`
	// BeatsBaseline requires a strictly lower cost than the same fleet with
	// discharging disabled.
	BeatsBaseline bool `yaml:"beats_baseline,omitempty"`
}

type Scenario struct {
	Name          string              `yaml:"name"`
	Description   string              `yaml:"description,omitempty"`
	IntervalHours float64             `yaml:"interval_hours"`
	Prices        []float64           `yaml:"prices"`
	Options       planner.Options     `yaml:"options"`
	Fleet         model.FleetDefaults `yaml:"fleet"`
	Vehicles      []model.EVProfile   `yaml:"vehicles"`
	Expected      Expected            `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := Scenario{Options: planner.DefaultOptions()}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.IntervalHours == 0 {
		sc.IntervalHours = 1
	}
	sc.Options.SetDefaults()
	sc.Fleet.SetDefaults()
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	return &sc, nil
}

// Inputs builds the planner inputs of the scenario.
func (sc *Scenario) Inputs() (model.TimeGrid, model.PriceSeries, []model.EVProfile, error) {
	grid, err := model.NewTimeGrid(len(sc.Prices), sc.IntervalHours)
	if err != nil {
		return model.TimeGrid{}, nil, nil, err
	}
	prices, err := model.NewPriceSeries(grid, sc.Prices)
	if err != nil {
		return model.TimeGrid{}, nil, nil, err
	}
	evs := make([]model.EVProfile, len(sc.Vehicles))
	for i, ev := range sc.Vehicles {
		evs[i] = sc.Fleet.Fill(ev)
	}
	return grid, prices, evs, nil
}
