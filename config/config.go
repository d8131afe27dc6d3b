package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/kilianp07/evplan/core/factory"
	"github.com/kilianp07/evplan/core/metrics"
	"github.com/kilianp07/evplan/core/model"
	"github.com/kilianp07/evplan/infra/mqtt"
	"github.com/kilianp07/evplan/infra/store"
)

// EnvPrefix marks environment overrides. K_PLANNER__INTERVAL_HOURS sets
// planner.interval_hours.
const EnvPrefix = "K_"

type Config struct {
	Planner  PlannerConfig        `json:"planner"`
	Fleet    model.FleetDefaults  `json:"fleet"`
	Data     DataConfig           `json:"data"`
	Output   OutputConfig         `json:"output"`
	Solver   factory.ModuleConfig `json:"solver"`
	Metrics  metrics.Config       `json:"metrics"`
	Store    store.Config         `json:"store"`
	MQTT     mqtt.Config          `json:"mqtt"`
	Logging  LoggingConfig        `json:"logging"`
	Schedule ScheduleConfig       `json:"schedule"`
}

// ScheduleConfig drives the serve mode. RunAt is a standard five field cron
// expression or a descriptor such as "@daily".
type ScheduleConfig struct {
	RunAt string `json:"run_at"`
}

func (c ScheduleConfig) Validate() error {
	if c.RunAt == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.RunAt); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	return nil
}

// Default returns a configuration with every optional value filled.
func Default() Config {
	c := Config{Planner: DefaultPlanner()}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset values of every section.
func (c *Config) SetDefaults() {
	c.Planner.SetDefaults()
	c.Fleet.SetDefaults()
	c.Data.SetDefaults()
	c.Output.SetDefaults()
	if c.Solver.Type == "" {
		c.Solver.Type = "simplex"
	}
	c.Store.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	c.Logging.SetDefaults()
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	return errors.Join(
		c.Planner.Validate(),
		c.Data.Validate(),
		c.Output.Validate(),
		c.Metrics.Validate(),
		c.Store.Validate(),
		c.MQTT.Validate(),
		c.Logging.Validate(),
		c.Schedule.Validate(),
	)
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	prefix := strings.ToLower(EnvPrefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), prefix)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// Keys absent from the file keep the values set here.
	cfg := Config{Planner: DefaultPlanner()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
