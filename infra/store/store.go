// Package store persists a log of planning runs.
package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/evplan/core/planner"
)

// RunRecord captures one planning run and its outcome.
type RunRecord struct {
	RunID       string           `json:"run_id"`
	Timestamp   time.Time        `json:"timestamp"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Objective   float64          `json:"objective"`
	Vehicles    []string         `json:"vehicles"`
	Slots       int              `json:"slots"`
	Variables   int              `json:"variables"`
	Constraints int              `json:"constraints"`
	SolveMS     float64          `json:"solve_ms"`
	Options     planner.Options  `json:"options"`
	Summary     *planner.Summary `json:"summary,omitempty"`
}

// NewRunRecord converts a planner result into a record.
func NewRunRecord(res *planner.Result) RunRecord {
	p := res.Problem()
	rec := RunRecord{
		RunID:       res.RunID,
		Timestamp:   res.Started,
		Status:      res.Status.String(),
		Objective:   res.Objective,
		Slots:       p.Grid.Len(),
		Variables:   res.Variables,
		Constraints: res.Constraints,
		SolveMS:     float64(res.SolveTime.Microseconds()) / 1000,
		Options:     p.Options,
	}
	for _, ev := range p.Vehicles {
		rec.Vehicles = append(rec.Vehicles, ev.Name)
	}
	if err := res.Err(); err != nil {
		rec.Error = err.Error()
	} else {
		s := res.Summary()
		rec.Summary = &s
	}
	return rec
}

// RunQuery defines filters for retrieving records. Zero fields match all.
type RunQuery struct {
	Start   time.Time
	End     time.Time
	Status  string
	Vehicle string
}

// Match reports whether r passes the filters.
func (q RunQuery) Match(r RunRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if q.Vehicle != "" && !slices.Contains(r.Vehicles, q.Vehicle) {
		return false
	}
	return true
}

// RunStore persists RunRecords and supports querying.
type RunStore interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q RunQuery) ([]RunRecord, error)
	Close() error
}

// Config selects the run store backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or empty to disable the run log.
	Backend string `json:"backend" yaml:"backend"`
	// Path is the file location of the store.
	Path string `json:"path" yaml:"path"`
	// MaxSizeMB enables rotation of the jsonl backend when positive.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults applies the default path of the selected backend.
func (c *Config) SetDefaults() {
	if c.Path != "" {
		return
	}
	switch c.Backend {
	case "jsonl":
		c.Path = "runs.jsonl"
	case "sqlite":
		c.Path = "runs.db"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("store: path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("store: rotation settings must not be negative")
	}
	return nil
}

// New opens the configured store. It returns nil when the run log is disabled.
func New(c Config) (RunStore, error) {
	switch c.Backend {
	case "":
		return nil, nil
	case "jsonl":
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}
