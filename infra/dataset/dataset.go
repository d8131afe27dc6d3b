// Package dataset loads planning inputs from CSV files: a periodic price feed
// and a table of vehicle sessions.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/evplan/core/model"
)

// ErrColumn is returned when a required column is missing.
var ErrColumn = errors.New("missing column")

// PriceConfig describes where prices are read from.
type PriceConfig struct {
	Path   string `json:"path" yaml:"path"`
	Column string `json:"column" yaml:"column"`
	// Unit is "mwh" for $/MWh feeds or "kwh" for $/kWh.
	Unit string `json:"unit" yaml:"unit"`
	// Skip drops that many data rows before reading.
	Skip int `json:"skip" yaml:"skip"`
	// Limit caps the number of slots; zero reads to the end of the file.
	Limit int `json:"limit" yaml:"limit"`
}

// SetDefaults selects the wholesale feed layout: USEP in $/MWh, 48 periods.
func (c *PriceConfig) SetDefaults() {
	if c.Column == "" {
		c.Column = "USEP ($/MWh)"
	}
	if c.Unit == "" {
		c.Unit = "mwh"
	}
	if c.Limit == 0 {
		c.Limit = 48
	}
}

// Validate checks the settings.
func (c PriceConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("prices: path is required")
	}
	if c.Unit != "mwh" && c.Unit != "kwh" {
		return fmt.Errorf("prices: unknown unit %q", c.Unit)
	}
	if c.Skip < 0 || c.Limit < 0 {
		return fmt.Errorf("prices: skip and limit must not be negative")
	}
	return nil
}

// LoadPrices reads the configured price file.
func LoadPrices(c PriceConfig) ([]float64, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadPrices(f, c)
}

// ReadPrices returns prices in $/kWh in file order. Slot i+1 gets the i-th
// value.
func ReadPrices(r io.Reader, c PriceConfig) ([]float64, error) {
	rows, header, err := readTable(r)
	if err != nil {
		return nil, err
	}
	col, ok := header[normalize(c.Column)]
	if !ok {
		return nil, fmt.Errorf("prices: %w %q", ErrColumn, c.Column)
	}
	div := 1.0
	if c.Unit == "mwh" {
		div = 1000
	}
	if c.Skip > len(rows) {
		return nil, fmt.Errorf("prices: skip %d exceeds %d rows", c.Skip, len(rows))
	}
	rows = rows[c.Skip:]
	if c.Limit > 0 && c.Limit < len(rows) {
		rows = rows[:c.Limit]
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		v, err := parseFloat(row, col)
		if err != nil {
			return nil, fmt.Errorf("prices: row %d: %w", c.Skip+i+1, err)
		}
		out[i] = v / div
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("prices: no rows")
	}
	return out, nil
}

// Vehicle table columns. The limit columns are optional and fall back to the
// fleet defaults.
const (
	ColVehicle       = "EV"
	ColArrival       = "Arrival Time"
	ColDeparture     = "Departure Time"
	ColArrivalEnergy = "Arrival Energy"
	ColDesiredEnergy = "Desired Energy"
	ColMaxCharge     = "Max Charging Power"
	ColMaxDischarge  = "Max Discharging Power"
	ColCapacity      = "Battery Capacity"
)

// LoadVehicles reads the vehicle table at path.
func LoadVehicles(path string, fleet model.FleetDefaults) ([]model.EVProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadVehicles(f, fleet)
}

// ReadVehicles parses one EVProfile per row.
func ReadVehicles(r io.Reader, fleet model.FleetDefaults) ([]model.EVProfile, error) {
	rows, header, err := readTable(r)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int)
	for _, name := range []string{ColVehicle, ColArrival, ColDeparture, ColArrivalEnergy, ColDesiredEnergy} {
		i, ok := header[normalize(name)]
		if !ok {
			return nil, fmt.Errorf("vehicles: %w %q", ErrColumn, name)
		}
		idx[name] = i
	}
	for _, name := range []string{ColMaxCharge, ColMaxDischarge, ColCapacity} {
		if i, ok := header[normalize(name)]; ok {
			idx[name] = i
		}
	}

	out := make([]model.EVProfile, 0, len(rows))
	for n, row := range rows {
		fail := func(err error) error { return fmt.Errorf("vehicles: row %d: %w", n+1, err) }
		name := strings.TrimSpace(row[idx[ColVehicle]])
		arr, err := parseInt(row, idx[ColArrival])
		if err != nil {
			return nil, fail(err)
		}
		dep, err := parseInt(row, idx[ColDeparture])
		if err != nil {
			return nil, fail(err)
		}
		ae, err := parseFloat(row, idx[ColArrivalEnergy])
		if err != nil {
			return nil, fail(err)
		}
		de, err := parseFloat(row, idx[ColDesiredEnergy])
		if err != nil {
			return nil, fail(err)
		}
		ev := fleet.Profile(name, arr, dep, ae, de)
		for col, dst := range map[string]*float64{
			ColMaxCharge:    &ev.MaxChargingPower,
			ColMaxDischarge: &ev.MaxDischargingPower,
			ColCapacity:     &ev.BatteryCapacity,
		} {
			i, ok := idx[col]
			if !ok || strings.TrimSpace(row[i]) == "" {
				continue
			}
			if *dst, err = parseFloat(row, i); err != nil {
				return nil, fail(err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// readTable returns the data rows and a normalized header index.
func readTable(r io.Reader) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}
	header := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		header[normalize(h)] = i
	}
	return records[1:], header, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

func parseFloat(row []string, i int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", row[i])
	}
	return v, nil
}

// parseInt accepts integral floats such as "12.0" written by spreadsheets.
func parseInt(row []string, i int) (int, error) {
	s := strings.TrimSpace(row[i])
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, fmt.Errorf("invalid slot %q", row[i])
	}
	return int(v), nil
}
