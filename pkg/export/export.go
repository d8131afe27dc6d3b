package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/evplan/core/lp"
	"github.com/kilianp07/evplan/core/planner"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Header is the column layout of the schedule CSV.
var Header = []string{"EV", "Time", "Charge (kW)", "Discharge (kW)", "Net Energy (kWh)", "Price ($/kWh)", "Cost ($)", "Energy (kWh)"}

// Report is the JSON document written for a run.
type Report struct {
	RunID     string              `json:"run_id"`
	Status    lp.Status           `json:"status"`
	Objective float64             `json:"objective"`
	Error     string              `json:"error,omitempty"`
	Schedule  []planner.Record    `json:"schedule"`
	Summary   planner.Summary     `json:"summary"`
	Totals    []planner.SlotTotal `json:"totals,omitempty"`
}

// NewReport collects the exported view of res.
func NewReport(res *planner.Result) Report {
	r := Report{
		RunID:     res.RunID,
		Status:    res.Status,
		Objective: res.Objective,
		Schedule:  res.Records,
		Summary:   res.Summary(),
		Totals:    res.Totals(),
	}
	if r.Schedule == nil {
		r.Schedule = []planner.Record{}
	}
	if err := res.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// Write dispatches on format.
func Write(w io.Writer, format string, res *planner.Result) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, res.Records)
	case FormatJSON:
		return WriteJSON(w, NewReport(res))
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the run report to w as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per schedule record.
func WriteCSV(w io.Writer, records []planner.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Vehicle,
			strconv.Itoa(r.Slot),
			formatFloat(r.ChargeKW),
			formatFloat(r.DischargeKW),
			formatFloat(r.NetEnergyKWh),
			formatFloat(r.Price),
			formatFloat(r.Cost),
			formatFloat(r.EnergyKWh),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
