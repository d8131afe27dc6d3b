package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evplan/app"
	"github.com/kilianp07/evplan/infra/store"
)

var (
	histStatus  string
	histVehicle string
	histSince   time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored planning runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&histStatus, "status", "", "only runs with this status")
	historyCmd.Flags().StringVar(&histVehicle, "ev", "", "only runs planning this vehicle")
	historyCmd.Flags().DurationVar(&histSince, "since", 0, "only runs younger than this")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.MQTT.Broker = ""
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	q := store.RunQuery{Status: histStatus, Vehicle: histVehicle}
	if histSince > 0 {
		q.Start = time.Now().Add(-histSince)
	}
	runs, err := svc.History(cmd.Context(), q)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTIME\tSTATUS\tOBJECTIVE\tVEHICLES\tSOLVE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%d\t%.1fms\n",
			r.RunID, r.Timestamp.Format(time.RFC3339), r.Status, r.Objective, len(r.Vehicles), r.SolveMS)
	}
	return w.Flush()
}
