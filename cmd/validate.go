package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evplan/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and inputs and report the model size",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// MQTT and the run store are not needed to build the model.
	cfg.MQTT.Broker = ""
	cfg.Store.Backend = ""
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	prob, err := svc.Build()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d vehicles, %d slots, %d variables, %d constraints\n",
		len(prob.Vehicles), prob.Grid.Len(), prob.Model.NumVariables(), prob.Model.NumConstraints())
	return err
}
