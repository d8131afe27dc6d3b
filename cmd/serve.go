package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evplan/app"
	"github.com/kilianp07/evplan/infra/logger"
)

var runAt string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Plan on a cron schedule and expose metrics",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&runAt, "at", "", "cron expression, overrides schedule.run_at")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runAt != "" {
		cfg.Schedule.RunAt = runAt
	}
	if cfg.Schedule.RunAt == "" {
		return fmt.Errorf("serve: schedule.run_at or --at is required")
	}
	svc, err := app.New(cfg, app.WithStdout(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	go func() {
		if err := svc.Serve(ctx); err != nil {
			logger.New("main").Errorf("prom server: %v", err)
		}
	}()
	return svc.Schedule(ctx, cfg.Schedule.RunAt)
}
