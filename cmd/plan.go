package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evplan/app"
	"github.com/kilianp07/evplan/config"
	"github.com/kilianp07/evplan/infra/logger"
)

var (
	outPath   string
	outFormat string
	serve     bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the cost-minimal schedule for the configured fleet",
	RunE:  runPlan,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, planCmd} {
		c.Flags().StringVarP(&outPath, "out", "o", "", "output file, stdout when empty")
		c.Flags().StringVarP(&outFormat, "format", "f", "", "output format: csv or json")
		c.Flags().BoolVar(&serve, "serve", false, "keep serving metrics after planning")
	}
	rootCmd.AddCommand(planCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if outPath != "" {
		cfg.Output.Path = outPath
	}
	if outFormat != "" {
		cfg.Output.Format = outFormat
		if err := cfg.Output.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	if serve {
		go func() {
			if err := svc.Serve(ctx); err != nil {
				logger.New("main").Errorf("prom server: %v", err)
			}
		}()
	}
	res, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	if serve {
		<-ctx.Done()
	}
	return res.Err()
}
