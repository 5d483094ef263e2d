package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/apismoke/internal/metrics"
	"github.com/jmylchreest/apismoke/internal/observability"
	"github.com/jmylchreest/apismoke/internal/suite"
	"github.com/jmylchreest/apismoke/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the smoke checks on a schedule",
	Long: `Run the smoke checks repeatedly on a cron schedule and expose the
latest outcome as Prometheus metrics.

The metrics server provides:
- /metrics  Prometheus exposition
- /healthz  liveness plus the last run verdict
- /last     the last run outcome as JSON

A run that is still in progress when the next tick fires is skipped.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("schedule", "", "cron expression or descriptor (default from watch.schedule)")
	watchCmd.Flags().String("metrics-address", "", "metrics listen address, empty string disables (default from watch.metrics_address)")
	watchCmd.Flags().Bool("run-on-start", true, "run once immediately on start")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("schedule") {
		cfg.Watch.Schedule, _ = flags.GetString("schedule")
	}
	if flags.Changed("metrics-address") {
		cfg.Watch.MetricsAddress, _ = flags.GetString("metrics-address")
	}
	runOnStart, _ := flags.GetBool("run-on-start")

	logger := observability.WithComponent(slog.Default(), "watch")
	out := cmd.OutOrStdout()

	w, err := watch.New(watch.Config{
		Schedule:        cfg.Watch.Schedule,
		MetricsAddress:  cfg.Watch.MetricsAddress,
		ShutdownTimeout: cfg.Watch.ShutdownTimeout,
		RunOnStart:      runOnStart,
	}, func(ctx context.Context) (*suite.Outcome, error) {
		return executeRun(ctx, cfg, out, slog.Default())
	}, metrics.NewBundle(), logger)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Run(ctx)
}
