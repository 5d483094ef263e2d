package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/apismoke/internal/config"
	"github.com/jmylchreest/apismoke/internal/history"
	"github.com/jmylchreest/apismoke/internal/observability"
	"github.com/jmylchreest/apismoke/internal/report"
	"github.com/jmylchreest/apismoke/internal/runner"
	"github.com/jmylchreest/apismoke/internal/suite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the smoke checks once",
	Long: `Run every smoke check once, in order, against the configured backend.

The base URL comes from --base-url, APISMOKE_TARGET_BASE_URL,
REACT_APP_BACKEND_URL, the config file, or http://localhost:8001.

Exit status is 0 when every check passed and 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := executeRun(ctx, cfg, cmd.OutOrStdout(), slog.Default())
	if err != nil {
		return err
	}
	if !outcome.Success {
		return suite.ErrChecksFailed
	}
	return nil
}

// executeRun runs the suite once, then writes the report and stores the run
// when configured. Report and history failures are logged, not returned, so
// they never change the verdict.
func executeRun(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*suite.Outcome, error) {
	outcome, err := suite.Execute(ctx, cfg, out, logger, suite.ExecuteOptions{
		Color: cfg.Output.Color && runner.ColorSupported(),
	})
	if err != nil {
		return nil, fmt.Errorf("running suite: %w", err)
	}

	logger = observability.WithRunID(logger, outcome.RunID)

	if cfg.Output.ReportFile != "" {
		if err := report.Write(cfg.Output.ReportFile, outcome); err != nil {
			observability.WithError(logger, err).Error("failed to write report")
		} else {
			logger.Info("report written", slog.String("path", cfg.Output.ReportFile))
		}
	}

	if cfg.History.Enabled {
		if err := saveHistory(ctx, cfg.History, outcome, logger); err != nil {
			observability.WithError(logger, err).Error("failed to store run history")
		}
	}

	return outcome, nil
}

func saveHistory(ctx context.Context, cfg config.HistoryConfig, outcome *suite.Outcome, logger *slog.Logger) error {
	store, err := history.Open(ctx, cfg, observability.WithComponent(logger, "history"))
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.SaveRun(ctx, outcome); err != nil {
		return err
	}
	return nil
}
