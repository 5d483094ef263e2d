// Package cmd implements the CLI commands for apismoke.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/apismoke/internal/config"
	"github.com/jmylchreest/apismoke/internal/observability"
	"github.com/jmylchreest/apismoke/internal/suite"
	"github.com/jmylchreest/apismoke/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command. Without a subcommand it behaves like "run".
var rootCmd = &cobra.Command{
	Use:     "apismoke",
	Short:   "Smoke test an admin API backend",
	Version: version.Short(),
	Long: `apismoke runs an ordered smoke test against a web backend's admin API:
CORS preflight, admin login, settings read, settings update, persistence
read-back, and reachability of a list of endpoints.

It exits 0 when every check passed and 1 otherwise, so it can gate CI
pipelines and deployments.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, suite.ErrChecksFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./apismoke.yaml)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("base-url", "", "backend base URL (default http://localhost:8001)")
	pf.String("email", "", "admin email")
	pf.String("password", "", "admin password")
	pf.String("report", "", "write a .json or .yaml run report to this path")
	pf.Bool("no-color", false, "disable colored output")
	pf.Bool("history", false, "store the run in the history database")
}

// loadConfig reads configuration from file and environment, then applies
// explicitly set flags on top.
//
// Priority order (highest to lowest):
//  1. CLI flags - only if explicitly provided
//  2. Environment variables (APISMOKE_*, REACT_APP_BACKEND_URL)
//  3. Config file values
//  4. Built-in defaults
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("base-url") {
		cfg.Target.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("email") {
		cfg.Credentials.Email, _ = flags.GetString("email")
	}
	if flags.Changed("password") {
		cfg.Credentials.Password, _ = flags.GetString("password")
	}
	if flags.Changed("report") {
		cfg.Output.ReportFile, _ = flags.GetString("report")
	}
	if flags.Changed("no-color") {
		noColor, _ := flags.GetBool("no-color")
		cfg.Output.Color = !noColor
	}
	if flags.Changed("history") {
		cfg.History.Enabled, _ = flags.GetBool("history")
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	// Handle "warning" as an alias for "warn"
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	initLogging(cfg.Logging)

	var overridden []string
	flags.Visit(func(f *pflag.Flag) {
		overridden = append(overridden, f.Name)
	})
	if len(overridden) > 0 {
		slog.Debug("flags override configuration", slog.Any("flags", overridden))
	}
	return cfg, nil
}

// initLogging installs the redacting slog logger as the default.
func initLogging(cfg config.LoggingConfig) {
	logger := observability.NewLoggerWithWriter(cfg, os.Stderr)
	observability.SetDefault(logger)
}
