package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/apismoke/internal/mockbackend"
	"github.com/jmylchreest/apismoke/internal/observability"
	"github.com/jmylchreest/apismoke/internal/version"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve the reference admin backend",
	Long: `Serve an in-memory reference implementation of the admin API the
smoke checks exercise, for local dry runs:

  apismoke mock &
  apismoke run

The OpenAPI document is served at /api/openapi.json.`,
	Args: cobra.NoArgs,
	RunE: runMock,
}

func init() {
	rootCmd.AddCommand(mockCmd)

	mockCmd.Flags().String("host", "", "host to bind to (default from mock.host)")
	mockCmd.Flags().Int("port", 0, "port to listen on (default from mock.port)")
}

func runMock(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Mock.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Mock.Port, _ = flags.GetInt("port")
	}

	serverCfg := mockbackend.DefaultConfig()
	serverCfg.Host = cfg.Mock.Host
	serverCfg.Port = cfg.Mock.Port
	serverCfg.Email = cfg.Mock.Email
	serverCfg.Password = cfg.Mock.Password
	serverCfg.VerboseLogging = cfg.Logging.Level == "debug"

	logger := observability.WithComponent(slog.Default(), "mock")
	srv := mockbackend.NewServer(serverCfg, logger, version.Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Reference backend on http://%s (admin %s)\n", serverCfg.Address(), serverCfg.Email)
	return srv.ListenAndServe(ctx)
}
