package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/tramite-watcher/internal/config"
	"github.com/maltedev/tramite-watcher/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "tramite-watcher",
	Short:         "tramite-watcher checks a RENAPER Mi Trámite procedure and reports status changes.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// setup loads the configuration and installs the configured logger as default.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
