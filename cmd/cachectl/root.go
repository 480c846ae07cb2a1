package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/logger"
)

var (
	// Global flags.
	verbose bool
	version string
)

var rootCmd = &cobra.Command{
	Use:   "cachectl",
	Short: "Manage cachekit strategies and snapshots",
	Long: `cachectl works with cachekit strategy files and persisted cache snapshots.

Examples:
  # Check a strategy file
  cachectl validate strategies.yaml

  # Show what the "api" strategy persisted to Redis
  cachectl inspect --redis redis://localhost:6379/0 --strategy api

  # Replay a random workload against a strategy file
  cachectl simulate strategies.yaml --ops 100000

  # Serve a strategy file and apply edits live
  cachectl watch strategies.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&version, "snapshot-version", "1", "snapshot version tag")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logger.New(
		logger.WithText(),
		logger.WithOutput(os.Stderr),
		logger.WithLevel(level),
		logger.WithSentry(logger.SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: "cli",
		}),
	)
}
