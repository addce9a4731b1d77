package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-search/internal/bootstrap"
	"github.com/kirillkom/campus-search/internal/config"
	"github.com/kirillkom/campus-search/internal/observability/logging"
)

var (
	envFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Load and index the campus corpus",
	Long: `indexer prepares the search backends.

Example usage:
  indexer schema                        # Create tables and indexes
  indexer load data/corpus.jsonl.zst    # Store records and queue them for embedding
  indexer reindex --direct              # Re-embed every stored document in-process`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
		} else {
			_ = godotenv.Load()
		}
		cfg = config.Load()
		logger = logging.New(os.Stderr, "indexer", cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default is ./.env when present)")
}

func newApp(ctx context.Context, withQueue bool) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger, WithQueue: withQueue})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
