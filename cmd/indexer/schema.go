package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-search/internal/infrastructure/repository/postgres"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the document table and full-text index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		repo, err := postgres.NewDocumentRepository(db, cfg.LexicalTSConfig)
		if err != nil {
			return err
		}
		if err := repo.EnsureSchema(cmd.Context()); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready (text search config %q)\n", cfg.LexicalTSConfig)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
