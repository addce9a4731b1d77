package main

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

var (
	reindexDirect   bool
	reindexPageSize int
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed every stored document",
	Long: `Reindex walks all documents with contents. By default each id is queued
for the worker; --direct chunks and embeds in this process instead.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexDirect, "direct", false, "index in-process instead of queuing jobs")
	reindexCmd.Flags().IntVar(&reindexPageSize, "page-size", 500, "ids fetched per page")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, !reindexDirect)
	if err != nil {
		return err
	}
	defer app.Close()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("reindexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)
	defer func() { _ = bar.Finish() }()

	var (
		after    domain.DocumentID
		done     int
		failures []error
	)
	for {
		ids, err := app.Repo.ListIDs(ctx, after, reindexPageSize)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if reindexDirect {
				err = app.Indexer.ProcessByID(ctx, id)
			} else {
				err = app.Queue.PublishIndexJob(ctx, id)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("reindex_document_failed", "doc_id", string(id), "error", err)
				failures = append(failures, fmt.Errorf("%s: %w", id, err))
				continue
			}
			done++
			_ = bar.Add(1)
		}
		after = ids[len(ids)-1]
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nreindexed %d documents, %d failed\n", done, len(failures))
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return nil
}
