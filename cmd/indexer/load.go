package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-search/internal/core/usecase"
	"github.com/kirillkom/campus-search/internal/infrastructure/storage/localfs"
)

var (
	loadDedupeURLs bool
	loadPublish    bool
)

var loadCmd = &cobra.Command{
	Use:   "load <corpus.jsonl[.gz|.zst]>",
	Short: "Store JSONL corpus records and queue them for embedding",
	Long: `Load reads {"id","url","contents"} records, one per line. Gzip and zstd
files are detected from their header. Records with empty contents are stored
but not queued.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&loadDedupeURLs, "dedupe-urls", true, "skip records whose normalized URL was already loaded")
	loadCmd.Flags().BoolVar(&loadPublish, "publish", true, "queue stored documents for chunk indexing over NATS")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	files, err := localfs.New(filepath.Dir(path))
	if err != nil {
		return err
	}
	corpus, err := files.Open(ctx, filepath.Base(path))
	if err != nil {
		return err
	}
	defer corpus.Close()

	app, err := newApp(ctx, loadPublish)
	if err != nil {
		return err
	}
	defer app.Close()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(fmt.Sprintf("loading %s (%s)", filepath.Base(path), localfs.Kind(path))),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	report, err := app.Loader.Load(ctx, corpus, usecase.LoadOptions{
		DedupeURLs: loadDedupeURLs,
		Publish:    loadPublish,
		OnRecord: func(r usecase.LoadReport) {
			_ = bar.Set(r.Lines)
		},
	})
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
