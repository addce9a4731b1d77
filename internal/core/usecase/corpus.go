package usecase

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

const maxCorpusLineBytes = 64 << 20

// CorpusRecord is one JSONL line of a crawled corpus.
type CorpusRecord struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Contents string `json:"contents"`
}

type LoadOptions struct {
	// DedupeURLs skips records whose identity key was already loaded.
	DedupeURLs bool
	// Publish enqueues stored documents with contents for chunk indexing.
	Publish bool
	// OnRecord is called after every processed line.
	OnRecord func(LoadReport)
}

type LoadReport struct {
	Lines      int `json:"lines"`
	Stored     int `json:"stored"`
	Published  int `json:"published"`
	Malformed  int `json:"malformed"`
	InvalidIDs int `json:"invalid_ids"`
	Duplicates int `json:"duplicates"`
	Empty      int `json:"empty"`
}

// CorpusLoader imports a JSONL corpus into the document repository.
type CorpusLoader struct {
	repo   ports.DocumentRepository
	queue  ports.IndexQueue
	logger *slog.Logger
}

func NewCorpusLoader(repo ports.DocumentRepository, queue ports.IndexQueue, logger *slog.Logger) *CorpusLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusLoader{repo: repo, queue: queue, logger: logger}
}

func (l *CorpusLoader) Load(ctx context.Context, r io.Reader, opts LoadOptions) (LoadReport, error) {
	var report LoadReport
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxCorpusLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		report.Lines++

		if err := l.loadLine(ctx, line, opts, seen, &report); err != nil {
			return report, err
		}
		if opts.OnRecord != nil {
			opts.OnRecord(report)
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read corpus: %w", err)
	}
	return report, nil
}

func (l *CorpusLoader) loadLine(ctx context.Context, line string, opts LoadOptions, seen map[string]struct{}, report *LoadReport) error {
	var rec CorpusRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		report.Malformed++
		l.logger.Warn("corpus_record_malformed", "line", report.Lines, "error", err)
		return nil
	}
	if err := domain.ValidateDocumentID(rec.ID); err != nil {
		report.InvalidIDs++
		l.logger.Warn("corpus_record_invalid_id", "line", report.Lines, "error", err)
		return nil
	}

	id := domain.DocumentID(rec.ID)
	if opts.DedupeURLs {
		key := domain.IdentityKey(id, rec.URL)
		if _, dup := seen[key]; dup {
			report.Duplicates++
			return nil
		}
		seen[key] = struct{}{}
	}

	doc := &domain.Document{ID: id, URL: strings.TrimSpace(rec.URL), Contents: rec.Contents}
	if err := l.repo.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upsert document %s: %w", id, err)
	}
	report.Stored++

	if strings.TrimSpace(rec.Contents) == "" {
		report.Empty++
		return nil
	}
	if !opts.Publish || l.queue == nil {
		return nil
	}
	if err := l.queue.PublishIndexJob(ctx, id); err != nil {
		return fmt.Errorf("publish index job %s: %w", id, err)
	}
	report.Published++
	return nil
}
