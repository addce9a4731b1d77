package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

const defaultLookupConcurrency = 8

// ContentResolver fetches documents from the store through one shared,
// size-bounded worker pool.
type ContentResolver struct {
	store  ports.DocumentStore
	pool   *ants.Pool
	logger *slog.Logger
}

func NewContentResolver(store ports.DocumentStore, concurrency int, logger *slog.Logger) (*ContentResolver, error) {
	if concurrency <= 0 {
		concurrency = defaultLookupConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create lookup pool: %w", err)
	}
	return &ContentResolver{store: store, pool: pool, logger: logger}, nil
}

// Resolve looks up every id and returns the documents that were found.
// Misses and store failures are logged and left out of the result.
func (r *ContentResolver) Resolve(ctx context.Context, ids []domain.DocumentID) (map[domain.DocumentID]*domain.Document, error) {
	out := make(map[domain.DocumentID]*domain.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			doc, err := r.store.GetByID(ctx, id)
			if err != nil {
				if domain.IsKind(err, domain.ErrDocumentNotFound) {
					r.logger.Debug("document_lookup_miss", "doc_id", id)
				} else if ctx.Err() == nil {
					r.logger.Warn("document_lookup_failed", "doc_id", id, "error", err)
				}
				return
			}
			if doc == nil {
				return
			}
			mu.Lock()
			out[id] = doc
			mu.Unlock()
		}
		if err := r.pool.Submit(task); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit document lookup: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the lookup pool.
func (r *ContentResolver) Close() {
	r.pool.Release()
}
