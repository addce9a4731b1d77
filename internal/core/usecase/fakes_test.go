package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

type retrieverFake struct {
	hits  []domain.RankedHit
	err   error
	mu    sync.Mutex
	calls []int
}

func (f *retrieverFake) Search(_ context.Context, _ string, limit int) ([]domain.RankedHit, error) {
	f.mu.Lock()
	f.calls = append(f.calls, limit)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func hitsOf(ids ...string) []domain.RankedHit {
	out := make([]domain.RankedHit, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.RankedHit{ID: id, Rank: i, Score: float64(len(ids) - i)})
	}
	return out
}

type storeFake struct {
	mu   sync.Mutex
	docs map[domain.DocumentID]*domain.Document
	errs map[domain.DocumentID]error
	gets int
}

func newStoreFake(docs ...domain.Document) *storeFake {
	s := &storeFake{docs: map[domain.DocumentID]*domain.Document{}, errs: map[domain.DocumentID]error{}}
	for i := range docs {
		doc := docs[i]
		s.docs[doc.ID] = &doc
	}
	return s
}

func (s *storeFake) GetByID(_ context.Context, id domain.DocumentID) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(string(id)))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (s *storeFake) Upsert(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[doc.ID]; ok {
		return err
	}
	copyDoc := *doc
	s.docs[doc.ID] = &copyDoc
	return nil
}

type judgeFake struct {
	judgments []domain.Judgment
	err       error
	block     bool
	requests  []domain.JudgeRequest
}

func (f *judgeFake) Judge(ctx context.Context, req domain.JudgeRequest) ([]domain.Judgment, error) {
	f.requests = append(f.requests, req)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.judgments, nil
}

type generatorFake struct {
	answer  string
	err     error
	prompts []string
}

func (f *generatorFake) GenerateAnswer(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(t *testing.T, store *storeFake) *ContentResolver {
	t.Helper()
	resolver, err := NewContentResolver(store, 4, discardLogger())
	if err != nil {
		t.Fatalf("NewContentResolver() error = %v", err)
	}
	t.Cleanup(resolver.Close)
	return resolver
}

func docWithURL(id, url, contents string) domain.Document {
	return domain.Document{ID: domain.DocumentID(id), URL: url, Contents: contents}
}
