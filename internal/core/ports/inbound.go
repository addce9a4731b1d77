package ports

import (
	"context"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

// SearchService is the inbound contract for hybrid search.
type SearchService interface {
	Search(ctx context.Context, query string, topK int, useJudge bool) (*domain.SearchResponse, error)
}

// AskService answers a question grounded on retrieved documents.
type AskService interface {
	Ask(ctx context.Context, query string) (*domain.Answer, error)
}

// DocumentIndexer is the inbound contract for asynchronous chunk indexing.
type DocumentIndexer interface {
	ProcessByID(ctx context.Context, documentID domain.DocumentID) error
}
