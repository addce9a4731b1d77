package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

// SemanticRetriever embeds the query and searches chunk points.
type SemanticRetriever struct {
	embedder ports.Embedder
	client   *Client
}

func NewSemanticRetriever(embedder ports.Embedder, client *Client) *SemanticRetriever {
	return &SemanticRetriever{embedder: embedder, client: client}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, limit int) ([]domain.RankedHit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []domain.RankedHit{}, nil
	}
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.client.SearchVector(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunk points: %w", err)
	}
	return hits, nil
}
