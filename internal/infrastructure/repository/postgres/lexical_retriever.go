package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

// LexicalRetriever ranks documents with PostgreSQL full-text search over the
// generated search_vector column.
type LexicalRetriever struct {
	db         *sql.DB
	textConfig string
}

func NewLexicalRetriever(db *sql.DB, textConfig string) (*LexicalRetriever, error) {
	cfg, err := normalizeTextConfig(textConfig)
	if err != nil {
		return nil, err
	}
	return &LexicalRetriever{db: db, textConfig: cfg}, nil
}

func (r *LexicalRetriever) Search(ctx context.Context, query string, limit int) ([]domain.RankedHit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []domain.RankedHit{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT d.id, d.url, ts_rank_cd(d.search_vector, q) AS score
FROM documents d, plainto_tsquery($1::regconfig, $2) q
WHERE d.search_vector @@ q
ORDER BY score DESC, d.id ASC
LIMIT $3
`, r.textConfig, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	hits := make([]domain.RankedHit, 0, limit)
	for rows.Next() {
		var hit domain.RankedHit
		if err := rows.Scan(&hit.ID, &hit.URL, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		hit.Rank = len(hits)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return hits, nil
}
