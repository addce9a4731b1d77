package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

const (
	schemaLockKey     = int64(2026101501)
	defaultTextConfig = "simple"
)

var textConfigPattern = regexp.MustCompile(`^[a-z_]+$`)

type DocumentRepository struct {
	db         *sql.DB
	textConfig string
}

// NewDocumentRepository binds the repository to a full-text search
// configuration such as "simple" or "english".
func NewDocumentRepository(db *sql.DB, textConfig string) (*DocumentRepository, error) {
	cfg, err := normalizeTextConfig(textConfig)
	if err != nil {
		return nil, err
	}
	return &DocumentRepository{db: db, textConfig: cfg}, nil
}

func normalizeTextConfig(textConfig string) (string, error) {
	if textConfig == "" {
		return defaultTextConfig, nil
	}
	if !textConfigPattern.MatchString(textConfig) {
		return "", domain.WrapError(domain.ErrInvalidInput, "text search config", fmt.Errorf("invalid name %q", textConfig))
	}
	return textConfig, nil
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaDDL(r.textConfig)); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func schemaDDL(textConfig string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL DEFAULT '',
	contents TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL,
	search_vector tsvector GENERATED ALWAYS AS (to_tsvector('%s'::regconfig, coalesce(contents, ''))) STORED
);

CREATE INDEX IF NOT EXISTS idx_documents_search_vector ON documents USING GIN (search_vector);
`, textConfig)
}

func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.WrapError(domain.ErrInvalidInput, "upsert document", errors.New("nil document"))
	}
	if err := domain.ValidateDocumentID(string(doc.ID)); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, url, contents, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET url = EXCLUDED.url, contents = EXCLUDED.contents, updated_at = EXCLUDED.updated_at
`, string(doc.ID), doc.URL, doc.Contents, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id domain.DocumentID) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, contents
FROM documents
WHERE id = $1
`, string(id))

	var doc domain.Document
	var rawID string
	if err := row.Scan(&rawID, &doc.URL, &doc.Contents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.ID = domain.DocumentID(rawID)
	return &doc, nil
}

// ListIDs pages through document ids in ascending order, starting after
// afterID. Only documents with contents are listed.
func (r *DocumentRepository) ListIDs(ctx context.Context, afterID domain.DocumentID, limit int) ([]domain.DocumentID, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM documents
WHERE id > $1 AND contents <> ''
ORDER BY id ASC
LIMIT $2
`, string(afterID), limit)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer rows.Close()

	ids := make([]domain.DocumentID, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, domain.DocumentID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document ids: %w", err)
	}
	return ids, nil
}
