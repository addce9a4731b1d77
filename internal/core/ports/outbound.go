package ports

import (
	"context"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

// LexicalRetriever returns documents ordered by lexical relevance. Hit ids are DocumentIDs.
type LexicalRetriever interface {
	Search(ctx context.Context, query string, limit int) ([]domain.RankedHit, error)
}

// SemanticRetriever returns chunks ordered by embedding similarity. Hit ids are ChunkIDs.
type SemanticRetriever interface {
	Search(ctx context.Context, query string, limit int) ([]domain.RankedHit, error)
}

// DocumentStore resolves a document by id. A miss is domain.ErrDocumentNotFound.
type DocumentStore interface {
	GetByID(ctx context.Context, id domain.DocumentID) (*domain.Document, error)
}

// DocumentRepository persists corpus documents.
type DocumentRepository interface {
	DocumentStore
	Upsert(ctx context.Context, doc *domain.Document) error
}

// RelevanceJudge scores candidates against a query in a single call.
type RelevanceJudge interface {
	Judge(ctx context.Context, req domain.JudgeRequest) ([]domain.Judgment, error)
}

// AnswerGenerator turns a grounded prompt into a user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into overlapping windows.
type Chunker interface {
	Split(text string) []string
}

// ChunkIndex stores embedded chunks keyed by ChunkID.
type ChunkIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
}

// IndexQueue carries document ids from the corpus loader to the indexing worker.
type IndexQueue interface {
	PublishIndexJob(ctx context.Context, documentID domain.DocumentID) error
	SubscribeIndexJobs(ctx context.Context, handler func(context.Context, domain.DocumentID) error) error
}
