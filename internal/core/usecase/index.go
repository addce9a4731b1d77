package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// IndexDocumentUseCase chunks one stored document, embeds the chunks and
// writes them to the chunk index.
type IndexDocumentUseCase struct {
	store     ports.DocumentStore
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.ChunkIndex
	batchSize int
}

func NewIndexDocumentUseCase(
	store ports.DocumentStore,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.ChunkIndex,
	batchSize int,
) *IndexDocumentUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &IndexDocumentUseCase{
		store:     store,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
	}
}

func (uc *IndexDocumentUseCase) ProcessByID(ctx context.Context, documentID domain.DocumentID) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	chunks, err := uc.chunk(doc.Contents)
	if err != nil {
		return err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return err
	}

	if err := uc.index.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

func (uc *IndexDocumentUseCase) loadDocument(ctx context.Context, documentID domain.DocumentID) (*domain.Document, error) {
	if err := domain.ValidateDocumentID(string(documentID)); err != nil {
		return nil, err
	}
	doc, err := uc.store.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *IndexDocumentUseCase) chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("empty document contents"))
	}
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

// embed calls the embedder in fixed-size batches and keeps chunk order.
func (uc *IndexDocumentUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := uc.embedder.Embed(ctx, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), end-start),
			)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
