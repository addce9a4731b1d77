package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkMarker separates the owning document id from the chunk ordinal.
const ChunkMarker = "_chunk"

// DocumentID identifies a corpus document and is stable across retrievers.
type DocumentID string

// ChunkID identifies one embedded window of a document: <DocumentID>_chunk<N>.
type ChunkID string

// ValidateDocumentID rejects ids that could not round-trip through a ChunkID.
func ValidateDocumentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return WrapError(ErrInvalidInput, "validate document id", fmt.Errorf("empty id"))
	}
	if strings.Contains(id, ChunkMarker) {
		return WrapError(ErrInvalidInput, "validate document id", fmt.Errorf("id %q contains %q", id, ChunkMarker))
	}
	return nil
}

// NewChunkID builds the chunk id for the n-th window of a document.
func NewChunkID(doc DocumentID, n int) (ChunkID, error) {
	if err := ValidateDocumentID(string(doc)); err != nil {
		return "", err
	}
	if n < 0 {
		return "", WrapError(ErrMalformedChunkID, "new chunk id", fmt.Errorf("negative ordinal %d", n))
	}
	return ChunkID(string(doc) + ChunkMarker + strconv.Itoa(n)), nil
}

// ParseChunkID is the only place a chunk id is split into its parts.
// The suffix after the last marker must be a decimal ordinal and the
// document prefix must be non-empty.
func ParseChunkID(raw string) (ChunkID, error) {
	idx := strings.LastIndex(raw, ChunkMarker)
	if idx <= 0 {
		return "", WrapError(ErrMalformedChunkID, "parse chunk id", fmt.Errorf("%q", raw))
	}
	ordinal := raw[idx+len(ChunkMarker):]
	if ordinal == "" {
		return "", WrapError(ErrMalformedChunkID, "parse chunk id", fmt.Errorf("%q has no ordinal", raw))
	}
	for _, r := range ordinal {
		if r < '0' || r > '9' {
			return "", WrapError(ErrMalformedChunkID, "parse chunk id", fmt.Errorf("%q has non-numeric ordinal", raw))
		}
	}
	return ChunkID(raw), nil
}

// DocumentID returns the owning document. The receiver must come from
// ParseChunkID or NewChunkID.
func (c ChunkID) DocumentID() DocumentID {
	idx := strings.LastIndex(string(c), ChunkMarker)
	if idx < 0 {
		return DocumentID(c)
	}
	return DocumentID(string(c)[:idx])
}

// Ordinal returns the window index encoded in the chunk id.
func (c ChunkID) Ordinal() int {
	idx := strings.LastIndex(string(c), ChunkMarker)
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(string(c)[idx+len(ChunkMarker):])
	if err != nil {
		return -1
	}
	return n
}
