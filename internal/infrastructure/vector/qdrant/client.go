package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
)

// pointNamespace derives stable point ids from chunk ids, so re-indexing a
// document overwrites its points instead of duplicating them.
var pointNamespace = uuid.MustParse("6f1c2d4e-8a53-4f0b-9c77-2e5b8d1a7c40")

type Option func(*Client)

func WithExecutor(exec *resilience.Executor) Option {
	return func(c *Client) {
		c.exec = exec
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	exec       *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PointID returns the deterministic point id of a chunk.
func PointID(chunkID domain.ChunkID) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// IndexChunks replaces the points of doc with one point per chunk.
func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if doc == nil {
		return domain.WrapError(domain.ErrInvalidInput, "index chunks", errors.New("nil document"))
	}
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "index chunks", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		chunkID, err := domain.NewChunkID(doc.ID, i)
		if err != nil {
			return err
		}
		points = append(points, point{
			ID:     PointID(chunkID),
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_id":    string(chunkID),
				"doc_id":      string(doc.ID),
				"url":         doc.URL,
				"chunk_index": i,
				"text":        chunks[i],
			},
		})
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := c.deleteDocumentPoints(ctx, doc.ID); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.call(ctx, "upsert", http.MethodPut, url, map[string]any{"points": points}, nil); err != nil {
		return err
	}
	return nil
}

func (c *Client) deleteDocumentPoints(ctx context.Context, docID domain.DocumentID) error {
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	body := map[string]any{"filter": docFilter(docID)}
	return c.call(ctx, "delete", http.MethodPost, url, body, nil)
}

func docFilter(docID domain.DocumentID) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "doc_id",
				"match": map[string]any{"value": string(docID)},
			},
		},
	}
}

// SearchVector returns chunk hits ordered by similarity. Hit ids are the
// chunk_id payload values.
func (c *Client) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]domain.RankedHit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": []string{"chunk_id", "doc_id", "url"},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.call(ctx, "search", http.MethodPost, url, reqBody, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.RankedHit, 0, len(searchResp.Result))
	for i, r := range searchResp.Result {
		out = append(out, domain.RankedHit{
			ID:    getStringPayload(r.Payload, "chunk_id"),
			Score: r.Score,
			Rank:  i,
			URL:   getStringPayload(r.Payload, "url"),
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.call(ctx, "ensure collection", http.MethodPut, url, reqBody, nil)
	var statusErr *resilience.HTTPStatusError
	// 409 if the collection already exists (depends on version/config).
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}

	url = fmt.Sprintf("%s/collections/%s/index?wait=true", c.baseURL, c.collection)
	indexBody := map[string]any{"field_name": "doc_id", "field_schema": "keyword"}
	if err := c.call(ctx, "ensure payload index", http.MethodPut, url, indexBody, nil); err != nil {
		return err
	}

	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
