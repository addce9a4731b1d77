package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

const (
	defaultTopK                = 10
	defaultMaxTopK             = 50
	defaultCandidateMultiplier = 5
	defaultRerankCandidates    = 20

	titleRunes      = 40
	previewRunes    = 150
	untitledDocName = "Untitled document"
)

type SearchConfig struct {
	DefaultTopK         int
	MaxTopK             int
	CandidateMultiplier int
	RerankCandidates    int
	Dedupe              DedupeOptions
}

func (c SearchConfig) normalize() SearchConfig {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = defaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = defaultMaxTopK
	}
	if c.DefaultTopK > c.MaxTopK {
		c.DefaultTopK = c.MaxTopK
	}
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = defaultCandidateMultiplier
	}
	if c.RerankCandidates <= 0 {
		c.RerankCandidates = defaultRerankCandidates
	}
	return c
}

// SearchUseCase orchestrates fusion, identity dedupe and optional judged
// blending for one query.
type SearchUseCase struct {
	fuser    *Fuser
	blender  *Blender
	resolver *ContentResolver
	cfg      SearchConfig
	logger   *slog.Logger
}

// NewSearchUseCase wires the pipeline. A nil blender disables judging.
func NewSearchUseCase(fuser *Fuser, blender *Blender, resolver *ContentResolver, cfg SearchConfig, logger *slog.Logger) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		fuser:    fuser,
		blender:  blender,
		resolver: resolver,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query string, topK int, useJudge bool) (*domain.SearchResponse, error) {
	startedAt := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query cannot be empty"))
	}
	topK = uc.clampTopK(topK)

	results, trace, err := uc.search(ctx, query, topK, useJudge)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, domain.SearchHit{
			DocID:   r.DocumentID,
			URL:     r.URL,
			Score:   r.Score,
			Title:   extractTitle(r.Content),
			Preview: extractPreview(r.Content),
		})
	}

	uc.logger.Info(
		"search_retrieval",
		"query", query,
		"top_k", topK,
		"judge", string(trace.Judge),
		"lexical_hits", trace.LexicalHits,
		"semantic_hits", trace.SemanticHits,
		"lexical_failed", trace.LexicalFailed,
		"semantic_failed", trace.SemanticFailed,
		"fused", trace.Fused,
		"deduped", trace.Deduped,
		"dedup_dropped", trace.DedupDropped,
		"results", len(hits),
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return &domain.SearchResponse{Hits: hits, Trace: trace}, nil
}

// Retrieve runs the judge-free pipeline and returns documents with content,
// for callers that feed results to generation.
func (uc *SearchUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.FinalResult, domain.RetrievalTrace, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.RetrievalTrace{}, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query cannot be empty"))
	}
	return uc.search(ctx, query, uc.clampTopK(topK), false)
}

func (uc *SearchUseCase) search(ctx context.Context, query string, topK int, useJudge bool) ([]domain.FinalResult, domain.RetrievalTrace, error) {
	judged := useJudge && uc.blender != nil && uc.blender.judge != nil

	dedupeLimit := topK
	if judged && uc.cfg.RerankCandidates > dedupeLimit {
		dedupeLimit = uc.cfg.RerankCandidates
	}
	pool := dedupeLimit * uc.cfg.CandidateMultiplier

	fused, trace, err := uc.fuser.Fuse(ctx, query, pool)
	if err != nil {
		return nil, trace, err
	}

	candidates, dropped, err := uc.dedupe(ctx, fused, dedupeLimit)
	if err != nil {
		return nil, trace, err
	}
	trace.Deduped = len(candidates)
	trace.DedupDropped = dropped

	if judged {
		results, blendTrace, err := uc.blender.Blend(ctx, query, candidates, topK)
		if err != nil {
			return nil, trace, err
		}
		trace.Judge = blendTrace.Outcome
		trace.JudgeReason = blendTrace.Reason
		trace.ContentMisses = blendTrace.ContentMisses
		return results, trace, nil
	}

	trace.Judge = domain.JudgeSkipped
	resolved, misses, err := resolveContent(ctx, uc.resolver, candidates, uc.logger)
	if err != nil {
		return nil, trace, err
	}
	trace.ContentMisses = misses

	results := make([]domain.FinalResult, 0, len(resolved))
	for _, c := range resolved {
		results = append(results, domain.FinalResult{
			DocumentID:  c.DocumentID,
			URL:         c.URL,
			Score:       c.FusionScore,
			FusionScore: c.FusionScore,
			Content:     c.Content,
		})
	}
	return results, trace, nil
}

// dedupe collapses identity duplicates. With content fingerprints enabled the
// stored contents are needed first, since retrievers report URLs but no text.
// Content is fetched one window of limit candidates at a time, only as far
// into the fused list as dedupe has to look.
func (uc *SearchUseCase) dedupe(ctx context.Context, fused []domain.Candidate, limit int) ([]domain.Candidate, int, error) {
	if !uc.cfg.Dedupe.ContentFingerprint || uc.resolver == nil || limit <= 0 {
		out, dropped := Dedupe(fused, limit, uc.cfg.Dedupe)
		return out, dropped, nil
	}

	var (
		out     []domain.Candidate
		dropped int
	)
	for end := 0; end < len(fused); {
		start := end
		end = min(end+limit, len(fused))
		if err := uc.fillContent(ctx, fused[start:end]); err != nil {
			return nil, 0, err
		}
		out, dropped = Dedupe(fused[:end], limit, uc.cfg.Dedupe)
		if len(out) >= limit {
			break
		}
	}
	if out == nil {
		out = []domain.Candidate{}
	}
	return out, dropped, nil
}

// fillContent sets Content in place for candidates that lack it. Store misses
// stay empty and are dropped later by content resolution.
func (uc *SearchUseCase) fillContent(ctx context.Context, candidates []domain.Candidate) error {
	var missing []domain.DocumentID
	for _, c := range candidates {
		if c.Content == "" {
			missing = append(missing, c.DocumentID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	docs, err := uc.resolver.Resolve(ctx, missing)
	if err != nil {
		return err
	}
	for i := range candidates {
		doc, ok := docs[candidates[i].DocumentID]
		if !ok || candidates[i].Content != "" {
			continue
		}
		candidates[i].Content = doc.Contents
		if candidates[i].URL == "" {
			candidates[i].URL = doc.URL
		}
	}
	return nil
}

func (uc *SearchUseCase) clampTopK(topK int) int {
	if topK <= 0 {
		return uc.cfg.DefaultTopK
	}
	if topK > uc.cfg.MaxTopK {
		return uc.cfg.MaxTopK
	}
	return topK
}

func extractTitle(content string) string {
	first, _, _ := strings.Cut(content, "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return untitledDocName
	}
	if len([]rune(first)) > titleRunes {
		return truncateRunes(first, titleRunes) + "..."
	}
	return first
}

func extractPreview(content string) string {
	return strings.ReplaceAll(truncateRunes(content, previewRunes), "\n", " ") + "..."
}
