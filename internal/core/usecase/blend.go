package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

const (
	defaultBlendWeight  = 0.1
	defaultExcerptRunes = 300
	defaultJudgeTimeout = 20 * time.Second
)

type BlendConfig struct {
	Weight       float64
	ExcerptChars int
	JudgeTimeout time.Duration
}

// BlendTrace reports how a blend was computed.
type BlendTrace struct {
	Outcome       domain.JudgeOutcome
	Reason        string
	ContentMisses int
}

// Blender combines judge scores with fusion scores:
// final = judge + weight * fusion.
type Blender struct {
	judge    ports.RelevanceJudge
	resolver *ContentResolver
	cfg      BlendConfig
	logger   *slog.Logger
}

// NewBlender applies defaults to cfg. A zero Weight is kept and ranks by
// judge score alone; only a negative Weight falls back to the default.
func NewBlender(judge ports.RelevanceJudge, resolver *ContentResolver, cfg BlendConfig, logger *slog.Logger) *Blender {
	if cfg.Weight < 0 {
		cfg.Weight = defaultBlendWeight
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = defaultExcerptRunes
	}
	if cfg.JudgeTimeout <= 0 {
		cfg.JudgeTimeout = defaultJudgeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Blender{judge: judge, resolver: resolver, cfg: cfg, logger: logger}
}

// Blend resolves content for the candidates, asks the judge once and returns
// at most finalLimit results. Judge failures fall back to fusion order and are
// reported only through the trace. The returned error is non-nil only when
// ctx itself is done.
func (b *Blender) Blend(ctx context.Context, query string, candidates []domain.Candidate, finalLimit int) ([]domain.FinalResult, BlendTrace, error) {
	trace := BlendTrace{Outcome: domain.JudgeApplied}

	resolved, misses, err := resolveContent(ctx, b.resolver, candidates, b.logger)
	if err != nil {
		return nil, trace, err
	}
	trace.ContentMisses = misses
	if len(resolved) == 0 {
		return []domain.FinalResult{}, trace, nil
	}

	judgeScores, err := b.runJudge(ctx, query, resolved)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, trace, ctxErr
		}
		trace.Outcome = domain.JudgeFallback
		trace.Reason = err.Error()
		b.logger.Warn("judge_fallback", "error", err, "candidates", len(resolved))
		judgeScores = nil
	}

	results := make([]domain.FinalResult, 0, len(resolved))
	for _, c := range resolved {
		judgeScore := judgeScores[c.DocumentID]
		results = append(results, domain.FinalResult{
			DocumentID:  c.DocumentID,
			URL:         c.URL,
			Score:       judgeScore + b.cfg.Weight*c.FusionScore,
			JudgeScore:  judgeScore,
			FusionScore: c.FusionScore,
			Content:     c.Content,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if finalLimit > 0 && len(results) > finalLimit {
		results = results[:finalLimit]
	}
	return results, trace, nil
}

func (b *Blender) runJudge(ctx context.Context, query string, candidates []domain.Candidate) (map[domain.DocumentID]float64, error) {
	if b.judge == nil {
		return nil, errors.New("relevance judge is not configured")
	}
	req := domain.JudgeRequest{
		Query:      query,
		Candidates: make([]domain.JudgeCandidate, 0, len(candidates)),
	}
	allowed := make(map[domain.DocumentID]struct{}, len(candidates))
	for _, c := range candidates {
		req.Candidates = append(req.Candidates, domain.JudgeCandidate{
			DocumentID: c.DocumentID,
			Excerpt:    excerpt(c.Content, b.cfg.ExcerptChars),
		})
		allowed[c.DocumentID] = struct{}{}
	}

	judgeCtx, cancel := context.WithTimeout(ctx, b.cfg.JudgeTimeout)
	defer cancel()

	judgments, err := b.judge.Judge(judgeCtx, req)
	if err != nil {
		return nil, err
	}

	scores := make(map[domain.DocumentID]float64, len(judgments))
	for _, j := range judgments {
		if _, ok := allowed[j.DocumentID]; !ok {
			continue
		}
		if _, dup := scores[j.DocumentID]; dup {
			continue
		}
		scores[j.DocumentID] = j.Score
	}
	return scores, nil
}

// resolveContent returns the candidates that have content, in input order,
// fetching the missing ones through the resolver. Misses are dropped.
func resolveContent(ctx context.Context, resolver *ContentResolver, candidates []domain.Candidate, logger *slog.Logger) ([]domain.Candidate, int, error) {
	var missing []domain.DocumentID
	for _, c := range candidates {
		if c.Content == "" {
			missing = append(missing, c.DocumentID)
		}
	}

	var docs map[domain.DocumentID]*domain.Document
	if len(missing) > 0 && resolver != nil {
		var err error
		docs, err = resolver.Resolve(ctx, missing)
		if err != nil {
			return nil, 0, err
		}
	}

	out := make([]domain.Candidate, 0, len(candidates))
	misses := 0
	for _, c := range candidates {
		if c.Content == "" {
			doc, ok := docs[c.DocumentID]
			if !ok {
				misses++
				logger.Debug("candidate_content_missing", "doc_id", c.DocumentID)
				continue
			}
			c.Content = doc.Contents
			if c.URL == "" {
				c.URL = doc.URL
			}
		}
		out = append(out, c)
	}
	return out, misses, nil
}

func excerpt(content string, n int) string {
	flat := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(content)
	return truncateRunes(flat, n)
}
