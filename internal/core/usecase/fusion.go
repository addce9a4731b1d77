package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

const defaultRRFK = 60

type FuserConfig struct {
	RRFK             int
	RetrieverTimeout time.Duration
}

// Fuser runs both retrievers for a query and merges their rankings into one
// document-level list with Reciprocal Rank Fusion.
type Fuser struct {
	lexical  ports.LexicalRetriever
	semantic ports.SemanticRetriever
	resolver *ContentResolver
	cfg      FuserConfig
	logger   *slog.Logger
}

func NewFuser(
	lexical ports.LexicalRetriever,
	semantic ports.SemanticRetriever,
	resolver *ContentResolver,
	cfg FuserConfig,
	logger *slog.Logger,
) *Fuser {
	if cfg.RRFK <= 0 {
		cfg.RRFK = defaultRRFK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{
		lexical:  lexical,
		semantic: semantic,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Fuse retrieves up to pool hits from each retriever and returns fused
// candidates sorted by fusion score. A single failing retriever degrades the
// result; both failing is domain.ErrRetrievalUnavailable.
func (f *Fuser) Fuse(ctx context.Context, query string, pool int) ([]domain.Candidate, domain.RetrievalTrace, error) {
	var trace domain.RetrievalTrace

	var (
		lexicalHits, semanticHits []domain.RankedHit
		lexicalErr, semanticErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexicalHits, lexicalErr = f.searchLexical(gctx, query, pool)
		return nil
	})
	g.Go(func() error {
		semanticHits, semanticErr = f.searchSemantic(gctx, query, pool)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, trace, err
	}

	trace.LexicalHits = len(lexicalHits)
	trace.SemanticHits = len(semanticHits)
	trace.LexicalFailed = lexicalErr != nil
	trace.SemanticFailed = semanticErr != nil

	if lexicalErr != nil && semanticErr != nil {
		return nil, trace, domain.WrapError(
			domain.ErrRetrievalUnavailable,
			"fuse retrievers",
			errors.Join(lexicalErr, semanticErr),
		)
	}
	if lexicalErr != nil {
		f.logger.Warn("retriever_degraded", "retriever", string(domain.SourceLexical), "error", lexicalErr)
	}
	if semanticErr != nil {
		f.logger.Warn("retriever_degraded", "retriever", string(domain.SourceSemantic), "error", semanticErr)
	}

	acc := newFusionAccumulator(f.cfg.RRFK, len(lexicalHits)+len(semanticHits))
	for rank, hit := range lexicalHits {
		if err := acc.addLexicalHit(rank, hit); err != nil {
			trace.MalformedHits++
			f.logger.Warn("retriever_contract_violation", "retriever", string(domain.SourceLexical), "error", err)
		}
	}
	for rank, hit := range semanticHits {
		if err := acc.addSemanticHit(rank, hit); err != nil {
			trace.MalformedHits++
			f.logger.Warn("retriever_contract_violation", "retriever", string(domain.SourceSemantic), "error", err)
		}
	}

	candidates := acc.ranked()
	if err := f.hydrate(ctx, candidates); err != nil {
		return nil, trace, err
	}
	trace.Fused = len(candidates)
	return candidates, trace, nil
}

func (f *Fuser) searchLexical(ctx context.Context, query string, limit int) ([]domain.RankedHit, error) {
	if f.lexical == nil {
		return nil, errors.New("lexical retriever is not configured")
	}
	ctx, cancel := f.withRetrieverTimeout(ctx)
	defer cancel()
	return f.lexical.Search(ctx, query, limit)
}

func (f *Fuser) searchSemantic(ctx context.Context, query string, limit int) ([]domain.RankedHit, error) {
	if f.semantic == nil {
		return nil, errors.New("semantic retriever is not configured")
	}
	ctx, cancel := f.withRetrieverTimeout(ctx)
	defer cancel()
	return f.semantic.Search(ctx, query, limit)
}

func (f *Fuser) withRetrieverTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.RetrieverTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.cfg.RetrieverTimeout)
}

// hydrate fills URL and content for candidates whose retriever did not report a URL.
func (f *Fuser) hydrate(ctx context.Context, candidates []domain.Candidate) error {
	if f.resolver == nil {
		return nil
	}
	var missing []domain.DocumentID
	for _, c := range candidates {
		if c.URL == "" {
			missing = append(missing, c.DocumentID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	docs, err := f.resolver.Resolve(ctx, missing)
	if err != nil {
		return err
	}
	for i := range candidates {
		doc, ok := docs[candidates[i].DocumentID]
		if !ok || candidates[i].URL != "" {
			continue
		}
		candidates[i].URL = doc.URL
		candidates[i].Content = doc.Contents
	}
	return nil
}

// fusionAccumulator is the only place candidate records are created or scored.
type fusionAccumulator struct {
	k       int
	records map[domain.DocumentID]*domain.Candidate
}

func newFusionAccumulator(k, capacity int) *fusionAccumulator {
	return &fusionAccumulator{
		k:       k,
		records: make(map[domain.DocumentID]*domain.Candidate, capacity),
	}
}

func (a *fusionAccumulator) contribution(rank int) float64 {
	return 1.0 / float64(a.k+rank+1)
}

func (a *fusionAccumulator) record(id domain.DocumentID) *domain.Candidate {
	rec, ok := a.records[id]
	if !ok {
		rec = &domain.Candidate{DocumentID: id, LexicalRank: -1, SemanticRank: -1}
		a.records[id] = rec
	}
	return rec
}

func (a *fusionAccumulator) addLexicalHit(rank int, hit domain.RankedHit) error {
	if hit.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "add lexical hit", errors.New("empty document id"))
	}
	rec := a.record(domain.DocumentID(hit.ID))
	if rec.LexicalRank >= 0 {
		return nil
	}
	rec.FusionScore += a.contribution(rank)
	rec.LexicalRank = rank
	rec.Sources = append(rec.Sources, domain.SourceLexical)
	if rec.URL == "" {
		rec.URL = hit.URL
	}
	return nil
}

// addSemanticHit counts only the best-ranked chunk of each document.
func (a *fusionAccumulator) addSemanticHit(rank int, hit domain.RankedHit) error {
	chunkID, err := domain.ParseChunkID(hit.ID)
	if err != nil {
		return err
	}
	rec := a.record(chunkID.DocumentID())
	if rec.SemanticRank >= 0 {
		return nil
	}
	rec.FusionScore += a.contribution(rank)
	rec.SemanticRank = rank
	rec.Sources = append(rec.Sources, domain.SourceSemantic)
	if rec.URL == "" {
		rec.URL = hit.URL
	}
	return nil
}

func (a *fusionAccumulator) ranked() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(a.records))
	for _, rec := range a.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return candidateLess(out[i], out[j])
	})
	return out
}

func candidateLess(a, b domain.Candidate) bool {
	if a.FusionScore != b.FusionScore {
		return a.FusionScore > b.FusionScore
	}
	if aHas, bHas := a.LexicalRank >= 0, b.LexicalRank >= 0; aHas != bHas {
		return aHas
	}
	if a.LexicalRank != b.LexicalRank {
		return a.LexicalRank < b.LexicalRank
	}
	if aHas, bHas := a.SemanticRank >= 0, b.SemanticRank >= 0; aHas != bHas {
		return aHas
	}
	if a.SemanticRank != b.SemanticRank {
		return a.SemanticRank < b.SemanticRank
	}
	return a.DocumentID < b.DocumentID
}
