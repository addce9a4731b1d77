package usecase

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func newTestFuser(t *testing.T, lexical, semantic *retrieverFake, store *storeFake) *Fuser {
	t.Helper()
	if store == nil {
		store = newStoreFake()
	}
	var (
		lex ports.LexicalRetriever
		sem ports.SemanticRetriever
	)
	if lexical != nil {
		lex = lexical
	}
	if semantic != nil {
		sem = semantic
	}
	return NewFuser(lex, sem, newTestResolver(t, store), FuserConfig{RRFK: 60}, discardLogger())
}

func withURLs(hits []domain.RankedHit) []domain.RankedHit {
	for i := range hits {
		hits[i].URL = "example.org/" + hits[i].ID
	}
	return hits
}

func TestFuseEndToEndScenario(t *testing.T) {
	lexical := &retrieverFake{hits: withURLs(hitsOf("docA", "docB"))}
	semantic := &retrieverFake{hits: withURLs(hitsOf("docB_chunk0", "docC_chunk1"))}

	fused, trace, err := newTestFuser(t, lexical, semantic, nil).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	wantIDs := []domain.DocumentID{"docB", "docA", "docC"}
	wantScores := []float64{1.0/62 + 1.0/61, 1.0 / 61, 1.0 / 62}
	if len(fused) != len(wantIDs) {
		t.Fatalf("expected %d candidates, got %d", len(wantIDs), len(fused))
	}
	for i := range wantIDs {
		if fused[i].DocumentID != wantIDs[i] {
			t.Fatalf("position %d: expected %s, got %s", i, wantIDs[i], fused[i].DocumentID)
		}
		if !approxEqual(fused[i].FusionScore, wantScores[i]) {
			t.Fatalf("%s: expected score %.6f, got %.6f", wantIDs[i], wantScores[i], fused[i].FusionScore)
		}
	}
	if math.Abs(fused[0].FusionScore-0.03252) > 1e-5 {
		t.Fatalf("docB score %.5f, expected ~0.03252", fused[0].FusionScore)
	}
	if !fused[0].HasSource(domain.SourceLexical) || !fused[0].HasSource(domain.SourceSemantic) {
		t.Fatalf("docB should carry both sources, got %v", fused[0].Sources)
	}
	if trace.Fused != 3 || trace.LexicalHits != 2 || trace.SemanticHits != 2 {
		t.Fatalf("unexpected trace: %+v", trace)
	}
	if lexical.calls[0] != 10 || semantic.calls[0] != 10 {
		t.Fatalf("expected pool size 10 forwarded, got %v / %v", lexical.calls, semantic.calls)
	}
}

func TestFuseCountsOnlyFirstChunkOfDocument(t *testing.T) {
	semantic := &retrieverFake{hits: withURLs(hitsOf("doc1_chunk0", "doc2_chunk0", "doc1_chunk3"))}

	fused, _, err := newTestFuser(t, &retrieverFake{}, semantic, nil).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(fused) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(fused))
	}
	if fused[0].DocumentID != "doc1" || !approxEqual(fused[0].FusionScore, 1.0/61) {
		t.Fatalf("expected doc1 with rank-0 contribution only, got %+v", fused[0])
	}
	if fused[0].SemanticRank != 0 {
		t.Fatalf("expected semantic rank 0, got %d", fused[0].SemanticRank)
	}
}

func TestFuseSingleSourceDegradation(t *testing.T) {
	semantic := &retrieverFake{hits: withURLs(hitsOf("doc5_chunk0"))}

	fused, _, err := newTestFuser(t, &retrieverFake{}, semantic, nil).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(fused) != 1 || fused[0].DocumentID != "doc5" {
		t.Fatalf("expected only doc5, got %+v", fused)
	}
	if !approxEqual(fused[0].FusionScore, 1.0/61) {
		t.Fatalf("expected 1/61, got %f", fused[0].FusionScore)
	}
	if fused[0].LexicalRank != -1 {
		t.Fatalf("expected no lexical rank, got %d", fused[0].LexicalRank)
	}
}

func TestFuseProceedsWhenOneRetrieverFails(t *testing.T) {
	lexical := &retrieverFake{err: errors.New("postgres down")}
	semantic := &retrieverFake{hits: withURLs(hitsOf("doc1_chunk0", "doc2_chunk4"))}

	fused, trace, err := newTestFuser(t, lexical, semantic, nil).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	if !trace.LexicalFailed || trace.SemanticFailed {
		t.Fatalf("unexpected failure flags: %+v", trace)
	}
}

func TestFuseFailsWhenBothRetrieversFail(t *testing.T) {
	lexical := &retrieverFake{err: errors.New("postgres down")}
	semantic := &retrieverFake{err: errors.New("qdrant down")}

	_, _, err := newTestFuser(t, lexical, semantic, nil).Fuse(context.Background(), "q", 10)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestFuseTreatsMissingRetrieverAsFailure(t *testing.T) {
	_, _, err := newTestFuser(t, nil, nil, nil).Fuse(context.Background(), "q", 10)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}

	lexical := &retrieverFake{hits: withURLs(hitsOf("docA"))}
	fused, _, err := newTestFuser(t, lexical, nil, nil).Fuse(context.Background(), "q", 10)
	if err != nil || len(fused) != 1 {
		t.Fatalf("expected lexical-only result, got %v %v", fused, err)
	}
}

func TestFuseSkipsMalformedChunkIDs(t *testing.T) {
	semantic := &retrieverFake{hits: withURLs(hitsOf("garbage", "doc1_chunkX", "doc2_chunk1"))}

	fused, trace, err := newTestFuser(t, &retrieverFake{}, semantic, nil).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(fused) != 1 || fused[0].DocumentID != "doc2" {
		t.Fatalf("expected only doc2, got %+v", fused)
	}
	if !approxEqual(fused[0].FusionScore, 1.0/63) {
		t.Fatalf("expected rank position to be kept (1/63), got %f", fused[0].FusionScore)
	}
	if trace.MalformedHits != 2 {
		t.Fatalf("expected 2 malformed hits, got %d", trace.MalformedHits)
	}
}

func TestFuseIsDeterministic(t *testing.T) {
	lexical := &retrieverFake{hits: withURLs(hitsOf("d1", "d2", "d3", "d4", "d5"))}
	semantic := &retrieverFake{hits: withURLs(hitsOf("d5_chunk0", "d4_chunk2", "d6_chunk0", "d1_chunk9", "d7_chunk1"))}
	fuser := newTestFuser(t, lexical, semantic, nil)

	first, _, err := fuser.Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _, err := fuser.Fuse(context.Background(), "q", 10)
		if err != nil {
			t.Fatalf("Fuse() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("fusion output changed between runs:\n%+v\n%+v", first, again)
		}
	}
}

func TestFuseTieBreakPrefersLexicalRank(t *testing.T) {
	// zeta and alpha both score 1/61.
	lexical := &retrieverFake{hits: withURLs(hitsOf("zeta"))}
	semantic := &retrieverFake{hits: withURLs(hitsOf("alpha_chunk0"))}

	fused, _, err := newTestFuser(t, lexical, semantic, nil).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if fused[0].DocumentID != "zeta" || fused[1].DocumentID != "alpha" {
		t.Fatalf("expected lexical-ranked record first on tie, got %s, %s", fused[0].DocumentID, fused[1].DocumentID)
	}
}

func TestFuseHydratesMissingURLs(t *testing.T) {
	store := newStoreFake(docWithURL("docA", "https://campus.edu/a", "alpha"))
	lexical := &retrieverFake{hits: hitsOf("docA", "ghost")}

	fused, _, err := newTestFuser(t, lexical, &retrieverFake{}, store).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if fused[0].URL != "https://campus.edu/a" || fused[0].Content != "alpha" {
		t.Fatalf("expected hydrated docA, got %+v", fused[0])
	}
	if fused[1].DocumentID != "ghost" || fused[1].URL != "" {
		t.Fatalf("expected ghost kept without url, got %+v", fused[1])
	}
}

func TestFuseReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestFuser(t, &retrieverFake{}, &retrieverFake{}, nil).Fuse(ctx, "q", 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
