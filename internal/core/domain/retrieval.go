package domain

// Source tags which retriever contributed to a candidate.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
)

// Document is a corpus record as held by the document store.
type Document struct {
	ID       DocumentID `json:"id"`
	URL      string     `json:"url"`
	Contents string     `json:"contents"`
}

// RankedHit is one entry of a retriever's ordered output. Score is
// retriever-native and not comparable across retrievers.
type RankedHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
	URL   string  `json:"url,omitempty"`
}

// Candidate is the per-document fusion record of a single query.
type Candidate struct {
	DocumentID   DocumentID `json:"docid"`
	FusionScore  float64    `json:"fusion_score"`
	URL          string     `json:"url"`
	Content      string     `json:"content,omitempty"`
	Sources      []Source   `json:"sources"`
	LexicalRank  int        `json:"lexical_rank"`
	SemanticRank int        `json:"semantic_rank"`
}

// HasSource reports whether src contributed to the candidate.
func (c Candidate) HasSource(src Source) bool {
	for _, s := range c.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// JudgeCandidate is one document excerpt shown to the relevance judge.
type JudgeCandidate struct {
	DocumentID DocumentID
	Excerpt    string
}

// JudgeRequest carries everything the judge sees for one query.
type JudgeRequest struct {
	Query      string
	Candidates []JudgeCandidate
}

// Judgment is the judge's score for one document.
type Judgment struct {
	DocumentID DocumentID `json:"docid"`
	Score      float64    `json:"score"`
}

// FinalResult is a blended, ordered result.
type FinalResult struct {
	DocumentID  DocumentID `json:"docid"`
	URL         string     `json:"url"`
	Score       float64    `json:"score"`
	JudgeScore  float64    `json:"judge_score"`
	FusionScore float64    `json:"fusion_score"`
	Content     string     `json:"content"`
}

// SearchHit is the serving-layer shape of a result.
type SearchHit struct {
	DocID   DocumentID `json:"docid"`
	URL     string     `json:"url"`
	Score   float64    `json:"score"`
	Title   string     `json:"title"`
	Preview string     `json:"preview"`
}

type JudgeOutcome string

const (
	JudgeApplied  JudgeOutcome = "applied"
	JudgeFallback JudgeOutcome = "fallback"
	JudgeSkipped  JudgeOutcome = "skipped"
)

// RetrievalTrace describes how a query was served. It feeds logs and metrics.
type RetrievalTrace struct {
	LexicalHits    int          `json:"lexical_hits"`
	SemanticHits   int          `json:"semantic_hits"`
	LexicalFailed  bool         `json:"lexical_failed"`
	SemanticFailed bool         `json:"semantic_failed"`
	MalformedHits  int          `json:"malformed_hits"`
	Fused          int          `json:"fused"`
	Deduped        int          `json:"deduped"`
	DedupDropped   int          `json:"dedup_dropped"`
	ContentMisses  int          `json:"content_misses"`
	Judge          JudgeOutcome `json:"judge"`
	JudgeReason    string       `json:"judge_reason,omitempty"`
}

// SearchResponse is the outcome of one search request.
type SearchResponse struct {
	Hits  []SearchHit    `json:"hits"`
	Trace RetrievalTrace `json:"trace"`
}

// Answer is the outcome of one ask request.
type Answer struct {
	Text       string         `json:"answer"`
	References []SearchHit    `json:"references,omitempty"`
	Trace      RetrievalTrace `json:"trace"`
	Fallback   string         `json:"fallback,omitempty"`
}
