package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/infrastructure/llm"
)

func TestParseAcceptsFencedArray(t *testing.T) {
	raw := "```json\n[{\"docid\": \"doc1\", \"score\": 4.5}, {\"docid\": \"doc2\", \"score\": 1}]\n```"
	got, err := Parse(raw, 5)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 || got[0].DocumentID != "doc1" || got[0].Score != 4.5 || got[1].DocumentID != "doc2" {
		t.Fatalf("unexpected judgments %+v", got)
	}
}

func TestParseToleratesProseAndLooseTypes(t *testing.T) {
	raw := `Sure! Here are the scores: [{"docid": 17, "score": "3"}, {"docid": "doc9", "score": 9}, {"docid": "doc8", "score": -2}] Hope this helps.`
	got, err := Parse(raw, 5)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []domain.Judgment{{DocumentID: "17", Score: 3}, {DocumentID: "doc9", Score: 5}, {DocumentID: "doc8", Score: 0}}
	if len(got) != len(want) {
		t.Fatalf("unexpected judgments %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("judgment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseFallsBackToFlatObjects(t *testing.T) {
	raw := `{"docid": "a", "score": 2}
{"docid": "b", "score": "x"}
{"docid": "a", "score": 5}
{"docid": "c", "score": 1,}`
	got, err := Parse(raw, 5)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 1 || got[0].DocumentID != "a" || got[0].Score != 2 {
		t.Fatalf("expected only first valid judgment for a, got %+v", got)
	}
}

func TestParseBrokenArrayUsesObjectScan(t *testing.T) {
	raw := `[{"docid": "a", "score": 2}, {"docid": "b", "score": 3}, {"docid": "c"`
	got, err := Parse(raw, 5)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 || got[1].DocumentID != "b" {
		t.Fatalf("unexpected judgments %+v", got)
	}
}

func TestParseRejectsUnusableReplies(t *testing.T) {
	for _, raw := range []string{"", "I cannot rate these documents.", `[{"id": "a"}]`, "```\nnope\n```"} {
		if _, err := Parse(raw, 5); !domain.IsKind(err, domain.ErrMalformedJudgment) {
			t.Fatalf("Parse(%q) expected ErrMalformedJudgment, got %v", raw, err)
		}
	}
}

func TestParseEmptyArrayIsValid(t *testing.T) {
	got, err := Parse("[]", 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty judgments, got %+v %v", got, err)
	}
}

type completerFake struct {
	reply string
	err   error
	req   llm.Request
}

func (f *completerFake) Complete(_ context.Context, req llm.Request) (string, error) {
	f.req = req
	return f.reply, f.err
}

func TestJudgeBuildsPromptAndParses(t *testing.T) {
	fake := &completerFake{reply: `[{"docid":"doc2","score":4}]`}
	j := New(fake, 0)

	got, err := j.Judge(context.Background(), domain.JudgeRequest{
		Query: "library hours",
		Candidates: []domain.JudgeCandidate{
			{DocumentID: "doc1", Excerpt: "Cafeteria menu"},
			{DocumentID: "doc2", Excerpt: "Library opens at 8"},
		},
	})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if len(got) != 1 || got[0].DocumentID != "doc2" {
		t.Fatalf("unexpected judgments %+v", got)
	}
	for _, want := range []string{"Query: library hours", "[DOC_1] docid=doc1", "[DOC_2] docid=doc2\nContent: Library opens at 8", "to 5 "} {
		if !strings.Contains(fake.req.Prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, fake.req.Prompt)
		}
	}
	if fake.req.System != systemPrompt || fake.req.Temperature != 0 {
		t.Fatalf("unexpected request %+v", fake.req)
	}
}

func TestJudgePropagatesCompletionError(t *testing.T) {
	upstream := errors.New("boom")
	j := New(&completerFake{err: upstream}, 5)
	_, err := j.Judge(context.Background(), domain.JudgeRequest{
		Query:      "q",
		Candidates: []domain.JudgeCandidate{{DocumentID: "d", Excerpt: "x"}},
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
