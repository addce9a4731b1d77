package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

type retrieveFake struct {
	results []domain.FinalResult
	err     error
	topK    int
}

func (f *retrieveFake) Retrieve(_ context.Context, _ string, topK int) ([]domain.FinalResult, domain.RetrievalTrace, error) {
	f.topK = topK
	return f.results, domain.RetrievalTrace{Judge: domain.JudgeSkipped}, f.err
}

func TestAskBuildsGroundedPrompt(t *testing.T) {
	retriever := &retrieveFake{results: []domain.FinalResult{
		{DocumentID: "d1", Content: "Library\nopens at 8"},
		{DocumentID: "d2", Content: strings.Repeat("z", 500)},
	}}
	generator := &generatorFake{answer: "  The library opens at 8.  "}
	uc := NewAskUseCase(retriever, generator, AskConfig{}, discardLogger())

	answer, err := uc.Ask(context.Background(), "When does the library open?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != "The library opens at 8." || answer.Fallback != "" {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if retriever.topK != defaultAskTopK {
		t.Fatalf("expected top %d, got %d", defaultAskTopK, retriever.topK)
	}
	prompt := generator.prompts[0]
	if !strings.Contains(prompt, "[Reference 1]: Library opens at 8") {
		t.Fatalf("prompt missing first reference:\n%s", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("z", defaultAskContextRunes+1)) {
		t.Fatalf("reference context not truncated")
	}
	if !strings.Contains(prompt, "Input: When does the library open?") {
		t.Fatalf("prompt missing input:\n%s", prompt)
	}
	if len(answer.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(answer.References))
	}
}

func TestAskWithoutReferencesAnswersApology(t *testing.T) {
	generator := &generatorFake{answer: "unused"}
	uc := NewAskUseCase(&retrieveFake{}, generator, AskConfig{}, discardLogger())

	answer, err := uc.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != NoReferencesAnswer || len(generator.prompts) != 0 {
		t.Fatalf("expected no-references answer without generation, got %+v", answer)
	}
}

func TestAskGeneratorFailureFallsBack(t *testing.T) {
	retriever := &retrieveFake{results: []domain.FinalResult{{DocumentID: "d1", Content: "x"}}}
	uc := NewAskUseCase(retriever, &generatorFake{err: errors.New("quota")}, AskConfig{}, discardLogger())

	answer, err := uc.Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != UnavailableAnswer {
		t.Fatalf("expected unavailable answer, got %q", answer.Text)
	}
}

func TestAskPropagatesRetrievalErrors(t *testing.T) {
	retriever := &retrieveFake{err: domain.WrapError(domain.ErrRetrievalUnavailable, "fuse", errors.New("down"))}
	uc := NewAskUseCase(retriever, &generatorFake{}, AskConfig{}, discardLogger())

	if _, err := uc.Ask(context.Background(), "q"); !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}
