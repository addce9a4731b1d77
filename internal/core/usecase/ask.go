package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/core/ports"
)

const (
	defaultAskTopK         = 5
	defaultAskContextRunes = 350

	NoReferencesAnswer   = "Sorry, no relevant campus material was found, so the question cannot be answered."
	UnavailableAnswer    = "Sorry, the assistant is temporarily unavailable. Please try again later."
	fallbackNoReferences = "no_references"
	fallbackGenerator    = "generator_failed"
)

// Retriever returns judge-free hybrid results with resolved content.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.FinalResult, domain.RetrievalTrace, error)
}

type AskConfig struct {
	TopK         int
	ContextChars int
}

// AskUseCase answers a question from the top hybrid results.
type AskUseCase struct {
	retriever Retriever
	generator ports.AnswerGenerator
	cfg       AskConfig
	logger    *slog.Logger
}

func NewAskUseCase(retriever Retriever, generator ports.AnswerGenerator, cfg AskConfig, logger *slog.Logger) *AskUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultAskTopK
	}
	if cfg.ContextChars <= 0 {
		cfg.ContextChars = defaultAskContextRunes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{retriever: retriever, generator: generator, cfg: cfg, logger: logger}
}

func (uc *AskUseCase) Ask(ctx context.Context, query string) (*domain.Answer, error) {
	results, trace, err := uc.retriever.Retrieve(ctx, query, uc.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve references: %w", err)
	}

	refs := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		refs = append(refs, domain.SearchHit{
			DocID:   r.DocumentID,
			URL:     r.URL,
			Score:   r.Score,
			Title:   extractTitle(r.Content),
			Preview: extractPreview(r.Content),
		})
	}

	if len(results) == 0 {
		return &domain.Answer{Text: NoReferencesAnswer, Trace: trace, Fallback: fallbackNoReferences}, nil
	}
	if uc.generator == nil {
		return &domain.Answer{Text: UnavailableAnswer, References: refs, Trace: trace, Fallback: fallbackGenerator}, nil
	}

	prompt := BuildAskPrompt(strings.TrimSpace(query), results, uc.cfg.ContextChars)
	text, err := uc.generator.GenerateAnswer(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		uc.logger.Error("ask_generation_failed", "error", err, "references", len(results))
		return &domain.Answer{Text: UnavailableAnswer, References: refs, Trace: trace, Fallback: fallbackGenerator}, nil
	}

	return &domain.Answer{Text: strings.TrimSpace(text), References: refs, Trace: trace}, nil
}

// BuildAskPrompt renders the grounded question prompt.
func BuildAskPrompt(query string, refs []domain.FinalResult, contextRunes int) string {
	var b strings.Builder
	b.WriteString("You are a campus assistant. Use the references below to handle the user's input.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. If the input is a concrete question, answer it directly.\n")
	b.WriteString("2. If the input is only a keyword, write a short summary or introduction of it.\n")
	b.WriteString("3. Answer strictly from the references.\n\n")
	b.WriteString("References:\n")
	for i, r := range refs {
		content := strings.ReplaceAll(truncateRunes(r.Content, contextRunes), "\n", " ")
		fmt.Fprintf(&b, "[Reference %d]: %s\n\n", i+1, content)
	}
	b.WriteString("Input: ")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String()
}
