// Package llm holds the provider-neutral completion contract shared by the
// relevance judge and the answer generator.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Request is one single-turn completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Completer is implemented by every LLM backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

const answerSystemPrompt = "You are a helpful campus Q&A assistant. Keep answers concise and friendly."

// AnswerGenerator turns a grounded prompt into a user-facing answer.
type AnswerGenerator struct {
	completer   Completer
	temperature float64
}

func NewAnswerGenerator(completer Completer) *AnswerGenerator {
	return &AnswerGenerator{completer: completer, temperature: 0.3}
}

func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	text, err := g.completer.Complete(ctx, Request{
		System:      answerSystemPrompt,
		Prompt:      prompt,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}
