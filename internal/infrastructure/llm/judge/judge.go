// Package judge asks an LLM to grade retrieval candidates and turns the
// reply into domain judgments.
package judge

import (
	"context"
	"fmt"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/infrastructure/llm"
)

const DefaultMaxScore = 5.0

type Judge struct {
	completer llm.Completer
	maxScore  float64
}

func New(completer llm.Completer, maxScore float64) *Judge {
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}
	return &Judge{completer: completer, maxScore: maxScore}
}

func (j *Judge) Judge(ctx context.Context, req domain.JudgeRequest) ([]domain.Judgment, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}
	reply, err := j.completer.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(req, j.maxScore),
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("judge completion: %w", err)
	}
	return Parse(reply, j.maxScore)
}
