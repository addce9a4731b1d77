// Package openaicompat talks to any OpenAI-compatible chat completions API
// (vLLM, LM Studio, hosted OpenAI) through langchaingo.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kirillkom/campus-search/internal/infrastructure/llm"
	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
)

type Option func(*Client)

func WithExecutor(exec *resilience.Executor) Option {
	return func(c *Client) {
		c.exec = exec
	}
}

type Client struct {
	model llms.Model
	name  string
	exec  *resilience.Executor
}

// New builds a client for baseURL, e.g. "http://vllm:8000/v1". Local servers
// usually ignore the token, so an empty one is replaced with a placeholder.
func New(baseURL, token, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		token = "none"
	}
	m, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(baseURL, "/")),
		openai.WithToken(token),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai-compatible client: %w", err)
	}
	c := &Client{model: m, name: model}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	content := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
	})

	run := func(ctx context.Context) (string, error) {
		response, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(req.Temperature))
		if err != nil {
			return "", asStatusError(err)
		}
		if len(response.Choices) == 0 {
			return "", errors.New("openai-compatible completion returned no choices")
		}
		return strings.TrimSpace(response.Choices[0].Content), nil
	}

	var (
		out string
		err error
	)
	if c.exec != nil {
		out, err = resilience.Call(ctx, c.exec, "openai.complete", run, resilience.ClassifyHTTP)
	} else {
		out, err = run(ctx)
	}
	if err != nil {
		return "", resilience.WrapTemporary("openai complete", err, resilience.ClassifyHTTP)
	}
	return out, nil
}

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// asStatusError recovers the HTTP status langchaingo folds into its error
// text so that retry classification sees it.
func asStatusError(err error) error {
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return err
	}
	return &resilience.HTTPStatusError{
		Service:    "openai",
		Operation:  "complete",
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Body:       err.Error(),
	}
}
