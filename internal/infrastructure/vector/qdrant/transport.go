package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
)

func (c *Client) call(ctx context.Context, operation, method, url string, payload any, out any) error {
	run := func(ctx context.Context) error {
		return c.doJSON(ctx, operation, method, url, payload, out)
	}
	if c.exec == nil {
		return resilience.WrapTemporary("qdrant "+operation, run(ctx), resilience.ClassifyHTTP)
	}
	err := c.exec.Execute(ctx, "qdrant."+strings.ReplaceAll(operation, " ", "_"), run, resilience.ClassifyHTTP)
	return resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTP)
}

func (c *Client) doJSON(ctx context.Context, operation, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Service:    "qdrant",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
