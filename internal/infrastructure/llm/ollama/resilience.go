package ollama

import (
	"context"

	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
)

// call runs postJSON through the executor when one is configured and marks
// transient failures as domain.ErrTemporary.
func (c *Client) call(ctx context.Context, path string, payload any, out any, operation string) error {
	run := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}
	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "ollama."+operation, run, resilience.ClassifyHTTP)
	} else {
		err = run(ctx)
	}
	return resilience.WrapTemporary("ollama "+operation, err, resilience.ClassifyHTTP)
}
