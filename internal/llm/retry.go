package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mkrall/clerk/pkg/models"
)

// DefaultMaxRetries is the attempt budget for ChatWithRetry.
const DefaultMaxRetries = 3

// ChatWithRetry calls Chat with exponential backoff on recoverable failures.
// The delay after attempt n is 2^(n-1) seconds (1s, 2s, 4s), except that a
// larger rate-limit hint from the server takes precedence. Interruption and
// non-rate-limit client errors are never retried. When all attempts fail,
// the returned error names the last underlying cause.
func (c *Client) ChatWithRetry(ctx context.Context, history []models.Message, tools []ToolDefinition, maxRetries int) (*Response, error) {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr *Error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.Chat(ctx, history, tools)
		if err == nil {
			return resp, nil
		}

		cerr := Classify(err)
		if cerr.Kind == KindInterrupted || !cerr.Recoverable() {
			return nil, cerr
		}
		lastErr = cerr

		delay := time.Duration(1<<(attempt-1)) * time.Second
		if cerr.Kind == KindRateLimit && cerr.RetryAfter > delay {
			delay = cerr.RetryAfter
		}
		log.Printf("[llm] attempt %d/%d failed (%s), retrying in %s", attempt, maxRetries, cerr.Kind, delay)

		if err := sleepCtx(ctx, delay); err != nil {
			return nil, &Error{Kind: KindInterrupted, Message: "request cancelled during backoff", Err: err}
		}
	}

	return nil, fmt.Errorf("chat completion failed after %d attempts: %w", maxRetries, lastErr)
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
