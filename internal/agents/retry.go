package agents

import (
	"context"
	"errors"
	"time"

	"quorum/internal/llm"
)

type retryClient struct {
	inner    llm.Client
	attempts int
	backoff  time.Duration
}

// withRetry wraps a client so each call is attempted up to attempts times
// with exponential backoff. Context errors are never retried.
func withRetry(inner llm.Client, attempts int) llm.Client {
	return &retryClient{inner: inner, attempts: attempts, backoff: time.Second}
}

func (r *retryClient) Complete(ctx context.Context, prompt string) (string, error) {
	return r.do(ctx, func() (string, error) {
		return r.inner.Complete(ctx, prompt)
	})
}

func (r *retryClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return r.do(ctx, func() (string, error) {
		return r.inner.CompleteWithSystem(ctx, system, prompt)
	})
}

func (r *retryClient) do(ctx context.Context, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * r.backoff):
			}
		}
		out, err := call()
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
