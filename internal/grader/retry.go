package grader

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// retryModel retries transient failures with exponential backoff and
// jitter.
type retryModel struct {
	inner Model
	cfg   RetryConfig
}

// WithRetry wraps m with retries. A config with MaxAttempts < 2 returns
// m unchanged.
func WithRetry(m Model, cfg RetryConfig) Model {
	if cfg.MaxAttempts < 2 {
		return m
	}
	return &retryModel{inner: m, cfg: cfg}
}

func (r *retryModel) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	var lastErr error
	invalidRetried := false

	for attempt := range r.cfg.MaxAttempts {
		reply, err := r.inner.Complete(ctx, p)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !retryable(err, &invalidRetried) || attempt == r.cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff(attempt, err)):
		}
	}
	return nil, lastErr
}

func (r *retryModel) Name() string { return r.inner.Name() }

// retryable reports whether err is worth another attempt. A schema
// mismatch is retried once.
func retryable(err error, invalidRetried *bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var trunc *TruncatedError
	if errors.As(err, &trunc) {
		return false
	}
	var inv *InvalidReplyError
	if errors.As(err, &inv) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
	}
	return true
}

func (r *retryModel) backoff(attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	wait := float64(r.cfg.InitialWait) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if wait > float64(r.cfg.MaxWait) {
		wait = float64(r.cfg.MaxWait)
	}
	// ±20% jitter
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
