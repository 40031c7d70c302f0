package grader

import (
	"context"
	"time"

	"github.com/wowl-learning/wowl/internal/platform/logger"
)

// loggingModel records latency, token usage and estimated cost of every
// request.
type loggingModel struct {
	inner Model
	log   *logger.Logger
}

// WithLogging wraps m so each request is logged.
func WithLogging(m Model, log *logger.Logger) Model {
	return &loggingModel{inner: m, log: log}
}

func (l *loggingModel) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	start := time.Now()
	reply, err := l.inner.Complete(ctx, p)

	kv := []any{
		"model", l.inner.Name(),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if p.Schema != nil {
		kv = append(kv, "schema", p.Schema.Name)
	}
	if err != nil {
		l.log.Warn("grader request failed", append(kv, "error", err.Error())...)
		return nil, err
	}
	kv = append(kv, "input_tokens", reply.Usage.InputTokens, "output_tokens", reply.Usage.OutputTokens)
	if usd, ok := EstimateCost(reply.Model, reply.Usage); ok {
		kv = append(kv, "cost_usd", usd)
	}
	l.log.Debug("grader request", kv...)
	return reply, nil
}

func (l *loggingModel) Name() string { return l.inner.Name() }
