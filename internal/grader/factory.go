package grader

import (
	"context"
	"fmt"

	"github.com/wowl-learning/wowl/internal/assessment"
	"github.com/wowl-learning/wowl/internal/platform/logger"
)

// NewModel builds the configured backend wrapped as
// caller -> retry -> logging -> backend. It returns nil for BackendNone.
func NewModel(ctx context.Context, cfg Config, log *logger.Logger) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		base Model
		err  error
	)
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendMock:
		base = NewScriptedModel()
	case BackendAnthropic:
		base, err = NewAnthropicModel(cfg.Anthropic)
	case BackendOpenAI:
		base, err = NewOpenAIModel(cfg.OpenAI)
	case BackendOpenRouter:
		base, err = NewOpenRouterModel(cfg.OpenRouter)
	case BackendGemini:
		base, err = NewGeminiModel(ctx, cfg.Gemini)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", cfg.Backend, err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return WithRetry(WithLogging(base, log), cfg.Retry), nil
}

// New builds an assessment.Grader from cfg, or returns nil when grading
// is disabled.
func New(ctx context.Context, cfg Config, log *logger.Logger) (assessment.Grader, error) {
	m, err := NewModel(ctx, cfg, log)
	if err != nil || m == nil {
		return nil, err
	}
	return NewLLMGrader(m, cfg.MaxTokens, cfg.Temperature), nil
}
