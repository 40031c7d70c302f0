package grader

import (
	"fmt"
	"os"
	"time"
)

// Backend names.
const (
	BackendNone       = "none"
	BackendAnthropic  = "anthropic"
	BackendOpenAI     = "openai"
	BackendGemini     = "gemini"
	BackendOpenRouter = "openrouter"
	BackendMock       = "mock"
)

// Config selects and configures the model backend.
type Config struct {
	// Backend is one of the Backend* names. "none" disables the grader so
	// every media submission goes to tutor review.
	Backend string

	Anthropic  BackendConfig
	OpenAI     BackendConfig
	Gemini     BackendConfig
	OpenRouter BackendConfig
	Retry      RetryConfig

	MaxTokens   int
	Temperature float64
}

// BackendConfig holds one backend's credentials.
type BackendConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

// RetryConfig configures backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a disabled grader with default models.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendNone,
		Anthropic:  BackendConfig{Model: "claude-haiku"},
		OpenAI:     BackendConfig{Model: "gpt-4o-mini"},
		Gemini:     BackendConfig{Model: "gemini-flash"},
		OpenRouter: BackendConfig{Model: "google/gemini-2.0-flash-001"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		MaxTokens:   1024,
		Temperature: 0.2,
	}
}

// ConfigFromEnv reads WOWL_GRADER_* variables over the defaults. When no
// backend is named it falls back to the first vendor API key found.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	setIf(&cfg.Anthropic.APIKey, "WOWL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setIf(&cfg.Anthropic.Model, "WOWL_ANTHROPIC_MODEL")
	setIf(&cfg.OpenAI.APIKey, "WOWL_OPENAI_API_KEY", "OPENAI_API_KEY")
	setIf(&cfg.OpenAI.Model, "WOWL_OPENAI_MODEL")
	setIf(&cfg.OpenAI.BaseURL, "WOWL_OPENAI_BASE_URL")
	setIf(&cfg.Gemini.APIKey, "WOWL_GEMINI_API_KEY", "GEMINI_API_KEY")
	setIf(&cfg.Gemini.Model, "WOWL_GEMINI_MODEL")
	setIf(&cfg.OpenRouter.APIKey, "WOWL_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	setIf(&cfg.OpenRouter.Model, "WOWL_OPENROUTER_MODEL")

	if b := os.Getenv("WOWL_GRADER"); b != "" {
		cfg.Backend = b
		return cfg
	}
	switch {
	case cfg.Gemini.APIKey != "":
		cfg.Backend = BackendGemini
	case cfg.OpenAI.APIKey != "":
		cfg.Backend = BackendOpenAI
	case cfg.Anthropic.APIKey != "":
		cfg.Backend = BackendAnthropic
	case cfg.OpenRouter.APIKey != "":
		cfg.Backend = BackendOpenRouter
	}
	return cfg
}

// setIf sets *dst from the first non-empty variable among keys.
func setIf(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

// Validate checks the selected backend has an API key.
func (c Config) Validate() error {
	var key string
	switch c.Backend {
	case BackendNone, BackendMock:
		return nil
	case BackendAnthropic:
		key = c.Anthropic.APIKey
	case BackendOpenAI:
		key = c.OpenAI.APIKey
	case BackendGemini:
		key = c.Gemini.APIKey
	case BackendOpenRouter:
		key = c.OpenRouter.APIKey
	default:
		return fmt.Errorf("unknown grader backend %q", c.Backend)
	}
	if key == "" {
		return fmt.Errorf("an API key is required for the %s grader backend", c.Backend)
	}
	return nil
}
