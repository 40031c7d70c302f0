// Package grader scores rubric criteria that need a look at the student's
// media, using a language model behind a small Model interface.
package grader

import (
	"context"
	"encoding/json"
	"strings"
)

// Model is one language-model backend. Complete sends a single-turn
// prompt and returns the reply; when the prompt carries a Schema the
// reply content is JSON already validated against it.
type Model interface {
	Complete(ctx context.Context, p Prompt) (*Reply, error)

	// Name returns the model identifier requests are served by.
	Name() string
}

// Prompt is a single-turn request.
type Prompt struct {
	System string
	User   string

	// Attachments are media files the backend should look at. Backends
	// that cannot take a file type rely on its URL in User.
	Attachments []Attachment

	// Schema, when set, asks the backend for structured JSON output.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// Attachment is one media file sent with a prompt.
type Attachment struct {
	URL      string
	MIMEType string
}

// IsImage reports whether a is an image.
func (a Attachment) IsImage() bool { return strings.HasPrefix(a.MIMEType, "image/") }

// Schema is a named JSON Schema.
type Schema struct {
	// Name is kebab-case; Anthropic uses it as the tool name and OpenAI as
	// the response format name.
	Name        string
	Description string
	Definition  map[string]any
}

// Reply is a backend response.
type Reply struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string // "end" or "max_tokens"
}

// Usage is token consumption for one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// resolveModel maps a friendly model name to a backend model ID. Unknown
// names pass through so full IDs can be configured directly.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
