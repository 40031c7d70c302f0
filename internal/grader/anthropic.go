package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

// AnthropicModel serves prompts through the Anthropic Messages API.
type AnthropicModel struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicModel creates an Anthropic backend.
func NewAnthropicModel(cfg BackendConfig) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicModel{client: &client, model: resolveModel(cfg.Model, anthropicModels)}, nil
}

func (m *AnthropicModel) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(p.MaxTokens),
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: anthropicContent(p),
		}},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(p.Temperature)
	}
	if p.Schema != nil {
		params.OutputConfig = anthropic.OutputConfigParam{
			Format: anthropic.JSONOutputFormatParam{Schema: p.Schema.Definition},
		}
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapStatusError(err, anthropicStatus(err))
	}

	var content json.RawMessage
	for _, block := range msg.Content {
		if block.Type == "text" {
			content = json.RawMessage(block.Text)
			break
		}
	}
	if content == nil {
		return nil, &InvalidReplyError{Err: fmt.Errorf("no text content in Anthropic reply")}
	}
	if msg.StopReason == "max_tokens" {
		return nil, &TruncatedError{Content: content}
	}
	if err := validateReply(p.Schema, content); err != nil {
		return nil, err
	}
	return &Reply{
		Content:    content,
		Usage:      Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
		Model:      string(msg.Model),
		StopReason: "end",
	}, nil
}

func (m *AnthropicModel) Name() string { return m.model }

// anthropicContent sends images as URL image blocks after the text. Other
// media is only described in the text.
func anthropicContent(p Prompt) []anthropic.ContentBlockParamUnion {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(p.User)}
	for _, a := range p.Attachments {
		if a.IsImage() {
			blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: a.URL}))
		}
	}
	return blocks
}

func anthropicStatus(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// mapStatusError classifies a backend error by HTTP status.
func mapStatusError(err error, status int) error {
	if status == http.StatusTooManyRequests {
		return &RateLimitError{Err: err}
	}
	return &UnavailableError{Err: err}
}
