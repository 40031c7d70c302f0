package grader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const validGrades = `{"grades":[{"criterion_id":"shows-skill","score":3,"observation":"Shows equal groups.","strength":"","improvement":"Try labeling each group.","confidence":0.9}]}`

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return &AnthropicModel{client: &client, model: "claude-haiku-4-5-20251001"}
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newOpenAICompatible(BackendConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func gradePrompt() Prompt {
	return Prompt{System: "sys", User: "score this", Schema: GradesSchema, MaxTokens: 256}
}

func mediaPrompt() Prompt {
	p := gradePrompt()
	p.Attachments = []Attachment{
		{URL: "https://cdn.example.com/garden.png", MIMEType: "image/png"},
		{URL: "https://cdn.example.com/walk.mp4", MIMEType: "video/mp4"},
	}
	return p
}

// userContent returns the content array of the last message in a
// captured request body.
func userContent(t *testing.T, body map[string]any) []any {
	t.Helper()
	msgs, ok := body["messages"].([]any)
	require.True(t, ok, "messages: %v", body["messages"])
	require.NotEmpty(t, msgs)
	msg := msgs[len(msgs)-1].(map[string]any)
	content, ok := msg["content"].([]any)
	require.True(t, ok, "content: %v", msg["content"])
	return content
}

func TestAnthropicModel_Complete(t *testing.T) {
	m := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": validGrades}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
		})
	})
	reply, err := m.Complete(context.Background(), gradePrompt())
	require.NoError(t, err)
	assert.JSONEq(t, validGrades, string(reply.Content))
	assert.Equal(t, 80, reply.Usage.Total())
	assert.Equal(t, "end", reply.StopReason)
}

func TestAnthropicModel_SendsImages(t *testing.T) {
	var body map[string]any
	m := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": validGrades}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 900, "output_tokens": 30},
		})
	})
	_, err := m.Complete(context.Background(), mediaPrompt())
	require.NoError(t, err)

	content := userContent(t, body)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	img := content[1].(map[string]any)
	assert.Equal(t, "image", img["type"])
	src := img["source"].(map[string]any)
	assert.Equal(t, "url", src["type"])
	assert.Equal(t, "https://cdn.example.com/garden.png", src["url"])
}

func TestAnthropicModel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"rate limit", http.StatusTooManyRequests, func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{"server error", http.StatusInternalServerError, func(err error) bool { var e *UnavailableError; return errors.As(err, &e) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{
					"type":  "error",
					"error": map[string]any{"type": "api_error", "message": "nope"},
				})
			})
			_, err := m.Complete(context.Background(), gradePrompt())
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %T: %v", err, err)
		})
	}
}

func TestAnthropicModel_Truncated(t *testing.T) {
	m := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"grades":[`}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "max_tokens",
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 256},
		})
	})
	_, err := m.Complete(context.Background(), gradePrompt())
	var trunc *TruncatedError
	assert.True(t, errors.As(err, &trunc), "got %v", err)
}

func TestOpenAIModel_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	m := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": validGrades},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	})
	reply, err := m.Complete(context.Background(), gradePrompt())
	require.NoError(t, err)
	assert.Equal(t, 65, reply.Usage.Total())
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "criterion-grades", got.ResponseFormat.JSONSchema.Name)
}

func TestOpenAIModel_SendsImages(t *testing.T) {
	var body map[string]any
	m := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": validGrades},
				"finish_reason": "stop",
			}},
		})
	})
	_, err := m.Complete(context.Background(), mediaPrompt())
	require.NoError(t, err)

	content := userContent(t, body)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	assert.Equal(t, "score this", content[0].(map[string]any)["text"])
	img := content[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "https://cdn.example.com/garden.png", img["image_url"].(map[string]any)["url"])
}

func TestOpenAIUserMessage_TextOnly(t *testing.T) {
	msg := openAIUserMessage(gradePrompt())
	assert.Equal(t, "score this", msg.Content)
	assert.Empty(t, msg.MultiContent)
}

func TestGeminiParts(t *testing.T) {
	parts := geminiParts(mediaPrompt())
	require.Len(t, parts, 3)
	assert.Equal(t, "score this", parts[0].Text)
	assert.Equal(t, &genai.FileData{FileURI: "https://cdn.example.com/garden.png", MIMEType: "image/png"}, parts[1].FileData)
	assert.Equal(t, &genai.FileData{FileURI: "https://cdn.example.com/walk.mp4", MIMEType: "video/mp4"}, parts[2].FileData)
}

func TestOpenAIModel_InvalidReply(t *testing.T) {
	m := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"grades":"all good"}`},
				"finish_reason": "stop",
			}},
		})
	})
	_, err := m.Complete(context.Background(), gradePrompt())
	var inv *InvalidReplyError
	assert.True(t, errors.As(err, &inv), "got %v", err)
}

func TestOpenAIModel_RateLimit(t *testing.T) {
	m := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"type": "tokens", "message": "slow down", "code": "rate_limit_exceeded"},
		})
	})
	_, err := m.Complete(context.Background(), gradePrompt())
	var rl *RateLimitError
	assert.True(t, errors.As(err, &rl), "got %v", err)
}

func TestNewOpenRouterModel_DefaultBaseURL(t *testing.T) {
	m, err := NewOpenRouterModel(BackendConfig{APIKey: "k", Model: "google/gemini-2.0-flash-001"})
	require.NoError(t, err)
	assert.Equal(t, "google/gemini-2.0-flash-001", m.Name())

	_, err = NewOpenRouterModel(BackendConfig{})
	assert.Error(t, err)
}
