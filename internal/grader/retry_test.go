package grader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	m := NewScriptedModel(
		ScriptedReply{Err: &UnavailableError{Err: errors.New("down")}},
		ScriptedReply{Content: json.RawMessage(`{"ok":true}`)},
	)
	reply, err := WithRetry(m, fastRetry()).Complete(context.Background(), Prompt{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(reply.Content) != `{"ok":true}` {
		t.Fatalf("unexpected content: %s", reply.Content)
	}
	if m.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", m.Calls())
	}
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	m := NewScriptedModel(
		ScriptedReply{Err: &RateLimitError{Err: errors.New("429")}},
		ScriptedReply{Err: &RateLimitError{Err: errors.New("429")}},
		ScriptedReply{Err: &RateLimitError{Err: errors.New("429")}},
		ScriptedReply{Content: json.RawMessage(`{}`)},
	)
	_, err := WithRetry(m, fastRetry()).Complete(context.Background(), Prompt{})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if m.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", m.Calls())
	}
}

func TestRetry_InvalidReplyRetriedOnce(t *testing.T) {
	m := NewScriptedModel(
		ScriptedReply{Err: &InvalidReplyError{Err: errors.New("bad")}},
		ScriptedReply{Err: &InvalidReplyError{Err: errors.New("bad")}},
		ScriptedReply{Content: json.RawMessage(`{}`)},
	)
	_, err := WithRetry(m, fastRetry()).Complete(context.Background(), Prompt{})
	var inv *InvalidReplyError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidReplyError, got %v", err)
	}
	if m.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", m.Calls())
	}
}

func TestRetry_TruncatedNotRetried(t *testing.T) {
	m := NewScriptedModel(ScriptedReply{Err: &TruncatedError{}})
	_, err := WithRetry(m, fastRetry()).Complete(context.Background(), Prompt{})
	if err == nil || m.Calls() != 1 {
		t.Fatalf("expected one failing call, got %d calls err=%v", m.Calls(), err)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewScriptedModel(ScriptedReply{Err: context.Canceled})
	_, err := WithRetry(m, fastRetry()).Complete(ctx, Prompt{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if m.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", m.Calls())
	}
}

func TestRetry_BackoffHonorsRetryAfter(t *testing.T) {
	r := &retryModel{cfg: fastRetry()}
	got := r.backoff(0, &RateLimitError{RetryAfter: 2 * time.Second})
	if got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if w := r.backoff(10, errors.New("x")); w > 6*time.Millisecond {
		t.Fatalf("backoff exceeded max wait plus jitter: %s", w)
	}
}

func TestWithRetry_SingleAttemptUnwrapped(t *testing.T) {
	m := NewScriptedModel()
	if WithRetry(m, RetryConfig{MaxAttempts: 1}) != Model(m) {
		t.Fatal("expected model to be returned unchanged")
	}
}
