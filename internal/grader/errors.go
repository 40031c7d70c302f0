package grader

import (
	"encoding/json"
	"fmt"
	"time"
)

// RateLimitError means the backend answered 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// InvalidReplyError means the reply did not match the requested schema.
type InvalidReplyError struct {
	Content json.RawMessage
	Err     error
}

func (e *InvalidReplyError) Error() string {
	return fmt.Sprintf("invalid model reply: %v", e.Err)
}

func (e *InvalidReplyError) Unwrap() error { return e.Err }

// UnavailableError means the backend is down or unreachable.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model backend unavailable: %v", e.Err)
	}
	return "model backend unavailable"
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// TruncatedError means the reply hit MaxTokens.
type TruncatedError struct {
	Content json.RawMessage
}

func (e *TruncatedError) Error() string {
	return "model reply truncated at max tokens"
}
