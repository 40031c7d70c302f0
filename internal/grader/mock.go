package grader

import (
	"context"
	"encoding/json"
	"sync"
)

// ScriptedReply is one canned answer for a ScriptedModel.
type ScriptedReply struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// ScriptedModel is a deterministic Model for tests and offline runs. It
// answers in FIFO order and records every prompt.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []ScriptedReply
	Prompts []Prompt
}

// NewScriptedModel creates a ScriptedModel with the given replies.
func NewScriptedModel(replies ...ScriptedReply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Complete returns the next reply, or an UnavailableError once the
// script runs out. Content is validated against the prompt's schema like
// a real backend would.
func (m *ScriptedModel) Complete(_ context.Context, p Prompt) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, p)
	if len(m.replies) == 0 {
		return nil, &UnavailableError{}
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	if err := validateReply(p.Schema, r.Content); err != nil {
		return nil, err
	}
	return &Reply{Content: r.Content, Usage: r.Usage, Model: "scripted", StopReason: "end"}, nil
}

func (m *ScriptedModel) Name() string { return "scripted" }

// Add appends a reply to the script.
func (m *ScriptedModel) Add(r ScriptedReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
}

// Calls returns how many prompts were received.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
