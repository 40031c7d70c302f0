// Package notify delivers milestone signals (a quest finished, a
// competency mastered) to whoever sends emails or badges. Delivery is
// fire-and-forget: the engine never waits on it.
package notify

import (
	"context"
	"time"

	"github.com/wowl-learning/wowl/internal/platform/logger"
)

// Kind identifies a milestone.
type Kind string

const (
	KindQuestCompleted Kind = "quest-completed"
	KindMastered       Kind = "competency-mastered"
)

// Event is one milestone.
type Event struct {
	Kind         Kind      `json:"kind"`
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	QuestID      string    `json:"quest_id,omitempty"`
	QuestTitle   string    `json:"quest_title,omitempty"`
	CompetencyID string    `json:"competency_id,omitempty"`
	XPEarned     int       `json:"xp_earned,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier receives milestone events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// LogNotifier writes events to the log. Used when no broker is configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, e Event) error {
	n.log.Info("milestone",
		"kind", e.Kind,
		"student_id", e.StudentID,
		"quest_id", e.QuestID,
		"competency_id", e.CompetencyID,
		"xp", e.XPEarned)
	return nil
}
