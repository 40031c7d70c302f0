// Package quest hands students themed bundles of lessons (quests) built
// from their learning path and tracks each assignment to completion.
package quest

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/store"
)

var (
	// ErrInvalidTransition is returned when a status change would move an
	// assignment backwards.
	ErrInvalidTransition = errors.New("quest: invalid status transition")

	// ErrTierComplete means the student has nothing left to learn in the
	// tier. It is a terminal state, not a failure.
	ErrTierComplete = errors.New("quest: tier complete")
)

// Status is an assignment's progress. It only moves forward.
type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusAssigned:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	return s.rank() >= 0 && next.rank() > s.rank()
}

// Source records who created an assignment.
type Source string

const (
	SourcePlacementQuiz   Source = "placement-quiz"
	SourceAutoProgression Source = "auto-progression"
	SourceTutor           Source = "tutor"
	SourceWowlAI          Source = "wowl-ai"
	SourceParent          Source = "parent"
)

// CanOverride reports whether the source may bypass path order.
func (s Source) CanOverride() bool {
	switch s {
	case SourceTutor, SourceParent, SourceWowlAI:
		return true
	}
	return false
}

// CompletionPolicy decides when a quest is done.
type CompletionPolicy string

const (
	// PolicyMastery completes the quest once every targeted competency is
	// proficient or better in the ledger.
	PolicyMastery CompletionPolicy = "mastery"

	// PolicyLessons completes the quest once every lesson is marked done.
	PolicyLessons CompletionPolicy = "lessons"
)

// Assignment is one quest handed to one student.
type Assignment struct {
	ID                   string             `json:"id"`
	StudentID            string             `json:"student_id"`
	Subject              competency.Subject `json:"subject"`
	QuestID              string             `json:"quest_id"`
	QuestTitle           string             `json:"quest_title"`
	Status               Status             `json:"status"`
	CompetenciesTargeted []string           `json:"competencies_targeted"`
	Lessons              []string           `json:"lessons"`
	LessonsCompleted     []string           `json:"lessons_completed"`
	XPEarned             int                `json:"xp_earned"`
	Difficulty           Difficulty         `json:"difficulty"`
	CompletionPolicy     CompletionPolicy   `json:"completion_policy"`
	AssignedBy           Source             `json:"assigned_by"`
	AssignedAt           time.Time          `json:"assigned_at"`
	StartedAt            *time.Time         `json:"started_at,omitempty"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	SupersededBy         string             `json:"superseded_by,omitempty"`
}

// Open reports whether the assignment is still in flight.
func (a *Assignment) Open() bool {
	return a.Status != StatusCompleted && a.SupersededBy == ""
}

func (a *Assignment) transition(next Status) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, next)
	}
	a.Status = next
	return nil
}

// Targets reports whether the quest works on competencyID.
func (a *Assignment) Targets(competencyID string) bool {
	return slices.Contains(a.CompetenciesTargeted, competencyID)
}

// Start moves an assigned quest to in-progress. Starting a quest that is
// already in progress is a no-op.
func (a *Assignment) Start(now time.Time) error {
	if a.Status == StatusInProgress {
		return nil
	}
	if err := a.transition(StatusInProgress); err != nil {
		return err
	}
	a.StartedAt = &now
	return nil
}

// CompleteLesson marks a lesson done and awards its XP, starting the quest
// if needed. It reports false when the lesson was already done.
func (a *Assignment) CompleteLesson(lessonID string, now time.Time) (bool, error) {
	if a.Status == StatusCompleted {
		return false, fmt.Errorf("%w: quest %s is completed", ErrInvalidTransition, a.ID)
	}
	if !slices.Contains(a.Lessons, lessonID) {
		return false, fmt.Errorf("lesson %q is not part of quest %s", lessonID, a.QuestID)
	}
	if slices.Contains(a.LessonsCompleted, lessonID) {
		return false, nil
	}
	if err := a.Start(now); err != nil {
		return false, err
	}
	a.LessonsCompleted = append(a.LessonsCompleted, lessonID)
	a.XPEarned += a.Difficulty.LessonXP()
	return true, nil
}

// LessonsDone reports whether every lesson is marked done.
func (a *Assignment) LessonsDone() bool {
	for _, l := range a.Lessons {
		if !slices.Contains(a.LessonsCompleted, l) {
			return false
		}
	}
	return true
}

// Complete marks the quest completed.
func (a *Assignment) Complete(now time.Time) error {
	if err := a.transition(StatusCompleted); err != nil {
		return err
	}
	if a.StartedAt == nil {
		a.StartedAt = &now
	}
	a.CompletedAt = &now
	return nil
}

func toData(a *Assignment, key string) store.AssignmentData {
	return store.AssignmentData{
		ID:                   a.ID,
		StudentID:            a.StudentID,
		Subject:              string(a.Subject),
		QuestID:              a.QuestID,
		QuestTitle:           a.QuestTitle,
		Status:               string(a.Status),
		CompetenciesTargeted: a.CompetenciesTargeted,
		Lessons:              a.Lessons,
		LessonsCompleted:     a.LessonsCompleted,
		XPEarned:             a.XPEarned,
		Difficulty:           string(a.Difficulty),
		CompletionPolicy:     string(a.CompletionPolicy),
		AssignedBy:           string(a.AssignedBy),
		AssignedAt:           a.AssignedAt,
		StartedAt:            a.StartedAt,
		CompletedAt:          a.CompletedAt,
		SupersededBy:         a.SupersededBy,
		IdempotencyKey:       key,
	}
}

func fromData(d *store.AssignmentData) *Assignment {
	return &Assignment{
		ID:                   d.ID,
		StudentID:            d.StudentID,
		Subject:              competency.Subject(d.Subject),
		QuestID:              d.QuestID,
		QuestTitle:           d.QuestTitle,
		Status:               Status(d.Status),
		CompetenciesTargeted: d.CompetenciesTargeted,
		Lessons:              d.Lessons,
		LessonsCompleted:     d.LessonsCompleted,
		XPEarned:             d.XPEarned,
		Difficulty:           Difficulty(d.Difficulty),
		CompletionPolicy:     CompletionPolicy(d.CompletionPolicy),
		AssignedBy:           Source(d.AssignedBy),
		AssignedAt:           d.AssignedAt,
		StartedAt:            d.StartedAt,
		CompletedAt:          d.CompletedAt,
		SupersededBy:         d.SupersededBy,
	}
}
