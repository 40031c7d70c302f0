package store

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const tableAssignments = "assignments"

var assignmentColumns = []string{
	"id", "student_id", "subject", "quest_id", "quest_title", "status",
	"competencies", "lessons", "lessons_completed", "xp_earned", "difficulty",
	"completion_policy", "assigned_by", "assigned_at", "started_at", "completed_at",
	"superseded_by", "idempotency_key",
}

func scanAssignment(rows *entsql.Rows) (AssignmentData, error) {
	var (
		a                                  AssignmentData
		comps, lessons, done               string
		assignedAt, startedAt, completedAt string
		key                                entsql.NullString
	)
	if err := rows.Scan(&a.ID, &a.StudentID, &a.Subject, &a.QuestID, &a.QuestTitle, &a.Status,
		&comps, &lessons, &done, &a.XPEarned, &a.Difficulty,
		&a.CompletionPolicy, &a.AssignedBy, &assignedAt, &startedAt, &completedAt,
		&a.SupersededBy, &key); err != nil {
		return a, err
	}
	var err error
	if a.CompetenciesTargeted, err = decodeList(comps); err != nil {
		return a, err
	}
	if a.Lessons, err = decodeList(lessons); err != nil {
		return a, err
	}
	if a.LessonsCompleted, err = decodeList(done); err != nil {
		return a, err
	}
	if a.AssignedAt, err = parseTime(assignedAt); err != nil {
		return a, err
	}
	if a.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return a, err
	}
	if a.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return a, err
	}
	a.IdempotencyKey = key.String
	return a, nil
}

func (s *Store) queryAssignments(ctx context.Context, sel *entsql.Selector) ([]AssignmentData, error) {
	q, args := sel.Query()
	var out []AssignmentData
	err := queryEach(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		a, err := scanAssignment(rows)
		if err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func (s *Store) selectAssignments() *entsql.Selector {
	return s.builder().Select(assignmentColumns...).From(entsql.Table(tableAssignments))
}

// CreateAssignment inserts a new assignment. An empty idempotency key is
// stored as NULL so it never collides.
func (s *Store) CreateAssignment(ctx context.Context, a AssignmentData) error {
	comps, err := encodeList(a.CompetenciesTargeted)
	if err != nil {
		return fmt.Errorf("encode competencies: %w", err)
	}
	lessons, err := encodeList(a.Lessons)
	if err != nil {
		return fmt.Errorf("encode lessons: %w", err)
	}
	done, err := encodeList(a.LessonsCompleted)
	if err != nil {
		return fmt.Errorf("encode lessons completed: %w", err)
	}
	var key any
	if a.IdempotencyKey != "" {
		key = a.IdempotencyKey
	}
	q, args := s.builder().Insert(tableAssignments).
		Columns(assignmentColumns...).
		Values(a.ID, a.StudentID, a.Subject, a.QuestID, a.QuestTitle, a.Status,
			comps, lessons, done, a.XPEarned, a.Difficulty,
			a.CompletionPolicy, a.AssignedBy, formatTime(a.AssignedAt),
			formatTimePtr(a.StartedAt), formatTimePtr(a.CompletedAt),
			a.SupersededBy, key).
		Query()
	if err := exec(ctx, s.drv, q, args); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*AssignmentData, error) {
	out, err := s.queryAssignments(ctx, s.selectAssignments().Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) GetAssignmentByKey(ctx context.Context, key string) (*AssignmentData, error) {
	out, err := s.queryAssignments(ctx, s.selectAssignments().Where(entsql.EQ("idempotency_key", key)))
	if err != nil {
		return nil, fmt.Errorf("get assignment by key: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// UpdateAssignment rewrites the mutable columns. The idempotency key and
// assignment origin are fixed at creation.
func (s *Store) UpdateAssignment(ctx context.Context, a AssignmentData) error {
	comps, err := encodeList(a.CompetenciesTargeted)
	if err != nil {
		return fmt.Errorf("encode competencies: %w", err)
	}
	lessons, err := encodeList(a.Lessons)
	if err != nil {
		return fmt.Errorf("encode lessons: %w", err)
	}
	done, err := encodeList(a.LessonsCompleted)
	if err != nil {
		return fmt.Errorf("encode lessons completed: %w", err)
	}
	q, args := s.builder().Update(tableAssignments).
		Set("quest_title", a.QuestTitle).
		Set("status", a.Status).
		Set("competencies", comps).
		Set("lessons", lessons).
		Set("lessons_completed", done).
		Set("xp_earned", a.XPEarned).
		Set("difficulty", a.Difficulty).
		Set("completion_policy", a.CompletionPolicy).
		Set("started_at", formatTimePtr(a.StartedAt)).
		Set("completed_at", formatTimePtr(a.CompletedAt)).
		Set("superseded_by", a.SupersededBy).
		Where(entsql.EQ("id", a.ID)).
		Query()
	if err := execAffected(ctx, s.drv, q, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

func (s *Store) OpenAssignment(ctx context.Context, studentID, subject string) (*AssignmentData, error) {
	out, err := s.queryAssignments(ctx, s.selectAssignments().
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("subject", subject),
			entsql.NEQ("status", "completed"),
			entsql.EQ("superseded_by", ""),
		)).
		OrderBy(entsql.Desc("assigned_at"), entsql.Desc("id")).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("open assignment: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) ListAssignments(ctx context.Context, studentID string) ([]AssignmentData, error) {
	out, err := s.queryAssignments(ctx, s.selectAssignments().
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("assigned_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return out, nil
}
