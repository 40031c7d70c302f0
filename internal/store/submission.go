package store

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const tableSubmissions = "submissions"

var submissionColumns = []string{
	"id", "student_id", "challenge_id", "competency_id", "skill_level", "type",
	"content", "attempt_number", "previous_attempt_id", "status", "submitted_at",
}

func scanSubmission(rows *entsql.Rows) (SubmissionData, error) {
	var (
		sub            SubmissionData
		content, subAt string
	)
	if err := rows.Scan(&sub.ID, &sub.StudentID, &sub.ChallengeID, &sub.CompetencyID, &sub.SkillLevel,
		&sub.Type, &content, &sub.AttemptNumber, &sub.PreviousAttemptID, &sub.Status, &subAt); err != nil {
		return sub, err
	}
	sub.Content = []byte(content)
	t, err := parseTime(subAt)
	if err != nil {
		return sub, err
	}
	sub.SubmittedAt = t
	return sub, nil
}

func (s *Store) querySubmissions(ctx context.Context, sel *entsql.Selector) ([]SubmissionData, error) {
	q, args := sel.Query()
	var out []SubmissionData
	err := queryEach(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		sub, err := scanSubmission(rows)
		if err != nil {
			return err
		}
		out = append(out, sub)
		return nil
	})
	return out, err
}

func (s *Store) CreateSubmission(ctx context.Context, sub SubmissionData) error {
	q, args := s.builder().Insert(tableSubmissions).
		Columns(submissionColumns...).
		Values(sub.ID, sub.StudentID, sub.ChallengeID, sub.CompetencyID, sub.SkillLevel, sub.Type,
			string(sub.Content), sub.AttemptNumber, sub.PreviousAttemptID, sub.Status, formatTime(sub.SubmittedAt)).
		Query()
	if err := exec(ctx, s.drv, q, args); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*SubmissionData, error) {
	out, err := s.querySubmissions(ctx, s.builder().Select(submissionColumns...).
		From(entsql.Table(tableSubmissions)).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) LatestSubmission(ctx context.Context, studentID, challengeID string) (*SubmissionData, error) {
	out, err := s.querySubmissions(ctx, s.builder().Select(submissionColumns...).
		From(entsql.Table(tableSubmissions)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("challenge_id", challengeID),
		)).
		OrderBy(entsql.Desc("attempt_number")).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("latest submission: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) SetSubmissionStatus(ctx context.Context, id, status string) error {
	q, args := s.builder().Update(tableSubmissions).
		Set("status", status).
		Where(entsql.EQ("id", id)).
		Query()
	if err := execAffected(ctx, s.drv, q, args); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("set submission status: %w", err)
	}
	return nil
}

func (s *Store) ListSubmissionsByStatus(ctx context.Context, status string) ([]SubmissionData, error) {
	out, err := s.querySubmissions(ctx, s.builder().Select(submissionColumns...).
		From(entsql.Table(tableSubmissions)).
		Where(entsql.EQ("status", status)).
		OrderBy("submitted_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}
