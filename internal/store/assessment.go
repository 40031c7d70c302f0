package store

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const tableAssessments = "assessments"

var assessmentColumns = []string{
	"id", "submission_id", "student_id", "competency_id", "overall_mastery",
	"allow_resubmission", "assessed_by", "assessed_at", "payload",
}

func (s *Store) queryAssessments(ctx context.Context, sel *entsql.Selector) ([]AssessmentData, error) {
	q, args := sel.Query()
	var out []AssessmentData
	err := queryEach(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		var (
			a           AssessmentData
			allow       int
			at, payload string
		)
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.StudentID, &a.CompetencyID, &a.OverallMastery,
			&allow, &a.AssessedBy, &at, &payload); err != nil {
			return err
		}
		t, err := parseTime(at)
		if err != nil {
			return err
		}
		a.AllowResubmission = allow != 0
		a.AssessedAt = t
		a.Payload = []byte(payload)
		out = append(out, a)
		return nil
	})
	return out, err
}

func (s *Store) PutAssessment(ctx context.Context, a AssessmentData) error {
	q, args := s.builder().Insert(tableAssessments).
		Columns(assessmentColumns...).
		Values(a.ID, a.SubmissionID, a.StudentID, a.CompetencyID, a.OverallMastery,
			boolInt(a.AllowResubmission), a.AssessedBy, formatTime(a.AssessedAt), string(a.Payload)).
		Query()
	if err := exec(ctx, s.drv, q, args); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("put assessment: %w", err)
	}
	return nil
}

func (s *Store) LatestAssessment(ctx context.Context, submissionID string) (*AssessmentData, error) {
	out, err := s.queryAssessments(ctx, s.builder().Select(assessmentColumns...).
		From(entsql.Table(tableAssessments)).
		Where(entsql.EQ("submission_id", submissionID)).
		OrderBy(entsql.Desc("assessed_at")).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("latest assessment: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *Store) ListAssessments(ctx context.Context, studentID, competencyID string) ([]AssessmentData, error) {
	out, err := s.queryAssessments(ctx, s.builder().Select(assessmentColumns...).
		From(entsql.Table(tableAssessments)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("competency_id", competencyID),
		)).
		OrderBy("assessed_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return out, nil
}
