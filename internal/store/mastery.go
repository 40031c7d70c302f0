package store

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const tableMastery = "mastery_records"

var masteryColumns = []string{
	"student_id", "competency_id", "level", "latest_level", "attempt_count", "last_assessed_at", "last_assessment_id",
}

// maxMasteryRetries bounds retries when two writers race to create the
// same ledger entry.
const maxMasteryRetries = 3

func scanMastery(rows *entsql.Rows) (MasteryData, error) {
	var (
		m  MasteryData
		at string
	)
	if err := rows.Scan(&m.StudentID, &m.CompetencyID, &m.Level, &m.LatestLevel, &m.AttemptCount, &at, &m.LastAssessmentID); err != nil {
		return m, err
	}
	t, err := parseTime(at)
	if err != nil {
		return m, err
	}
	m.LastAssessedAt = t
	return m, nil
}

func (s *Store) selectMastery(studentID, competencyID string, forUpdate bool) (string, []any) {
	sel := s.builder().Select(masteryColumns...).
		From(entsql.Table(tableMastery)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("competency_id", competencyID),
		))
	if forUpdate && s.dialect == dialect.Postgres {
		sel = sel.ForUpdate()
	}
	return sel.Query()
}

func (s *Store) getMastery(ctx context.Context, q querier, studentID, competencyID string, forUpdate bool) (*MasteryData, error) {
	query, args := s.selectMastery(studentID, competencyID, forUpdate)
	var out *MasteryData
	err := queryEach(ctx, q, query, args, func(rows *entsql.Rows) error {
		m, err := scanMastery(rows)
		if err != nil {
			return err
		}
		out = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *Store) GetMastery(ctx context.Context, studentID, competencyID string) (*MasteryData, error) {
	m, err := s.getMastery(ctx, s.drv, studentID, competencyID, false)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	return m, err
}

func (s *Store) ListMastery(ctx context.Context, studentID string) ([]MasteryData, error) {
	q, args := s.builder().Select(masteryColumns...).
		From(entsql.Table(tableMastery)).
		Where(entsql.EQ("student_id", studentID)).
		OrderBy("competency_id").
		Query()
	var out []MasteryData
	err := queryEach(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		m, err := scanMastery(rows)
		if err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	return out, nil
}

// UpdateMastery runs fn inside a transaction. On Postgres the row is
// locked with SELECT ... FOR UPDATE; SQLite is serialized by its single
// connection. A lost race on first insert is retried.
func (s *Store) UpdateMastery(ctx context.Context, studentID, competencyID string, fn func(cur *MasteryData) (MasteryData, error)) (*MasteryData, error) {
	for attempt := 1; ; attempt++ {
		m, err := s.updateMasteryOnce(ctx, studentID, competencyID, fn)
		if errors.Is(err, ErrDuplicate) && attempt < maxMasteryRetries {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update mastery: %w", err)
		}
		return m, nil
	}
}

func (s *Store) updateMasteryOnce(ctx context.Context, studentID, competencyID string, fn func(cur *MasteryData) (MasteryData, error)) (_ *MasteryData, err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cur, err := s.getMastery(ctx, tx, studentID, competencyID, true)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	next.StudentID, next.CompetencyID = studentID, competencyID

	var (
		q    string
		args []any
	)
	if cur == nil {
		q, args = s.builder().Insert(tableMastery).
			Columns(masteryColumns...).
			Values(next.StudentID, next.CompetencyID, next.Level, next.LatestLevel,
				next.AttemptCount, formatTime(next.LastAssessedAt), next.LastAssessmentID).
			Query()
	} else {
		q, args = s.builder().Update(tableMastery).
			Set("level", next.Level).
			Set("latest_level", next.LatestLevel).
			Set("attempt_count", next.AttemptCount).
			Set("last_assessed_at", formatTime(next.LastAssessedAt)).
			Set("last_assessment_id", next.LastAssessmentID).
			Where(entsql.And(
				entsql.EQ("student_id", studentID),
				entsql.EQ("competency_id", competencyID),
			)).
			Query()
	}
	if err = exec(ctx, tx, q, args); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &next, nil
}
