package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const tablePaths = "learning_paths"

var pathColumns = []string{"student_id", "subject", "tier", "competencies", "cursor_pos", "generated_at"}

func (s *Store) GetPath(ctx context.Context, studentID, subject string) (*PathData, error) {
	q, args := s.builder().Select(pathColumns...).
		From(entsql.Table(tablePaths)).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("subject", subject),
		)).
		Query()

	var out *PathData
	err := queryEach(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		var (
			p          PathData
			comps, gen string
		)
		if err := rows.Scan(&p.StudentID, &p.Subject, &p.Tier, &comps, &p.Cursor, &gen); err != nil {
			return err
		}
		var err error
		if p.Competencies, err = decodeList(comps); err != nil {
			return err
		}
		if p.GeneratedAt, err = parseTime(gen); err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get path: %w", err)
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// PutPath replaces the path for (student, subject).
func (s *Store) PutPath(ctx context.Context, p PathData) error {
	comps, err := encodeList(p.Competencies)
	if err != nil {
		return fmt.Errorf("encode path: %w", err)
	}
	q, args := s.builder().Insert(tablePaths).
		Columns(pathColumns...).
		Values(p.StudentID, p.Subject, p.Tier, comps, p.Cursor, formatTime(p.GeneratedAt)).
		OnConflict(
			entsql.ConflictColumns("student_id", "subject"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := exec(ctx, s.drv, q, args); err != nil {
		return fmt.Errorf("put path: %w", err)
	}
	return nil
}

func (s *Store) DeletePath(ctx context.Context, studentID, subject string) error {
	q, args := s.builder().Delete(tablePaths).
		Where(entsql.And(
			entsql.EQ("student_id", studentID),
			entsql.EQ("subject", subject),
		)).
		Query()
	if err := exec(ctx, s.drv, q, args); err != nil {
		return fmt.Errorf("delete path: %w", err)
	}
	return nil
}
