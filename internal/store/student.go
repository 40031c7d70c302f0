package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const tableStudents = "students"

var studentColumns = []string{
	"id", "age", "estimated_grade", "subject", "recommended_tier", "selected_tier", "created_at", "updated_at",
}

func (s *Store) GetStudent(ctx context.Context, id string) (*StudentData, error) {
	q, args := s.builder().Select(studentColumns...).
		From(entsql.Table(tableStudents)).
		Where(entsql.EQ("id", id)).
		Query()

	var out *StudentData
	err := queryEach(ctx, s.drv, q, args, func(rows *entsql.Rows) error {
		var (
			st               StudentData
			created, updated string
		)
		if err := rows.Scan(&st.ID, &st.Age, &st.EstimatedGrade, &st.Subject,
			&st.RecommendedTier, &st.SelectedTier, &created, &updated); err != nil {
			return err
		}
		var err error
		if st.CreatedAt, err = parseTime(created); err != nil {
			return err
		}
		if st.UpdatedAt, err = parseTime(updated); err != nil {
			return err
		}
		out = &st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// PutStudent inserts or updates a profile. created_at is kept from the
// first insert.
func (s *Store) PutStudent(ctx context.Context, st StudentData) error {
	now := time.Now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = now
	}
	q, args := s.builder().Insert(tableStudents).
		Columns(studentColumns...).
		Values(st.ID, st.Age, st.EstimatedGrade, st.Subject, st.RecommendedTier,
			st.SelectedTier, formatTime(st.CreatedAt), formatTime(st.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("age")
				u.SetExcluded("estimated_grade")
				u.SetExcluded("subject")
				u.SetExcluded("recommended_tier")
				u.SetExcluded("selected_tier")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if err := exec(ctx, s.drv, q, args); err != nil {
		return fmt.Errorf("put student: %w", err)
	}
	return nil
}
