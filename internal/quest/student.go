package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/store"
)

// Student is the placement-relevant part of a student profile.
// SelectedTier, set by a parent or tutor, wins over RecommendedTier.
type Student struct {
	ID              string             `json:"id"`
	Age             int                `json:"age,omitempty"`
	EstimatedGrade  *competency.Grade  `json:"estimated_grade,omitempty"`
	Subject         competency.Subject `json:"subject"`
	RecommendedTier placement.Tier     `json:"recommended_tier"`
	SelectedTier    placement.Tier     `json:"selected_tier,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Tier returns the tier the student works in.
func (s *Student) Tier() placement.Tier {
	if s.SelectedTier != "" {
		return s.SelectedTier
	}
	return s.RecommendedTier
}

// GetStudent loads a profile. It returns store.ErrNotFound for a student
// that never took the placement quiz.
func (s *Service) GetStudent(ctx context.Context, id string) (*Student, error) {
	d, err := s.students.GetStudent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("student %q: %w", id, err)
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	st := &Student{
		ID:              d.ID,
		Age:             d.Age,
		Subject:         competency.Subject(d.Subject),
		RecommendedTier: placement.Tier(d.RecommendedTier),
		SelectedTier:    placement.Tier(d.SelectedTier),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.EstimatedGrade != "" {
		g, err := competency.ParseGrade(d.EstimatedGrade)
		if err != nil {
			return nil, fmt.Errorf("student %q: %w", id, err)
		}
		st.EstimatedGrade = &g
	}
	return st, nil
}

func (s *Service) putStudent(ctx context.Context, st *Student) error {
	d := store.StudentData{
		ID:              st.ID,
		Age:             st.Age,
		Subject:         string(st.Subject),
		RecommendedTier: string(st.RecommendedTier),
		SelectedTier:    string(st.SelectedTier),
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
	}
	if st.EstimatedGrade != nil {
		d.EstimatedGrade = st.EstimatedGrade.String()
	}
	if err := s.students.PutStudent(ctx, d); err != nil {
		return fmt.Errorf("put student: %w", err)
	}
	return nil
}

// SelectTier records a parent or tutor tier choice. The next path read
// regenerates for the new tier. An empty tier clears the choice.
func (s *Service) SelectTier(ctx context.Context, studentID string, tier placement.Tier) (*Student, error) {
	if tier != "" && !tier.Valid() {
		return nil, fmt.Errorf("select tier: unknown tier %q", tier)
	}
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	st.SelectedTier = tier
	st.UpdatedAt = s.now().UTC()
	if err := s.putStudent(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
