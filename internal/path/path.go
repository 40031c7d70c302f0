// Package path orders the competencies a student still has to learn in a
// subject and keeps the active learning path per student and subject.
package path

import (
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/store"
)

// LearningPath is the ordered list of competencies a student has left in
// a tier. Cursor indexes the next entry that has not been handed out in
// a quest yet.
type LearningPath struct {
	StudentID    string             `json:"student_id"`
	Subject      competency.Subject `json:"subject"`
	Tier         placement.Tier     `json:"tier"`
	Competencies []string           `json:"competencies"`
	Cursor       int                `json:"cursor"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// TierComplete reports whether nothing is left to learn in the tier.
func (p *LearningPath) TierComplete() bool {
	return len(p.Competencies) == 0
}

// Remaining returns the entries from the cursor on.
func (p *LearningPath) Remaining() []string {
	if p.Cursor >= len(p.Competencies) {
		return nil
	}
	return p.Competencies[p.Cursor:]
}

// Contains reports whether id is on the path.
func (p *LearningPath) Contains(id string) bool {
	for _, c := range p.Competencies {
		if c == id {
			return true
		}
	}
	return false
}

func toData(p *LearningPath) store.PathData {
	return store.PathData{
		StudentID:    p.StudentID,
		Subject:      string(p.Subject),
		Tier:         string(p.Tier),
		Competencies: p.Competencies,
		Cursor:       p.Cursor,
		GeneratedAt:  p.GeneratedAt,
	}
}

func fromData(d *store.PathData) (*LearningPath, error) {
	tier, err := placement.ParseTier(d.Tier)
	if err != nil {
		return nil, err
	}
	return &LearningPath{
		StudentID:    d.StudentID,
		Subject:      competency.Subject(d.Subject),
		Tier:         tier,
		Competencies: d.Competencies,
		Cursor:       d.Cursor,
		GeneratedAt:  d.GeneratedAt,
	}, nil
}
