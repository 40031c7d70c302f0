package mastery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/platform/logger"
	"github.com/wowl-learning/wowl/internal/store"
)

// Record is a student's ledger entry for one competency.
type Record struct {
	StudentID      string
	CompetencyID   string
	Level          Level // best level ever achieved
	LatestLevel    Level
	AttemptCount   int
	LastAssessedAt time.Time
}

// Change describes the effect of one recorded assessment.
type Change struct {
	StudentID    string
	CompetencyID string
	Subject      competency.Subject
	From         Level // best-known level before; emerging if never assessed
	To           Level // best-known level after
	Recorded     Level // the level that was recorded
	AttemptCount int
	// Repeat is set when the assessment had already been folded in and
	// the ledger was left unchanged.
	Repeat bool
}

// Improved reports whether the best-known level went up.
func (c Change) Improved() bool {
	return c.To > c.From
}

// PathInvalidator discards the cached learning path for a student and
// subject so the next read regenerates it.
type PathInvalidator interface {
	InvalidatePath(ctx context.Context, studentID string, subject competency.Subject) error
}

// Ledger is the authoritative record of each student's best-known mastery
// per competency. It keeps the maximum level ever achieved; lower
// re-assessments are counted but never regress the gate level.
type Ledger struct {
	repo        store.MasteryRepo
	catalog     *competency.Catalog
	invalidator PathInvalidator
	log         *logger.Logger
}

// NewLedger creates a ledger. invalidator may be nil.
func NewLedger(repo store.MasteryRepo, catalog *competency.Catalog, invalidator PathInvalidator, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ledger{repo: repo, catalog: catalog, invalidator: invalidator, log: log}
}

// RecordAssessment folds an assessed level into the ledger atomically.
// Recording the same assessmentID twice in a row changes nothing, so a
// caller may retry after a failure. When the best-known level changes,
// the student's path for the competency's subject is invalidated.
func (l *Ledger) RecordAssessment(ctx context.Context, studentID, competencyID, assessmentID string, level Level, at time.Time) (Change, error) {
	if !level.Valid() {
		return Change{}, fmt.Errorf("record assessment: invalid level %d", int(level))
	}
	comp, err := l.catalog.Get(competencyID)
	if err != nil {
		return Change{}, fmt.Errorf("record assessment: %w", err)
	}

	change := Change{
		StudentID:    studentID,
		CompetencyID: competencyID,
		Subject:      comp.Subject,
		From:         LevelEmerging,
		Recorded:     level,
	}
	saved, err := l.repo.UpdateMastery(ctx, studentID, competencyID, func(cur *store.MasteryData) (store.MasteryData, error) {
		next := store.MasteryData{
			Level:            level.String(),
			LatestLevel:      level.String(),
			AttemptCount:     1,
			LastAssessedAt:   at,
			LastAssessmentID: assessmentID,
		}
		if cur == nil {
			return next, nil
		}
		best, err := ParseLevel(cur.Level)
		if err != nil {
			return store.MasteryData{}, fmt.Errorf("stored level: %w", err)
		}
		change.From = best
		if assessmentID != "" && cur.LastAssessmentID == assessmentID {
			change.Repeat = true
			return *cur, nil
		}
		next.Level = Max(best, level).String()
		next.AttemptCount = cur.AttemptCount + 1
		if at.Before(cur.LastAssessedAt) {
			next.LastAssessedAt = cur.LastAssessedAt
		}
		return next, nil
	})
	if err != nil {
		return Change{}, fmt.Errorf("record assessment: %w", err)
	}

	change.To, _ = ParseLevel(saved.Level)
	change.AttemptCount = saved.AttemptCount

	log := l.log.With("student_id", studentID, "competency_id", competencyID)
	if change.Repeat {
		log.Debug("assessment already recorded", "assessment_id", assessmentID)
		return change, nil
	}
	log.Debug("mastery recorded", "level", level.String(), "best", saved.Level, "attempts", saved.AttemptCount)

	if change.To != change.From && l.invalidator != nil {
		if err := l.invalidator.InvalidatePath(ctx, studentID, comp.Subject); err != nil {
			// The ledger write stands; the path regenerates once the
			// cache entry expires or the next invalidation succeeds.
			log.Warn("path invalidation failed", "subject", comp.Subject, "error", err)
		}
	}
	return change, nil
}

// BestKnownLevel returns the best level the student has shown, or
// emerging if the competency was never assessed.
func (l *Ledger) BestKnownLevel(ctx context.Context, studentID, competencyID string) (Level, error) {
	m, err := l.repo.GetMastery(ctx, studentID, competencyID)
	if errors.Is(err, store.ErrNotFound) {
		return LevelEmerging, nil
	}
	if err != nil {
		return 0, err
	}
	return ParseLevel(m.Level)
}

// MeetsGate reports whether the best-known level is at least min.
func (l *Ledger) MeetsGate(ctx context.Context, studentID, competencyID string, min Level) (bool, error) {
	best, err := l.BestKnownLevel(ctx, studentID, competencyID)
	if err != nil {
		return false, err
	}
	return best >= min, nil
}

// Levels returns the best-known level per assessed competency.
func (l *Ledger) Levels(ctx context.Context, studentID string) (map[string]Level, error) {
	records, err := l.Records(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Level, len(records))
	for _, r := range records {
		out[r.CompetencyID] = r.Level
	}
	return out, nil
}

// Records returns every ledger entry for a student.
func (l *Ledger) Records(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := l.repo.ListMastery(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, m := range rows {
		best, err := ParseLevel(m.Level)
		if err != nil {
			return nil, fmt.Errorf("competency %q: %w", m.CompetencyID, err)
		}
		latest, err := ParseLevel(m.LatestLevel)
		if err != nil {
			return nil, fmt.Errorf("competency %q: %w", m.CompetencyID, err)
		}
		out = append(out, Record{
			StudentID:      m.StudentID,
			CompetencyID:   m.CompetencyID,
			Level:          best,
			LatestLevel:    latest,
			AttemptCount:   m.AttemptCount,
			LastAssessedAt: m.LastAssessedAt,
		})
	}
	return out, nil
}
