package path

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/platform/cache"
	"github.com/wowl-learning/wowl/internal/platform/logger"
	"github.com/wowl-learning/wowl/internal/store"
)

// DefaultCacheTTL bounds how long a cached path can outlive a missed
// invalidation.
const DefaultCacheTTL = 30 * time.Minute

// Cache is the subset of the Redis cache the service uses.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LevelSource supplies best-known levels; *mastery.Ledger implements it.
type LevelSource interface {
	Levels(ctx context.Context, studentID string) (map[string]mastery.Level, error)
}

// Service keeps one active path per student and subject. Reads go
// through the cache, then the store, and regenerate on a miss.
type Service struct {
	gen    *Generator
	repo   store.PathRepo
	levels LevelSource
	cache  Cache
	ttl    time.Duration
	log    *logger.Logger
}

// NewService creates a path service. c may be nil to run without a cache.
func NewService(gen *Generator, repo store.PathRepo, levels LevelSource, c Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		gen:    gen,
		repo:   repo,
		levels: levels,
		cache:  c,
		ttl:    DefaultCacheTTL,
		log:    log,
	}
}

// SetCacheTTL sets the cache entry lifetime.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	s.ttl = ttl
}

// SetLevelSource sets the level source after construction. The ledger
// and the path service depend on each other, so one of them is wired late.
func (s *Service) SetLevelSource(levels LevelSource) {
	s.levels = levels
}

func cacheKey(studentID string, subject competency.Subject) string {
	return fmt.Sprintf("wowl:path:%s:%s", studentID, subject)
}

// CurrentPath returns the active path for the student and subject in the
// given tier, regenerating it when none is stored or the stored one is
// for a different tier.
func (s *Service) CurrentPath(ctx context.Context, studentID string, subject competency.Subject, tier placement.Tier) (*LearningPath, error) {
	if p := s.fromCache(ctx, studentID, subject); p != nil && p.Tier == tier {
		return p, nil
	}

	d, err := s.repo.GetPath(ctx, studentID, string(subject))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get path: %w", err)
	default:
		p, err := fromData(d)
		if err != nil {
			s.log.Warn("discarding unreadable path", "student_id", studentID, "subject", subject, "error", err)
		} else if p.Tier == tier {
			s.toCache(ctx, p)
			return p, nil
		}
	}
	return s.Regenerate(ctx, studentID, subject, tier)
}

// Regenerate discards any stored path and builds a new one from the
// current ledger.
func (s *Service) Regenerate(ctx context.Context, studentID string, subject competency.Subject, tier placement.Tier) (*LearningPath, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("regenerate path: unknown tier %q", tier)
	}
	levels, err := s.levels.Levels(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("regenerate path: %w", err)
	}
	p := s.gen.Generate(studentID, subject, tier, levels)
	if err := s.save(ctx, &p); err != nil {
		return nil, err
	}
	s.log.Debug("path regenerated",
		"student_id", studentID,
		"subject", subject,
		"tier", tier,
		"remaining", len(p.Competencies))
	return &p, nil
}

// Advance moves the cursor of a stored path to n and persists it.
func (s *Service) Advance(ctx context.Context, p *LearningPath, n int) error {
	if n < 0 || n > len(p.Competencies) {
		return fmt.Errorf("advance path: cursor %d out of range 0..%d", n, len(p.Competencies))
	}
	p.Cursor = n
	return s.save(ctx, p)
}

// InvalidatePath drops the stored and cached path so the next read
// regenerates it.
func (s *Service) InvalidatePath(ctx context.Context, studentID string, subject competency.Subject) error {
	var errs []error
	if err := s.repo.DeletePath(ctx, studentID, string(subject)); err != nil {
		errs = append(errs, fmt.Errorf("delete path: %w", err))
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(studentID, subject)); err != nil {
			errs = append(errs, fmt.Errorf("evict path: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) save(ctx context.Context, p *LearningPath) error {
	if err := s.repo.PutPath(ctx, toData(p)); err != nil {
		return fmt.Errorf("save path: %w", err)
	}
	s.toCache(ctx, p)
	return nil
}

func (s *Service) fromCache(ctx context.Context, studentID string, subject competency.Subject) *LearningPath {
	if s.cache == nil {
		return nil
	}
	var p LearningPath
	err := s.cache.GetJSON(ctx, cacheKey(studentID, subject), &p)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("path cache read failed", "student_id", studentID, "error", err)
		}
		return nil
	}
	return &p
}

func (s *Service) toCache(ctx context.Context, p *LearningPath) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, cacheKey(p.StudentID, p.Subject), p, s.ttl); err != nil {
		s.log.Warn("path cache write failed", "student_id", p.StudentID, "error", err)
	}
}
