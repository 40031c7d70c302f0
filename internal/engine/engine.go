// Package engine is the library boundary of wowl. It wires the catalog,
// assessment, ledger, path and quest services over one store and exposes
// the operations the UI and orchestration layers call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wowl-learning/wowl/internal/assessment"
	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/errs"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/notify"
	"github.com/wowl-learning/wowl/internal/path"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/platform/logger"
	"github.com/wowl-learning/wowl/internal/quest"
	"github.com/wowl-learning/wowl/internal/store"
)

// Config holds the engine's collaborators. Catalog, Rubrics and Repo are
// required.
type Config struct {
	Catalog       *competency.Catalog
	Rubrics       assessment.RubricProvider
	Repo          store.Repository
	Grader        assessment.Grader // nil: rule-based only, media goes to review
	Cache         path.Cache        // nil: no path cache
	CacheTTL      time.Duration
	Notifier      notify.Notifier // nil: milestones dropped
	Policy        assessment.Policy
	GraderTimeout time.Duration
	QuestSize     int
	Logger        *logger.Logger
	Now           func() time.Time
}

// Engine implements the wowl operations.
type Engine struct {
	catalog  *competency.Catalog
	assessor *assessment.Assessor
	ledger   *mastery.Ledger
	paths    *path.Service
	quests   *quest.Service
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// New wires an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("engine: catalog is required")
	}
	if cfg.Rubrics == nil {
		return nil, fmt.Errorf("engine: rubrics are required")
	}
	if cfg.Repo == nil {
		return nil, fmt.Errorf("engine: repository is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	policy := cfg.Policy
	if policy.MaxAttempts <= 0 {
		policy = assessment.DefaultPolicy()
	}

	e := &Engine{
		catalog:  cfg.Catalog,
		notifier: notifier,
		log:      log,
		now:      now,
	}

	e.paths = path.NewService(path.NewGenerator(cfg.Catalog), cfg.Repo, nil, cfg.Cache, log.With("component", "path"))
	if cfg.CacheTTL > 0 {
		e.paths.SetCacheTTL(cfg.CacheTTL)
	}
	e.ledger = mastery.NewLedger(cfg.Repo, cfg.Catalog, e.paths, log.With("component", "ledger"))
	e.paths.SetLevelSource(e.ledger)

	e.quests = quest.NewService(quest.ServiceConfig{
		Repo:     cfg.Repo,
		Paths:    e.paths,
		Gate:     e.ledger,
		Builder:  quest.NewQuestBuilder(cfg.Catalog, cfg.QuestSize),
		Notifier: notifier,
		Logger:   log.With("component", "quest"),
		Now:      now,
	})

	e.assessor = assessment.NewAssessor(assessment.AssessorConfig{
		Engine:        assessment.NewEngine(policy),
		Rubrics:       cfg.Rubrics,
		Repo:          cfg.Repo,
		Grader:        cfg.Grader,
		Recorder:      e,
		GraderTimeout: cfg.GraderTimeout,
		Logger:        log.With("component", "assessment"),
		Now:           now,
	})
	return e, nil
}

// Catalog returns the competency catalog.
func (e *Engine) Catalog() *competency.Catalog { return e.catalog }

// Ledger returns the mastery ledger.
func (e *Engine) Ledger() *mastery.Ledger { return e.ledger }

// AssessSubmission scores a submission and folds the result into the
// ledger. A *errs.GraderTimeoutError means the work went to a tutor.
func (e *Engine) AssessSubmission(ctx context.Context, sub assessment.Submission) (*assessment.Assessment, error) {
	comp, err := e.catalog.Get(sub.CompetencyID)
	if err != nil {
		return nil, fmt.Errorf("assess submission: %w", err)
	}
	a, err := e.assessor.Assess(ctx, sub)
	if errors.Is(err, errs.ErrGraderTimeout) {
		// Work waiting for a tutor still counts as starting the quest.
		if _, serr := e.quests.StartChallenge(ctx, sub.StudentID, comp.Subject, sub.CompetencyID); serr != nil {
			e.log.Warn("quest start failed", "student_id", sub.StudentID, "error", serr)
		}
	}
	return a, err
}

// ResolveReview records a tutor's grades for a submission as a new
// assessment.
func (e *Engine) ResolveReview(ctx context.Context, submissionID string, grades assessment.Grades) (*assessment.Assessment, error) {
	return e.assessor.Resolve(ctx, submissionID, grades)
}

// PendingReviews lists submissions waiting for a tutor.
func (e *Engine) PendingReviews(ctx context.Context) ([]assessment.Submission, error) {
	return e.assessor.PendingReviews(ctx)
}

// RecordAssessment is called by the assessor for every new assessment,
// and again for one whose recording failed part way. It updates the
// ledger, starts the open quest that targets the competency, signals a
// mastered competency and completes the open quest when its policy is
// now met.
func (e *Engine) RecordAssessment(ctx context.Context, a *assessment.Assessment) error {
	change, err := e.ledger.RecordAssessment(ctx, a.StudentID, a.CompetencyID, a.ID, a.OverallMastery, a.AssessedAt)
	if err != nil {
		return err
	}

	if _, err := e.quests.StartChallenge(ctx, a.StudentID, change.Subject, a.CompetencyID); err != nil {
		return err
	}

	// A retried recording may signal the same milestone again.
	if a.OverallMastery == mastery.LevelMastered {
		err := e.notifier.Notify(ctx, notify.Event{
			Kind:         notify.KindMastered,
			StudentID:    a.StudentID,
			CompetencyID: a.CompetencyID,
			At:           a.AssessedAt,
		})
		if err != nil {
			e.log.Warn("mastery milestone not delivered", "student_id", a.StudentID, "error", err)
		}
	}

	if change.Improved() || change.Repeat {
		if _, err := e.quests.RefreshCompletion(ctx, a.StudentID, change.Subject); err != nil {
			return err
		}
	}
	return nil
}

// RecommendTier computes a placement recommendation. It stores nothing.
func (e *Engine) RecommendTier(in placement.Input) placement.Recommendation {
	return placement.RecommendTier(in)
}

// AssignFirstQuestFromQuiz onboards a student from the placement quiz.
func (e *Engine) AssignFirstQuestFromQuiz(ctx context.Context, studentID string, quiz quest.QuizResult) (*quest.Placement, error) {
	return e.quests.AssignFirstQuestFromQuiz(ctx, studentID, quiz)
}

// AssignNextQuest returns the open quest or assigns the next one.
func (e *Engine) AssignNextQuest(ctx context.Context, studentID string) (*quest.Assignment, error) {
	return e.quests.AssignNextQuest(ctx, studentID)
}

// OverrideQuest assigns a quest outside path order.
func (e *Engine) OverrideQuest(ctx context.Context, studentID string, req quest.OverrideRequest) (*quest.Assignment, error) {
	return e.quests.Override(ctx, studentID, req)
}

// StartQuest marks an assignment in progress.
func (e *Engine) StartQuest(ctx context.Context, assignmentID string) (*quest.Assignment, error) {
	return e.quests.Start(ctx, assignmentID)
}

// CompleteLesson records a finished lesson.
func (e *Engine) CompleteLesson(ctx context.Context, assignmentID, lessonID string) (*quest.Assignment, error) {
	return e.quests.CompleteLesson(ctx, assignmentID, lessonID)
}

// Quest loads an assignment.
func (e *Engine) Quest(ctx context.Context, assignmentID string) (*quest.Assignment, error) {
	return e.quests.Get(ctx, assignmentID)
}

// QuestHistory lists a student's assignments in a subject. An empty
// subject uses the student's current subject.
func (e *Engine) QuestHistory(ctx context.Context, studentID string, subject competency.Subject) ([]*quest.Assignment, error) {
	if subject == "" {
		st, err := e.quests.GetStudent(ctx, studentID)
		if err != nil {
			return nil, err
		}
		subject = st.Subject
	}
	return e.quests.History(ctx, studentID, subject)
}

// SelectTier records a parent or tutor tier choice.
func (e *Engine) SelectTier(ctx context.Context, studentID string, tier placement.Tier) (*quest.Student, error) {
	return e.quests.SelectTier(ctx, studentID, tier)
}

// Student loads a student profile.
func (e *Engine) Student(ctx context.Context, studentID string) (*quest.Student, error) {
	return e.quests.GetStudent(ctx, studentID)
}

// CurrentPath returns the student's active path in subject, regenerating
// it if the ledger changed since it was built. An empty subject uses the
// student's current subject.
func (e *Engine) CurrentPath(ctx context.Context, studentID string, subject competency.Subject) (*path.LearningPath, error) {
	st, err := e.quests.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("current path: student %q has no placement: %w", studentID, err)
		}
		return nil, err
	}
	if subject == "" {
		subject = st.Subject
	}
	if !subject.Valid() {
		return nil, fmt.Errorf("current path: unknown subject %q", subject)
	}
	return e.paths.CurrentPath(ctx, studentID, subject, st.Tier())
}
