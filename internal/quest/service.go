package quest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/notify"
	"github.com/wowl-learning/wowl/internal/path"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/platform/logger"
	"github.com/wowl-learning/wowl/internal/store"
)

// Paths is the learning-path side the service composes with;
// *path.Service implements it.
type Paths interface {
	Regenerate(ctx context.Context, studentID string, subject competency.Subject, tier placement.Tier) (*path.LearningPath, error)
	Advance(ctx context.Context, p *path.LearningPath, n int) error
}

// Gate answers mastery questions; *mastery.Ledger implements it.
type Gate interface {
	MeetsGate(ctx context.Context, studentID, competencyID string, min mastery.Level) (bool, error)
}

// Repo is the persistence the service needs.
type Repo interface {
	store.StudentRepo
	store.AssignmentRepo
}

// QuizResult is the outcome of the placement quiz. A zero Subject means math.
type QuizResult struct {
	Age            int
	EstimatedGrade *competency.Grade
	Score          float64
	Subject        competency.Subject
}

// OverrideRequest asks for a specific quest outside path order.
type OverrideRequest struct {
	By            Source
	Subject       competency.Subject
	CompetencyIDs []string
	Title         string
}

// Placement is the result of onboarding a student.
type Placement struct {
	Recommendation placement.Recommendation `json:"recommendation"`
	Student        *Student                 `json:"student"`
	Assignment     *Assignment              `json:"assignment,omitempty"`
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Repo     Repo
	Paths    Paths
	Gate     Gate
	Builder  *QuestBuilder
	Notifier notify.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service creates and advances quest assignments.
type Service struct {
	students store.StudentRepo
	repo     store.AssignmentRepo
	paths    Paths
	gate     Gate
	builder  *QuestBuilder
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a quest service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		students: cfg.Repo,
		repo:     cfg.Repo,
		paths:    cfg.Paths,
		gate:     cfg.Gate,
		builder:  cfg.Builder,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AssignFirstQuestFromQuiz places the student from the quiz result and
// assigns the first quest of the resulting path. Calling it again for
// the same student and subject returns the original assignment.
// When the tier is already complete, Assignment is nil.
func (s *Service) AssignFirstQuestFromQuiz(ctx context.Context, studentID string, quiz QuizResult) (*Placement, error) {
	if studentID == "" {
		return nil, fmt.Errorf("assign first quest: empty student id")
	}
	subject := quiz.Subject
	if subject == "" {
		subject = competency.SubjectMath
	}
	if !subject.Valid() {
		return nil, fmt.Errorf("assign first quest: unknown subject %q", subject)
	}
	if quiz.Score < 0 || quiz.Score > 100 {
		return nil, fmt.Errorf("assign first quest: quiz score %g outside 0..100", quiz.Score)
	}

	rec := placement.RecommendTier(placement.Input{
		EstimatedGrade: quiz.EstimatedGrade,
		Age:            quiz.Age,
		QuizScore:      quiz.Score,
	})

	now := s.now().UTC()
	st, err := s.GetStudent(ctx, studentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		st = &Student{ID: studentID, CreatedAt: now}
	case err != nil:
		return nil, err
	}
	st.Age = quiz.Age
	st.EstimatedGrade = quiz.EstimatedGrade
	st.Subject = subject
	st.RecommendedTier = rec.RecommendedTier
	st.UpdatedAt = now
	if err := s.putStudent(ctx, st); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("placement:%s:%s", studentID, subject)
	if existing, err := s.repo.GetAssignmentByKey(ctx, key); err == nil {
		return &Placement{Recommendation: rec, Student: st, Assignment: fromData(existing)}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("assign first quest: %w", err)
	}

	p, err := s.paths.Regenerate(ctx, studentID, subject, st.Tier())
	if err != nil {
		return nil, fmt.Errorf("assign first quest: %w", err)
	}
	if p.TierComplete() {
		return &Placement{Recommendation: rec, Student: st}, nil
	}

	a, err := s.assignFromPath(ctx, p, nil, SourcePlacementQuiz, key)
	if err != nil {
		return nil, fmt.Errorf("assign first quest: %w", err)
	}
	s.log.Info("first quest assigned",
		"student_id", studentID,
		"tier", st.Tier(),
		"confidence", rec.Confidence,
		"quest_id", a.QuestID)
	return &Placement{Recommendation: rec, Student: st, Assignment: a}, nil
}

// AssignNextQuest returns the student's open assignment if one is still
// in flight. Otherwise it regenerates the path from the ledger and
// assigns the next quest from it. ErrTierComplete means nothing is left.
func (s *Service) AssignNextQuest(ctx context.Context, studentID string) (*Assignment, error) {
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	open, err := s.RefreshCompletion(ctx, studentID, st.Subject)
	if err != nil {
		return nil, err
	}
	if open != nil && open.Open() {
		return open, nil
	}

	history, err := s.history(ctx, studentID, st.Subject)
	if err != nil {
		return nil, err
	}
	p, err := s.paths.Regenerate(ctx, studentID, st.Subject, st.Tier())
	if err != nil {
		return nil, fmt.Errorf("assign next quest: %w", err)
	}
	if p.TierComplete() {
		return nil, ErrTierComplete
	}

	prev := "none"
	if n := len(history); n > 0 {
		prev = history[n-1].ID
	}
	key := fmt.Sprintf("auto:%s:%s:%s", studentID, st.Subject, prev)
	a, err := s.assignFromPath(ctx, p, history, SourceAutoProgression, key)
	if err != nil {
		return nil, fmt.Errorf("assign next quest: %w", err)
	}
	s.log.Info("next quest assigned", "student_id", studentID, "quest_id", a.QuestID, "after", prev)
	return a, nil
}

// assignFromPath bundles the next path entries that no earlier quest
// targeted. When every remaining entry was already targeted, the front
// of the path is handed out again. The path cursor moves past the
// leading entries that are now assigned.
func (s *Service) assignFromPath(ctx context.Context, p *path.LearningPath, history []*Assignment, by Source, key string) (*Assignment, error) {
	targeted := make(map[string]bool)
	for _, h := range history {
		if h.SupersededBy != "" {
			continue
		}
		for _, id := range h.CompetenciesTargeted {
			targeted[id] = true
		}
	}

	var picked []string
	for _, id := range p.Competencies {
		if len(picked) == s.builder.Size() {
			break
		}
		if !targeted[id] {
			picked = append(picked, id)
		}
	}
	if len(picked) == 0 {
		picked = slices.Clone(p.Competencies[:min(s.builder.Size(), len(p.Competencies))])
	}
	for _, id := range picked {
		targeted[id] = true
	}

	q, err := s.builder.Build(p.Tier, picked)
	if err != nil {
		return nil, err
	}
	a, err := s.create(ctx, p.StudentID, q, by, "", key)
	if err != nil {
		return nil, err
	}

	cursor := 0
	for cursor < len(p.Competencies) && targeted[p.Competencies[cursor]] {
		cursor++
	}
	if err := s.paths.Advance(ctx, p, cursor); err != nil {
		s.log.Warn("path cursor not saved", "student_id", p.StudentID, "error", err)
	}
	return a, nil
}

func (s *Service) create(ctx context.Context, studentID string, q Quest, by Source, title, key string) (*Assignment, error) {
	if title == "" {
		title = q.Title
	}
	a := &Assignment{
		ID:                   uuid.NewString(),
		StudentID:            studentID,
		Subject:              q.Subject,
		QuestID:              q.ID,
		QuestTitle:           title,
		Status:               StatusAssigned,
		CompetenciesTargeted: q.Competencies,
		Lessons:              q.Lessons,
		Difficulty:           q.Difficulty,
		CompletionPolicy:     q.Policy,
		AssignedBy:           by,
		AssignedAt:           s.now().UTC(),
	}
	if err := s.repo.CreateAssignment(ctx, toData(a, key)); err != nil {
		if errors.Is(err, store.ErrDuplicate) && key != "" {
			// A concurrent request with the same key won.
			existing, gerr := s.repo.GetAssignmentByKey(ctx, key)
			if gerr != nil {
				return nil, fmt.Errorf("load assignment %q: %w", key, gerr)
			}
			return fromData(existing), nil
		}
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	return a, nil
}

// Override assigns a quest chosen by a tutor, parent or Wowl, bypassing
// path order. The open assignment for the subject, if any, is superseded.
func (s *Service) Override(ctx context.Context, studentID string, req OverrideRequest) (*Assignment, error) {
	if !req.By.CanOverride() {
		return nil, fmt.Errorf("override: %q may not override quests", req.By)
	}
	if len(req.CompetencyIDs) == 0 {
		return nil, fmt.Errorf("override: no competencies")
	}
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	subject := req.Subject
	if subject == "" {
		subject = st.Subject
	}

	open, err := s.repo.OpenAssignment(ctx, studentID, string(subject))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("override: %w", err)
	}

	q, err := s.builder.Build(st.Tier(), req.CompetencyIDs)
	if err != nil {
		return nil, fmt.Errorf("override: %w", err)
	}
	if q.Subject != subject {
		return nil, fmt.Errorf("override: quest covers %s, not %s", q.Subject, subject)
	}
	a, err := s.create(ctx, studentID, q, req.By, req.Title, "")
	if err != nil {
		return nil, fmt.Errorf("override: %w", err)
	}

	if open != nil {
		open.SupersededBy = a.ID
		if err := s.repo.UpdateAssignment(ctx, *open); err != nil {
			return nil, fmt.Errorf("override: supersede %s: %w", open.ID, err)
		}
	}
	s.log.Info("quest overridden",
		"student_id", studentID,
		"by", req.By,
		"quest_id", a.QuestID,
		"superseded", open != nil)
	return a, nil
}

// Get loads an assignment.
func (s *Service) Get(ctx context.Context, assignmentID string) (*Assignment, error) {
	d, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment %q: %w", assignmentID, err)
	}
	return fromData(d), nil
}

// Start marks the assignment in progress.
func (s *Service) Start(ctx context.Context, assignmentID string) (*Assignment, error) {
	a, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := a.Start(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// CompleteLesson records a finished lesson and completes the quest when
// its policy is satisfied.
func (s *Service) CompleteLesson(ctx context.Context, assignmentID, lessonID string) (*Assignment, error) {
	a, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if _, err := a.CompleteLesson(lessonID, now); err != nil {
		return nil, err
	}
	done, err := s.satisfied(ctx, a)
	if err != nil {
		return nil, err
	}
	if done {
		if err := a.Complete(now); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	if done {
		s.completed(ctx, a)
	}
	return a, nil
}

// RefreshCompletion completes the open assignment for the subject if its
// policy is now satisfied, and returns it. It returns nil when nothing
// is open.
func (s *Service) RefreshCompletion(ctx context.Context, studentID string, subject competency.Subject) (*Assignment, error) {
	d, err := s.repo.OpenAssignment(ctx, studentID, string(subject))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open assignment: %w", err)
	}
	a := fromData(d)
	done, err := s.satisfied(ctx, a)
	if err != nil || !done {
		return a, err
	}
	if err := a.Complete(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.completed(ctx, a)
	return a, nil
}

// StartChallenge moves the open quest in subject to in-progress when it
// targets competencyID. It returns nil when no open quest does.
func (s *Service) StartChallenge(ctx context.Context, studentID string, subject competency.Subject, competencyID string) (*Assignment, error) {
	d, err := s.repo.OpenAssignment(ctx, studentID, string(subject))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open assignment: %w", err)
	}
	a := fromData(d)
	if !a.Targets(competencyID) {
		return nil, nil
	}
	if a.Status == StatusInProgress {
		return a, nil
	}
	if err := a.Start(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.log.Debug("quest started by challenge", "assignment_id", a.ID, "competency_id", competencyID)
	return a, nil
}

// History returns a student's assignments in a subject, oldest first.
func (s *Service) History(ctx context.Context, studentID string, subject competency.Subject) ([]*Assignment, error) {
	return s.history(ctx, studentID, subject)
}

func (s *Service) history(ctx context.Context, studentID string, subject competency.Subject) ([]*Assignment, error) {
	rows, err := s.repo.ListAssignments(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	var out []*Assignment
	for i := range rows {
		if rows[i].Subject == string(subject) {
			out = append(out, fromData(&rows[i]))
		}
	}
	return out, nil
}

func (s *Service) satisfied(ctx context.Context, a *Assignment) (bool, error) {
	if a.Status == StatusCompleted {
		return false, nil
	}
	if a.CompletionPolicy == PolicyLessons {
		return a.LessonsDone(), nil
	}
	for _, id := range a.CompetenciesTargeted {
		ok, err := s.gate.MeetsGate(ctx, a.StudentID, id, mastery.LevelProficient)
		if err != nil {
			return false, fmt.Errorf("check mastery of %s: %w", id, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) save(ctx context.Context, a *Assignment) error {
	if err := s.repo.UpdateAssignment(ctx, toData(a, "")); err != nil {
		return fmt.Errorf("update assignment %s: %w", a.ID, err)
	}
	return nil
}

func (s *Service) completed(ctx context.Context, a *Assignment) {
	s.log.Info("quest completed", "student_id", a.StudentID, "quest_id", a.QuestID, "xp", a.XPEarned)
	err := s.notifier.Notify(ctx, notify.Event{
		Kind:         notify.KindQuestCompleted,
		StudentID:    a.StudentID,
		AssignmentID: a.ID,
		QuestID:      a.QuestID,
		QuestTitle:   a.QuestTitle,
		XPEarned:     a.XPEarned,
		At:           *a.CompletedAt,
	})
	if err != nil {
		s.log.Warn("quest milestone not delivered", "assignment_id", a.ID, "error", err)
	}
}
