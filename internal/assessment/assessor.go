package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/errs"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/platform/logger"
	"github.com/wowl-learning/wowl/internal/store"
)

// DefaultGraderTimeout bounds one call to the external grader.
const DefaultGraderTimeout = 30 * time.Second

// GradeRequest asks the grader to score the listed criteria.
type GradeRequest struct {
	Submission Submission
	Rubric     Rubric
	Criteria   []Criterion
}

// Grader scores criteria the rules cannot evaluate, typically anything
// that needs a look at an image or video.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (Grades, error)
}

// GraderFunc adapts a function to Grader.
type GraderFunc func(ctx context.Context, req GradeRequest) (Grades, error)

// Grade calls f.
func (f GraderFunc) Grade(ctx context.Context, req GradeRequest) (Grades, error) {
	return f(ctx, req)
}

// Repo is the slice of the store the Assessor needs.
type Repo interface {
	store.SubmissionRepo
	store.AssessmentRepo
}

// AssessorConfig holds the Assessor's collaborators.
type AssessorConfig struct {
	Engine        *Engine
	Rubrics       RubricProvider
	Repo          Repo
	Grader        Grader   // optional
	Recorder      Recorder // optional
	GraderTimeout time.Duration
	Logger        *logger.Logger
	Now           func() time.Time
}

// Recorder is told about every newly persisted assessment. A submission
// is marked assessed only after the recorder succeeds; when it fails, the
// same assessment is offered again on the next replay, so
// implementations must tolerate seeing an assessment ID twice.
type Recorder interface {
	RecordAssessment(ctx context.Context, a *Assessment) error
}

// Assessor enforces attempt ordering, calls the grader and persists
// assessments around the pure Engine.
type Assessor struct {
	engine  *Engine
	rubrics RubricProvider
	repo    Repo
	grader  Grader
	rec     Recorder
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewAssessor builds an Assessor, filling defaults for unset fields.
func NewAssessor(cfg AssessorConfig) *Assessor {
	a := &Assessor{
		engine:  cfg.Engine,
		rubrics: cfg.Rubrics,
		repo:    cfg.Repo,
		grader:  cfg.Grader,
		rec:     cfg.Recorder,
		timeout: cfg.GraderTimeout,
		log:     cfg.Logger,
		now:     cfg.Now,
	}
	if a.engine == nil {
		a.engine = NewEngine(DefaultPolicy())
	}
	if a.timeout <= 0 {
		a.timeout = DefaultGraderTimeout
	}
	if a.log == nil {
		a.log = logger.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Assess validates, stores and scores a submission. Replaying a
// submission that was already assessed returns the stored assessment;
// replaying one whose scoring or recording failed part way finishes it.
// When the grader cannot produce the grades the rubric needs, the
// submission is marked pending-review and a *errs.GraderTimeoutError is
// returned.
func (a *Assessor) Assess(ctx context.Context, sub Submission) (*Assessment, error) {
	if err := Validate(sub); err != nil {
		return nil, err
	}
	rubric, err := a.rubrics.RubricFor(sub.Type())
	if err != nil {
		return nil, err
	}

	if existing, err := a.repo.GetSubmission(ctx, sub.ID); err == nil {
		return a.replay(ctx, existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get submission: %w", err)
	}

	if err := a.checkOrdering(ctx, sub, rubric); err != nil {
		return nil, err
	}

	data, err := toSubmissionData(sub, store.SubmissionReceived)
	if err != nil {
		return nil, err
	}
	if err := a.repo.CreateSubmission(ctx, data); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errs.InvalidSubmission(sub.ID, "attempt %d already submitted for challenge %q", sub.AttemptNumber, sub.ChallengeID)
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}
	return a.score(ctx, sub, rubric)
}

// score grades a stored submission that has no assessment yet. A store
// failure leaves the submission received so a replay can finish it.
func (a *Assessor) score(ctx context.Context, sub Submission, rubric Rubric) (*Assessment, error) {
	var (
		grades Grades
		err    error
	)
	if pending := UnevaluatedCriteria(sub, rubric); len(pending) > 0 && a.grader != nil {
		grades, err = a.callGrader(ctx, GradeRequest{Submission: sub, Rubric: rubric, Criteria: pending})
		if err != nil {
			return nil, a.toReview(ctx, sub, err)
		}
	}

	prior, err := a.priorLevels(ctx, sub)
	if err != nil {
		return nil, err
	}
	result, err := a.engine.AssessWith(Input{
		Submission:  sub,
		Rubric:      rubric,
		Grades:      grades,
		AssessedBy:  AssessedByWowlAI,
		PriorLevels: prior,
	})
	if err != nil {
		return nil, a.toReview(ctx, sub, err)
	}
	if err := a.persist(ctx, result); err != nil {
		return nil, err
	}
	if err := a.finish(ctx, result); err != nil {
		return nil, err
	}
	a.log.Info("submission assessed",
		"submission_id", sub.ID,
		"student_id", sub.StudentID,
		"competency_id", sub.CompetencyID,
		"attempt", sub.AttemptNumber,
		"level", result.OverallMastery.String(),
		"confidence", result.ConfidenceScore,
		"allow_resubmission", result.AllowResubmission,
	)
	return result, nil
}

// Resolve records a tutor's assessment for a submission, usually one in
// pending-review. The tutor's grades take precedence over rule scores.
// Earlier assessments are kept unchanged.
func (a *Assessor) Resolve(ctx context.Context, submissionID string, grades Grades) (*Assessment, error) {
	data, err := a.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", submissionID, err)
	}
	sub, err := fromSubmissionData(*data)
	if err != nil {
		return nil, err
	}
	rubric, err := a.rubrics.RubricFor(sub.Type())
	if err != nil {
		return nil, err
	}
	prior, err := a.priorLevels(ctx, sub)
	if err != nil {
		return nil, err
	}
	result, err := a.engine.AssessWith(Input{
		Submission:  sub,
		Rubric:      rubric,
		Grades:      grades,
		AssessedBy:  AssessedByTutor,
		PriorLevels: prior,
	})
	if err != nil {
		if errors.Is(err, ErrNeedsReview) {
			return nil, errs.InvalidSubmission(submissionID, "tutor grades leave criteria unscored: %v", err)
		}
		return nil, err
	}
	if err := a.persist(ctx, result); err != nil {
		return nil, err
	}
	if err := a.finish(ctx, result); err != nil {
		return nil, err
	}
	a.log.Info("review resolved",
		"submission_id", submissionID,
		"level", result.OverallMastery.String(),
	)
	return result, nil
}

// PendingReviews lists submissions waiting for a tutor, oldest first.
func (a *Assessor) PendingReviews(ctx context.Context) ([]Submission, error) {
	rows, err := a.repo.ListSubmissionsByStatus(ctx, store.SubmissionPendingReview)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	out := make([]Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := fromSubmissionData(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (a *Assessor) replay(ctx context.Context, existing *store.SubmissionData) (*Assessment, error) {
	switch existing.Status {
	case store.SubmissionPendingReview:
		return nil, &errs.GraderTimeoutError{SubmissionID: existing.ID, Err: ErrNeedsReview}
	case store.SubmissionReceived:
		return a.resume(ctx, existing)
	}
	ad, err := a.repo.LatestAssessment(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("latest assessment for %s: %w", existing.ID, err)
	}
	return DecodeAssessment(*ad)
}

// resume finishes a submission left in received by an earlier failure.
// A stored assessment is recorded again; otherwise the work is scored.
func (a *Assessor) resume(ctx context.Context, data *store.SubmissionData) (*Assessment, error) {
	sub, err := fromSubmissionData(*data)
	if err != nil {
		return nil, err
	}
	rubric, err := a.rubrics.RubricFor(sub.Type())
	if err != nil {
		return nil, err
	}
	a.log.Info("resuming submission", "submission_id", sub.ID, "student_id", sub.StudentID)

	ad, err := a.repo.LatestAssessment(ctx, sub.ID)
	if errors.Is(err, store.ErrNotFound) {
		return a.score(ctx, sub, rubric)
	}
	if err != nil {
		return nil, fmt.Errorf("latest assessment for %s: %w", sub.ID, err)
	}
	result, err := DecodeAssessment(*ad)
	if err != nil {
		return nil, err
	}
	if err := a.finish(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// checkOrdering enforces the resubmission chain and the attempt policy.
func (a *Assessor) checkOrdering(ctx context.Context, sub Submission, rubric Rubric) error {
	prev, err := a.repo.LatestSubmission(ctx, sub.StudentID, sub.ChallengeID)
	if errors.Is(err, store.ErrNotFound) {
		if sub.AttemptNumber != 1 {
			return errs.InvalidSubmission(sub.ID, "attempt %d has no earlier attempt for challenge %q", sub.AttemptNumber, sub.ChallengeID)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest submission: %w", err)
	}

	if sub.AttemptNumber != prev.AttemptNumber+1 {
		return errs.InvalidSubmission(sub.ID, "attempt %d does not follow attempt %d", sub.AttemptNumber, prev.AttemptNumber)
	}
	if sub.PreviousAttemptID != prev.ID {
		return errs.InvalidSubmission(sub.ID, "previous attempt %q does not match latest attempt %q", sub.PreviousAttemptID, prev.ID)
	}

	limit := a.engine.MaxAttempts(rubric)
	if sub.AttemptNumber > limit {
		return &errs.PolicyViolationError{
			Policy:  "max-attempts",
			Message: fmt.Sprintf("You've used all %d tries for this challenge. Let's move on to the next one!", limit),
		}
	}
	if prev.Status == store.SubmissionReceived {
		prev.Status = store.SubmissionAssessed
		if _, err := a.resume(ctx, prev); errors.Is(err, errs.ErrGraderTimeout) {
			prev.Status = store.SubmissionPendingReview
		} else if err != nil {
			return fmt.Errorf("finish attempt %d: %w", prev.AttemptNumber, err)
		}
	}
	if prev.Status == store.SubmissionPendingReview {
		return &errs.PolicyViolationError{
			Policy:  "awaiting-review",
			Message: "Your last try is still being reviewed. Check back soon!",
		}
	}
	last, err := a.repo.LatestAssessment(ctx, prev.ID)
	if err != nil {
		return fmt.Errorf("latest assessment for %s: %w", prev.ID, err)
	}
	if !last.AllowResubmission {
		return &errs.PolicyViolationError{
			Policy:  "resubmission-closed",
			Message: "This challenge is finished. Let's move on to the next one!",
		}
	}
	return nil
}

// callGrader runs the grader under a timeout. Panics are recovered and
// reported as errors.
func (a *Assessor) callGrader(ctx context.Context, req GradeRequest) (Grades, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		grades Grades
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("grader panic: %v", r)}
			}
		}()
		g, err := a.grader.Grade(ctx, req)
		done <- result{grades: g, err: err}
	}()

	select {
	case r := <-done:
		return r.grades, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Assessor) toReview(ctx context.Context, sub Submission, cause error) error {
	if err := a.repo.SetSubmissionStatus(ctx, sub.ID, store.SubmissionPendingReview); err != nil {
		return fmt.Errorf("mark %s pending review: %w", sub.ID, err)
	}
	a.log.Warn("submission sent to review",
		"submission_id", sub.ID,
		"student_id", sub.StudentID,
		"error", cause.Error(),
	)
	return &errs.GraderTimeoutError{SubmissionID: sub.ID, Err: cause}
}

func (a *Assessor) priorLevels(ctx context.Context, sub Submission) ([]mastery.Level, error) {
	rows, err := a.repo.ListAssessments(ctx, sub.StudentID, sub.CompetencyID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	var out []mastery.Level
	for _, r := range rows {
		if r.SubmissionID == sub.ID {
			continue
		}
		lvl, err := mastery.ParseLevel(r.OverallMastery)
		if err != nil {
			continue
		}
		out = append(out, lvl)
	}
	return out, nil
}

func (a *Assessor) persist(ctx context.Context, result *Assessment) error {
	result.ID = uuid.NewString()
	result.AssessedAt = a.now().UTC()
	data, err := EncodeAssessment(result)
	if err != nil {
		return err
	}
	if err := a.repo.PutAssessment(ctx, data); err != nil {
		return fmt.Errorf("put assessment: %w", err)
	}
	return nil
}

// finish hands a stored assessment to the recorder and only then marks
// its submission assessed.
func (a *Assessor) finish(ctx context.Context, result *Assessment) error {
	if a.rec != nil {
		if err := a.rec.RecordAssessment(ctx, result); err != nil {
			return fmt.Errorf("record assessment %s: %w", result.ID, err)
		}
	}
	if err := a.repo.SetSubmissionStatus(ctx, result.SubmissionID, store.SubmissionAssessed); err != nil {
		return fmt.Errorf("mark %s assessed: %w", result.SubmissionID, err)
	}
	return nil
}

// EncodeAssessment converts an assessment to its stored form.
func EncodeAssessment(a *Assessment) (store.AssessmentData, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return store.AssessmentData{}, fmt.Errorf("encode assessment: %w", err)
	}
	return store.AssessmentData{
		ID:                a.ID,
		SubmissionID:      a.SubmissionID,
		StudentID:         a.StudentID,
		CompetencyID:      a.CompetencyID,
		OverallMastery:    a.OverallMastery.String(),
		AllowResubmission: a.AllowResubmission,
		AssessedBy:        string(a.AssessedBy),
		AssessedAt:        a.AssessedAt,
		Payload:           payload,
	}, nil
}

// DecodeAssessment restores an assessment from its stored form.
func DecodeAssessment(d store.AssessmentData) (*Assessment, error) {
	var a Assessment
	if err := json.Unmarshal(d.Payload, &a); err != nil {
		return nil, fmt.Errorf("decode assessment %s: %w", d.ID, err)
	}
	return &a, nil
}

func toSubmissionData(sub Submission, status string) (store.SubmissionData, error) {
	content, err := MarshalContent(sub.Content)
	if err != nil {
		return store.SubmissionData{}, err
	}
	return store.SubmissionData{
		ID:                sub.ID,
		StudentID:         sub.StudentID,
		ChallengeID:       sub.ChallengeID,
		CompetencyID:      sub.CompetencyID,
		SkillLevel:        sub.SkillLevel.String(),
		Type:              string(sub.Type()),
		Content:           content,
		AttemptNumber:     sub.AttemptNumber,
		PreviousAttemptID: sub.PreviousAttemptID,
		Status:            status,
		SubmittedAt:       sub.SubmittedAt,
	}, nil
}

func fromSubmissionData(d store.SubmissionData) (Submission, error) {
	content, err := UnmarshalContent(d.Content)
	if err != nil {
		return Submission{}, fmt.Errorf("decode submission %s: %w", d.ID, err)
	}
	sub := Submission{
		ID:                d.ID,
		StudentID:         d.StudentID,
		ChallengeID:       d.ChallengeID,
		CompetencyID:      d.CompetencyID,
		Content:           content,
		AttemptNumber:     d.AttemptNumber,
		PreviousAttemptID: d.PreviousAttemptID,
		SubmittedAt:       d.SubmittedAt,
	}
	if d.SkillLevel != "" {
		g, err := competency.ParseGrade(d.SkillLevel)
		if err == nil {
			sub.SkillLevel = g
		}
	}
	return sub, nil
}
