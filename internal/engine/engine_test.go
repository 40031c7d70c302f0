package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowl-learning/wowl/internal/assessment"
	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/errs"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/notify"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/quest"
	"github.com/wowl-learning/wowl/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const strongText = "First I drew four groups of three apples. " +
	"Then I counted every apple because each group had the same number. " +
	"For example, four groups of three make twelve apples in all. " +
	"I checked my answer by adding three four times and got twelve again."

// recordingNotifier implements notify.Notifier for testing.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *recordingNotifier, assessment.RubricSet) {
	t.Helper()
	return newTestEngineWithRepo(t, store.NewMemoryStore())
}

func newTestEngineWithRepo(t *testing.T, repo store.Repository) (*Engine, *recordingNotifier, assessment.RubricSet) {
	t.Helper()
	cat, err := competency.Default()
	require.NoError(t, err)
	rubrics, err := assessment.DefaultRubrics()
	require.NoError(t, err)
	n := &recordingNotifier{}
	e, err := New(Config{
		Catalog:       cat,
		Rubrics:       rubrics,
		Repo:          repo,
		Notifier:      n,
		GraderTimeout: 50 * time.Millisecond,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return e, n, rubrics
}

func submission(competencyID string, content assessment.Content) assessment.Submission {
	return assessment.Submission{
		ID:            "sub-" + competencyID,
		StudentID:     "stu-1",
		ChallengeID:   "ch-" + competencyID,
		CompetencyID:  competencyID,
		SkillLevel:    3,
		Content:       content,
		AttemptNumber: 1,
		SubmittedAt:   fixedNow.Add(-time.Hour),
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestEndToEnd_Onboarding(t *testing.T) {
	e, notifier, _ := newTestEngine(t)
	ctx := context.Background()

	rec := e.RecommendTier(placement.Input{Age: 11, QuizScore: 82})
	assert.Equal(t, placement.TierExplorers, rec.RecommendedTier)
	assert.True(t, hasReason(rec.Reasoning, "readiness for the next grade level"), "%v", rec.Reasoning)

	got, err := e.AssignFirstQuestFromQuiz(ctx, "stu-1", quest.QuizResult{Age: 11, Score: 82})
	require.NoError(t, err)
	assert.Equal(t, rec, got.Recommendation)
	first := got.Assignment
	require.NotNil(t, first)
	assert.Equal(t, quest.SourcePlacementQuiz, first.AssignedBy)
	assert.Equal(t, quest.StatusAssigned, first.Status)
	require.NotEmpty(t, first.CompetenciesTargeted)
	for _, id := range first.CompetenciesTargeted {
		c, err := e.Catalog().Get(id)
		require.NoError(t, err)
		assert.True(t, placement.TierExplorers.Contains(c.Grade), id)
		ok, err := e.Ledger().MeetsGate(ctx, "stu-1", id, mastery.LevelProficient)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}

	// Master every targeted competency; the quest completes on the last one.
	for _, id := range first.CompetenciesTargeted {
		a, err := e.AssessSubmission(ctx, submission(id, assessment.TextContent{Text: strongText}))
		require.NoError(t, err)
		assert.Equal(t, mastery.LevelMastered, a.OverallMastery)
	}
	assert.Equal(t, []notify.Kind{
		notify.KindMastered,
		notify.KindMastered,
		notify.KindMastered,
		notify.KindQuestCompleted,
	}, notifier.kinds())

	done, err := e.Quest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusCompleted, done.Status)

	p, err := e.CurrentPath(ctx, "stu-1", "")
	require.NoError(t, err)
	assert.Equal(t, competency.SubjectMath, p.Subject)
	for _, id := range first.CompetenciesTargeted {
		assert.False(t, p.Contains(id), "%s should have left the path", id)
	}
	assert.Equal(t, 0, p.Cursor)

	next, err := e.AssignNextQuest(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, quest.SourceAutoProgression, next.AssignedBy)
	assert.Equal(t, p.Competencies[:len(next.CompetenciesTargeted)], next.CompetenciesTargeted)

	history, err := e.QuestHistory(ctx, "stu-1", "")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func hasReason(reasons []string, sub string) bool {
	for _, r := range reasons {
		if strings.Contains(r, sub) {
			return true
		}
	}
	return false
}

func TestAssessSubmission_ReplayDoesNotRecordTwice(t *testing.T) {
	e, notifier, _ := newTestEngine(t)
	ctx := context.Background()

	sub := submission("math-multiplication-facts", assessment.TextContent{Text: strongText})
	first, err := e.AssessSubmission(ctx, sub)
	require.NoError(t, err)
	again, err := e.AssessSubmission(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	records, err := e.Ledger().Records(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].AttemptCount)
	assert.Len(t, notifier.kinds(), 1)
}

func TestAssessSubmission_UnknownCompetency(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.AssessSubmission(context.Background(), submission("math-nope", assessment.TextContent{Text: strongText}))
	assert.Error(t, err)
}

func TestReviewQueue(t *testing.T) {
	e, _, rubrics := newTestEngine(t)
	ctx := context.Background()

	sub := submission("math-area-perimeter", assessment.ImageContent{
		URL:     "https://cdn.example.com/garden.png",
		Caption: "My garden is 4 by 3 so the area is 12.",
	})
	_, err := e.AssessSubmission(ctx, sub)
	require.Error(t, err)
	var timeout *errs.GraderTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, "Wowl is reviewing your work. Check back soon!", timeout.UserMessage())

	pending, err := e.PendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, sub.ID, pending[0].ID)

	best, err := e.Ledger().BestKnownLevel(ctx, "stu-1", "math-area-perimeter")
	require.NoError(t, err)
	assert.Equal(t, mastery.LevelEmerging, best)

	rubric, err := rubrics.RubricFor(assessment.TypeImage)
	require.NoError(t, err)
	grades := make(assessment.Grades)
	for _, c := range rubric.Criteria {
		grades[c.ID] = assessment.CriterionGrade{
			Score:       4,
			Observation: fmt.Sprintf("Clear work on %s.", strings.ToLower(c.Name)),
			Confidence:  1,
		}
	}
	a, err := e.ResolveReview(ctx, sub.ID, grades)
	require.NoError(t, err)
	assert.Equal(t, assessment.AssessedByTutor, a.AssessedBy)
	assert.Equal(t, mastery.LevelAdvanced, a.OverallMastery)

	best, err = e.Ledger().BestKnownLevel(ctx, "stu-1", "math-area-perimeter")
	require.NoError(t, err)
	assert.Equal(t, mastery.LevelAdvanced, best)

	pending, err = e.PendingReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSelectTierChangesPath(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AssignFirstQuestFromQuiz(ctx, "stu-1", quest.QuizResult{Age: 9, Score: 60})
	require.NoError(t, err)

	st, err := e.SelectTier(ctx, "stu-1", placement.TierWarriors)
	require.NoError(t, err)
	assert.Equal(t, placement.TierExplorers, st.RecommendedTier)

	p, err := e.CurrentPath(ctx, "stu-1", competency.SubjectMath)
	require.NoError(t, err)
	assert.Equal(t, placement.TierWarriors, p.Tier)
	for _, id := range p.Competencies {
		c, err := e.Catalog().Get(id)
		require.NoError(t, err)
		assert.True(t, placement.TierWarriors.Contains(c.Grade))
	}
}

func TestCurrentPath_UnknownStudent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CurrentPath(context.Background(), "ghost", competency.SubjectMath)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQuestStartsOnFirstChallenge(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	got, err := e.AssignFirstQuestFromQuiz(ctx, "stu-1", quest.QuizResult{Age: 11, Score: 82})
	require.NoError(t, err)
	first := got.Assignment
	require.Equal(t, quest.StatusAssigned, first.Status)
	target := first.CompetenciesTargeted[0]

	a, err := e.AssessSubmission(ctx, assessment.Submission{
		ID:            "sub-warmup",
		StudentID:     "stu-1",
		ChallengeID:   "ch-warmup",
		CompetencyID:  target,
		SkillLevel:    4,
		Content:       assessment.TextContent{Text: "i think it is twelve"},
		AttemptNumber: 1,
		SubmittedAt:   fixedNow.Add(-2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Less(t, a.OverallMastery, mastery.LevelProficient)

	started, err := e.Quest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.True(t, started.StartedAt.Equal(fixedNow))

	for _, id := range first.CompetenciesTargeted {
		_, err := e.AssessSubmission(ctx, submission(id, assessment.TextContent{Text: strongText}))
		require.NoError(t, err)
	}
	done, err := e.Quest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusCompleted, done.Status)
	assert.True(t, done.StartedAt.Equal(fixedNow))
}

func TestQuestStartsWhenWorkGoesToReview(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	got, err := e.AssignFirstQuestFromQuiz(ctx, "stu-1", quest.QuizResult{Age: 11, Score: 82})
	require.NoError(t, err)
	first := got.Assignment

	_, err = e.AssessSubmission(ctx, submission(first.CompetenciesTargeted[1], assessment.ImageContent{
		URL: "https://cdn.example.com/array.png",
	}))
	require.ErrorIs(t, err, errs.ErrGraderTimeout)

	started, err := e.Quest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusInProgress, started.Status)
}

// flakyMasteryRepo fails the next failures calls to UpdateMastery.
type flakyMasteryRepo struct {
	*store.MemoryStore
	failures int
}

func (r *flakyMasteryRepo) UpdateMastery(ctx context.Context, studentID, competencyID string, fn func(cur *store.MasteryData) (store.MasteryData, error)) (*store.MasteryData, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("db blip")
	}
	return r.MemoryStore.UpdateMastery(ctx, studentID, competencyID, fn)
}

func TestAssessSubmission_LedgerFailureIsRetried(t *testing.T) {
	repo := &flakyMasteryRepo{MemoryStore: store.NewMemoryStore(), failures: 1}
	e, _, _ := newTestEngineWithRepo(t, repo)
	ctx := context.Background()

	sub := submission("math-multiplication-facts", assessment.TextContent{Text: strongText})
	_, err := e.AssessSubmission(ctx, sub)
	require.ErrorContains(t, err, "db blip")

	best, err := e.Ledger().BestKnownLevel(ctx, "stu-1", sub.CompetencyID)
	require.NoError(t, err)
	assert.Equal(t, mastery.LevelEmerging, best)

	a, err := e.AssessSubmission(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, mastery.LevelMastered, a.OverallMastery)

	best, err = e.Ledger().BestKnownLevel(ctx, "stu-1", sub.CompetencyID)
	require.NoError(t, err)
	assert.Equal(t, mastery.LevelMastered, best)

	_, err = e.AssessSubmission(ctx, sub)
	require.NoError(t, err)
	records, err := e.Ledger().Records(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].AttemptCount)
}
