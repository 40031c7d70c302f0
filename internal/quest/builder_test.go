package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/placement"
)

func defaultCatalog(t *testing.T) *competency.Catalog {
	t.Helper()
	cat, err := competency.Default()
	require.NoError(t, err)
	return cat
}

func TestBuild(t *testing.T) {
	b := NewQuestBuilder(defaultCatalog(t), 0)
	assert.Equal(t, QuestSize, b.Size())

	ids := []string{"math-multiplication-facts", "math-fractions-unit"}
	q, err := b.Build(placement.TierExplorers, ids)
	require.NoError(t, err)
	assert.Equal(t, competency.SubjectMath, q.Subject)
	assert.Equal(t, ids, q.Competencies)
	assert.Equal(t, []string{
		"math-multiplication-facts/learn", "math-multiplication-facts/challenge",
		"math-fractions-unit/learn", "math-fractions-unit/challenge",
	}, q.Lessons)
	assert.Equal(t, DifficultyWarmUp, q.Difficulty)
	assert.Equal(t, PolicyMastery, q.Policy)
	assert.Contains(t, q.Title, "Math Quest: ")
	assert.Contains(t, q.Title, "and 1 more skill")

	again, err := b.Build(placement.TierExplorers, ids)
	require.NoError(t, err)
	assert.Equal(t, q.ID, again.ID)

	other, err := b.Build(placement.TierExplorers, ids[:1])
	require.NoError(t, err)
	assert.NotEqual(t, q.ID, other.ID)
}

func TestBuild_Difficulty(t *testing.T) {
	b := NewQuestBuilder(defaultCatalog(t), 0)
	tests := []struct {
		ids  []string
		want Difficulty
	}{
		{[]string{"math-multiplication-facts"}, DifficultyWarmUp},
		{[]string{"math-equivalent-fractions"}, DifficultyOnLevel},
		{[]string{"math-volume"}, DifficultyStretch},
		{[]string{"math-multiplication-facts", "math-volume"}, DifficultyOnLevel},
	}
	for _, tt := range tests {
		q, err := b.Build(placement.TierExplorers, tt.ids)
		require.NoError(t, err)
		assert.Equal(t, tt.want, q.Difficulty, "%v", tt.ids)
	}
}

func TestBuild_Errors(t *testing.T) {
	b := NewQuestBuilder(defaultCatalog(t), 0)

	_, err := b.Build(placement.TierExplorers, nil)
	assert.Error(t, err)

	_, err = b.Build(placement.TierExplorers, []string{"math-nope"})
	assert.Error(t, err)

	reading := defaultCatalog(t).TopologicalOrder(competency.SubjectReading)
	require.NotEmpty(t, reading)
	_, err = b.Build(placement.TierExplorers, []string{"math-volume", reading[0].ID})
	assert.ErrorContains(t, err, "not math")
}

func TestPolicyFor(t *testing.T) {
	b := NewQuestBuilder(defaultCatalog(t), 2)
	assert.Equal(t, 2, b.Size())
	assert.Equal(t, PolicyLessons, b.PolicyFor(competency.SubjectWriting))
	assert.Equal(t, PolicyMastery, b.PolicyFor(competency.SubjectReading))
	b.SetPolicy(competency.SubjectReading, PolicyLessons)
	assert.Equal(t, PolicyLessons, b.PolicyFor(competency.SubjectReading))
}

func TestDifficulty_LessonXP(t *testing.T) {
	assert.Equal(t, 10, DifficultyWarmUp.LessonXP())
	assert.Equal(t, 15, DifficultyOnLevel.LessonXP())
	assert.Equal(t, 20, DifficultyStretch.LessonXP())
}
