package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wowl-learning/wowl/internal/competency"
)

func grade(g competency.Grade) *competency.Grade { return &g }

func TestCalculateGradeLevel(t *testing.T) {
	tests := []struct {
		score float64
		base  competency.Grade
		want  competency.Grade
	}{
		{85, 4, 5},
		{45, 4, 3},
		{65, 4, 4},
		{80, 4, 5},
		{79.9, 4, 4},
		{50, 4, 4},
		{49.9, 4, 3},
		{100, 12, 12},
		{0, competency.GradePreK, competency.GradePreK},
		{90, competency.GradeK, 1},
		{10, competency.GradeK, competency.GradePreK},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateGradeLevel(tt.score, tt.base), "score=%v base=%s", tt.score, tt.base)
	}
}

func TestRecommendTier_Idempotent(t *testing.T) {
	in := Input{EstimatedGrade: grade(4), Age: 9, QuizScore: 65}
	a := RecommendTier(in)
	b := RecommendTier(in)
	assert.Equal(t, a, b)
	assert.Equal(t, TierExplorers, a.RecommendedTier)
	assert.Equal(t, competency.Grade(4), a.StartingGrade)
	assert.Equal(t, 90, a.Confidence)
	assert.Equal(t, []string{
		"Age 9 fits the Explorers tier",
		"Quiz score of 65 confirms grade 4",
	}, a.Reasoning)
}

func TestRecommendTier_OnboardingExample(t *testing.T) {
	r := RecommendTier(Input{Age: 11, QuizScore: 82})
	assert.Equal(t, TierExplorers, r.RecommendedTier)
	assert.Equal(t, competency.Grade(5), r.StartingGrade)
	assert.Equal(t, 90, r.Confidence)
	assert.Equal(t, []string{
		"Age 11 fits the Explorers tier",
		"Quiz score of 82 indicates readiness for the next grade level (grade 6)",
		"Grade 6 is above the Explorers tier, so we start at its top grade 5",
	}, r.Reasoning)
}

func TestRecommendTier_Confidence(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		tier       Tier
		start      competency.Grade
		confidence int
	}{
		{"grade only", Input{EstimatedGrade: grade(4), QuizScore: 85}, TierExplorers, 5, 90},
		{"nothing known", Input{QuizScore: 60}, TierExplorers, 3, 70},
		{"young and far ahead", Input{EstimatedGrade: grade(7), Age: 6, QuizScore: 30}, TierEarlyExplorers, 2, 45},
		{"quiz one band up", Input{EstimatedGrade: grade(6), Age: 11, QuizScore: 85}, TierExplorers, 5, 90},
		{"estimate off by two", Input{EstimatedGrade: grade(5), Age: 8, QuizScore: 60}, TierExplorers, 5, 80},
		{"struggling warrior", Input{EstimatedGrade: grade(6), Age: 12, QuizScore: 20}, TierWarriors, 6, 90},
		{"kindergartener", Input{Age: 5, QuizScore: 90}, TierEarlyExplorers, 1, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RecommendTier(tt.in)
			assert.Equal(t, tt.tier, r.RecommendedTier)
			assert.Equal(t, tt.start, r.StartingGrade)
			assert.Equal(t, tt.confidence, r.Confidence)
			assert.NotEmpty(t, r.Reasoning)
			assert.True(t, r.RecommendedTier.Contains(r.StartingGrade))
		})
	}
}

func TestTierForAge(t *testing.T) {
	assert.Equal(t, TierEarlyExplorers, TierForAge(4))
	assert.Equal(t, TierEarlyExplorers, TierForAge(7))
	assert.Equal(t, TierExplorers, TierForAge(8))
	assert.Equal(t, TierExplorers, TierForAge(11))
	assert.Equal(t, TierWarriors, TierForAge(12))
}

func TestTierBands(t *testing.T) {
	lo, hi := TierEarlyExplorers.Band()
	assert.Equal(t, competency.GradePreK, lo)
	assert.Equal(t, competency.Grade(2), hi)
	for _, tier := range AllTiers() {
		lo, hi := tier.Band()
		assert.Equal(t, tier, TierForGrade(lo))
		assert.Equal(t, tier, TierForGrade(hi))
	}
}

func TestParseTier(t *testing.T) {
	got, err := ParseTier(" Warriors ")
	assert.NoError(t, err)
	assert.Equal(t, TierWarriors, got)
	_, err = ParseTier("ninjas")
	assert.Error(t, err)
}

func TestGradeForAge(t *testing.T) {
	assert.Equal(t, competency.GradePreK, GradeForAge(4))
	assert.Equal(t, competency.GradeK, GradeForAge(5))
	assert.Equal(t, competency.Grade(4), GradeForAge(9))
	assert.Equal(t, competency.Grade(5), GradeForAge(10))
	assert.Equal(t, competency.Grade(5), GradeForAge(11))
	assert.Equal(t, competency.Grade(6), GradeForAge(12))
	assert.Equal(t, competency.Grade(8), GradeForAge(14))
}

func TestTierForAge_MatchesUsualGrade(t *testing.T) {
	for age := 3; age <= 16; age++ {
		assert.Equal(t, TierForGrade(GradeForAge(age)), TierForAge(age), "age %d", age)
	}
}

func TestRecommendTier_MultiBandSplitIsExplained(t *testing.T) {
	r := RecommendTier(Input{Age: 7, EstimatedGrade: grade(5), QuizScore: 95})
	assert.Equal(t, TierEarlyExplorers, r.RecommendedTier)
	assert.Equal(t, competency.Grade(2), r.StartingGrade)
	assert.Equal(t, 45, r.Confidence)
	assert.Contains(t, r.Reasoning, "Age 7 usually means grade 2 but the quiz points to grade 6")
}
