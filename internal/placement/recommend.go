package placement

import (
	"fmt"

	"github.com/wowl-learning/wowl/internal/competency"
)

// Quiz score thresholds for grade adjustment.
const (
	AdvanceScore = 80.0
	HoldScore    = 50.0
)

const (
	baseConfidence       = 90
	multiBandPenalty     = 35
	estimateGapPenalty   = 10
	estimateGapTolerance = 1
	unknownBasePenalty   = 20
	minConfidence        = 10
)

// CalculateGradeLevel adjusts base by the quiz score: >= 80 moves up a
// grade, < 50 moves down one, anything else keeps it. The result is
// clamped to PreK..12.
func CalculateGradeLevel(score float64, base competency.Grade) competency.Grade {
	switch {
	case score >= AdvanceScore:
		return (base + 1).Clamp()
	case score < HoldScore:
		return (base - 1).Clamp()
	default:
		return base.Clamp()
	}
}

// Input is what placement knows about a new student. Age 0 means unknown;
// a nil EstimatedGrade means the family did not give one.
type Input struct {
	EstimatedGrade *competency.Grade
	Age            int
	QuizScore      float64
}

// Recommendation is a derived starting point. It is recomputable from
// Input at any time and never the source of truth for the student's tier.
type Recommendation struct {
	RecommendedTier Tier             `json:"recommended_tier"`
	StartingGrade   competency.Grade `json:"starting_grade"`
	Confidence      int              `json:"confidence"`
	Reasoning       []string         `json:"reasoning"`
}

// RecommendTier is a pure function of in. Reasons are appended in the
// order the rules fire, so identical input yields an identical list.
func RecommendTier(in Input) Recommendation {
	var (
		reasons    []string
		confidence = baseConfidence
		tier       Tier
		base       competency.Grade
	)

	ageKnown := in.Age > 0
	ageGrade := GradeForAge(in.Age)

	switch {
	case in.EstimatedGrade != nil:
		base = in.EstimatedGrade.Clamp()
	case ageKnown:
		base = ageGrade
	default:
		base = 3
		confidence -= unknownBasePenalty
		reasons = append(reasons, "No age or grade given, so we started from grade 3")
	}

	if ageKnown {
		tier = TierForAge(in.Age)
		reasons = append(reasons, fmt.Sprintf("Age %d fits the %s tier", in.Age, tier.DisplayName()))
	} else {
		tier = TierForGrade(base)
		reasons = append(reasons, fmt.Sprintf("Grade %s fits the %s tier", base, tier.DisplayName()))
	}

	quizGrade := CalculateGradeLevel(in.QuizScore, base)
	switch {
	case quizGrade > base:
		reasons = append(reasons, fmt.Sprintf("Quiz score of %.0f indicates readiness for the next grade level (grade %s)", in.QuizScore, quizGrade))
	case quizGrade < base:
		reasons = append(reasons, fmt.Sprintf("Quiz score of %.0f suggests reviewing grade %s skills first", in.QuizScore, quizGrade))
	default:
		reasons = append(reasons, fmt.Sprintf("Quiz score of %.0f confirms grade %s", in.QuizScore, quizGrade))
	}

	if ageKnown {
		// Neighboring bands are normal for a strong or struggling student;
		// only a wider split lowers confidence.
		gap := TierForGrade(ageGrade).rank() - TierForGrade(quizGrade).rank()
		if gap < 0 {
			gap = -gap
		}
		if gap > 1 {
			confidence -= multiBandPenalty
			reasons = append(reasons, fmt.Sprintf("Age %d usually means grade %s but the quiz points to grade %s", in.Age, ageGrade, quizGrade))
		}

		if in.EstimatedGrade != nil {
			d := int(*in.EstimatedGrade - ageGrade)
			if d > estimateGapTolerance || d < -estimateGapTolerance {
				confidence -= estimateGapPenalty
				reasons = append(reasons, fmt.Sprintf("Estimated grade %s differs from the usual grade %s for age %d", *in.EstimatedGrade, ageGrade, in.Age))
			}
		}
	}

	start := quizGrade
	lo, hi := tier.Band()
	switch {
	case start < lo:
		start = lo
		reasons = append(reasons, fmt.Sprintf("Grade %s is below the %s tier, so we start at its first grade %s", quizGrade, tier.DisplayName(), start))
	case start > hi:
		start = hi
		reasons = append(reasons, fmt.Sprintf("Grade %s is above the %s tier, so we start at its top grade %s", quizGrade, tier.DisplayName(), start))
	}

	if confidence < minConfidence {
		confidence = minConfidence
	}
	return Recommendation{
		RecommendedTier: tier,
		StartingGrade:   start,
		Confidence:      confidence,
		Reasoning:       reasons,
	}
}
