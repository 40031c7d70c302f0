// Package assessment scores student submissions against rubrics and
// decides whether a resubmission is offered.
//
// Engine is a pure function of (submission, rubric, grades). Assessor
// wraps it with the impure parts: attempt ordering, persistence and the
// external grader.
package assessment

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wowl-learning/wowl/internal/errs"
	"github.com/wowl-learning/wowl/internal/mastery"
)

// DefaultMaxAttempts is the resubmission limit when neither config nor
// the rubric sets one.
const DefaultMaxAttempts = 3

// ErrNeedsReview means a required criterion, or every criterion, could
// not be evaluated. The submission has to go to a tutor.
var ErrNeedsReview = errors.New("assessment needs human review")

// AssessedBy identifies who produced an assessment.
type AssessedBy string

const (
	AssessedByWowlAI AssessedBy = "wowl-ai"
	AssessedByTutor  AssessedBy = "tutor"
)

// CriterionGrade is an externally supplied score for one criterion, from
// the grader or a tutor.
type CriterionGrade struct {
	Score       float64 `json:"score"` // 1..5
	Observation string  `json:"observation"`
	Strength    string  `json:"strength,omitempty"`
	Improvement string  `json:"improvement,omitempty"`
	Confidence  float64 `json:"confidence"` // 0..1
}

// Grades maps criterion ID to an external grade.
type Grades map[string]CriterionGrade

// Assessment is the immutable result of scoring one submission. A tutor
// override produces a new Assessment rather than editing this one.
type Assessment struct {
	ID                  string         `json:"id"`
	SubmissionID        string         `json:"submission_id"`
	StudentID           string         `json:"student_id"`
	CompetencyID        string         `json:"competency_id"`
	AttemptNumber       int            `json:"attempt_number"`
	OverallMastery      mastery.Level  `json:"overall_mastery"`
	Score               float64        `json:"score"`
	Feedback            Feedback       `json:"feedback"`
	StrengthsIdentified []string       `json:"strengths_identified"`
	GrowthAreas         []string       `json:"growth_areas"`
	NeedsReview         []string       `json:"needs_review,omitempty"`
	ConfidenceScore     int            `json:"confidence_score"`
	AllowResubmission   bool           `json:"allow_resubmission"`
	TargetMasteryLevel  *mastery.Level `json:"target_mastery_level,omitempty"`
	AssessedBy          AssessedBy     `json:"assessed_by"`
	AssessedAt          time.Time      `json:"assessed_at"`
}

// Policy holds tunable decision constants.
type Policy struct {
	MaxAttempts int
}

// DefaultPolicy returns the policy with DefaultMaxAttempts.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts}
}

// Engine scores submissions. It performs no I/O.
type Engine struct {
	Policy Policy
}

// NewEngine creates an engine with the given policy.
func NewEngine(p Policy) *Engine {
	return &Engine{Policy: p}
}

// MaxAttempts returns the effective attempt limit for a rubric.
func (e *Engine) MaxAttempts(r Rubric) int {
	if r.MaxAttempts > 0 {
		return r.MaxAttempts
	}
	if e.Policy.MaxAttempts > 0 {
		return e.Policy.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Input is everything one scoring run depends on.
type Input struct {
	Submission Submission
	Rubric     Rubric
	Grades     Grades
	AssessedBy AssessedBy
	// PriorLevels are the overall levels of earlier attempts on the same
	// competency, oldest first. They only shape the feedback opening.
	PriorLevels []mastery.Level
}

// Assess scores sub against rubric, using grades for criteria the rules
// cannot evaluate.
func (e *Engine) Assess(sub Submission, rubric Rubric, grades Grades) (*Assessment, error) {
	return e.AssessWith(Input{Submission: sub, Rubric: rubric, Grades: grades, AssessedBy: AssessedByWowlAI})
}

// UnevaluatedCriteria returns the criteria of rubric that rules cannot
// score for sub, i.e. those that need an external grade.
func UnevaluatedCriteria(sub Submission, rubric Rubric) []Criterion {
	text := Text(sub.Content)
	var out []Criterion
	for _, c := range rubric.Criteria {
		if _, ok := evaluateRule(c, text); !ok {
			out = append(out, c)
		}
	}
	return out
}

type scored struct {
	criterion  Criterion
	score      float64
	confidence float64
	point      FeedbackPoint
}

// AssessWith runs the full scoring pipeline. A tutor's grades take
// precedence over rule scores; the AI's grades only fill gaps.
func (e *Engine) AssessWith(in Input) (*Assessment, error) {
	sub, rubric := in.Submission, in.Rubric
	if err := Validate(sub); err != nil {
		return nil, err
	}
	if err := rubric.Validate(); err != nil {
		return nil, err
	}
	if rubric.ChallengeType != "" && rubric.ChallengeType != sub.Type() {
		return nil, errs.Configuration(fmt.Sprintf("rubric %q", rubric.ChallengeType),
			"rubric does not apply to %q submissions", sub.Type())
	}
	by := in.AssessedBy
	if by == "" {
		by = AssessedByWowlAI
	}

	text := Text(sub.Content)
	var (
		results     []scored
		needsReview []Criterion
	)
	for _, c := range rubric.Criteria {
		g, graded := in.Grades[c.ID]
		if graded && by == AssessedByTutor {
			results = append(results, fromGrade(c, g))
			continue
		}
		if r, ok := evaluateRule(c, text); ok {
			results = append(results, scored{
				criterion:  c,
				score:      r.Score,
				confidence: 1,
				point: FeedbackPoint{
					CriterionID: c.ID,
					Observation: r.Observation,
					Strength:    r.Strength,
					Improvement: r.Improvement,
				},
			})
			continue
		}
		if graded {
			results = append(results, fromGrade(c, g))
			continue
		}
		if c.Required {
			return nil, fmt.Errorf("criterion %q: %w", c.ID, ErrNeedsReview)
		}
		needsReview = append(needsReview, c)
	}
	if len(results) == 0 {
		return nil, ErrNeedsReview
	}

	var weighted, evaluatedWeight, confWeighted float64
	for _, r := range results {
		weighted += r.score * r.criterion.Weight
		evaluatedWeight += r.criterion.Weight
		confWeighted += r.confidence * r.criterion.Weight
	}
	score := weighted / evaluatedWeight
	overall := mastery.FromScore(score)
	coverage := evaluatedWeight / rubric.TotalWeight()
	graderConf := confWeighted / evaluatedWeight

	a := &Assessment{
		SubmissionID:    sub.ID,
		StudentID:       sub.StudentID,
		CompetencyID:    sub.CompetencyID,
		AttemptNumber:   sub.AttemptNumber,
		OverallMastery:  overall,
		Score:           math.Round(score*100) / 100,
		NeedsReview:     criterionIDs(needsReview),
		ConfidenceScore: int(math.Round(100 * coverage * graderConf)),
		AssessedBy:      by,
	}

	limit := e.MaxAttempts(rubric)
	a.AllowResubmission = overall < mastery.LevelProficient && sub.AttemptNumber < limit
	if a.AllowResubmission {
		target := overall.Next()
		a.TargetMasteryLevel = &target
	}

	for _, r := range results {
		a.Feedback.Points = append(a.Feedback.Points, r.point)
		if r.score >= strengthThreshold {
			a.StrengthsIdentified = append(a.StrengthsIdentified, r.criterion.Name)
			if r.point.Strength != "" {
				a.Feedback.Celebrations = append(a.Feedback.Celebrations, r.point.Strength)
			}
		} else {
			a.GrowthAreas = append(a.GrowthAreas, r.criterion.Name)
		}
	}
	for _, c := range needsReview {
		a.Feedback.Points = append(a.Feedback.Points, FeedbackPoint{
			CriterionID: c.ID,
			Observation: "A tutor will take a look at this part.",
			Improvement: fallbackGuidance(c),
		})
	}
	a.Feedback.Opening = opening(overall, sub.AttemptNumber, in.PriorLevels)
	a.Feedback.Guidance = guidance(a, results)
	a.Feedback.Closing = closing(overall)
	return a, nil
}

func criterionIDs(cs []Criterion) []string {
	if len(cs) == 0 {
		return nil
	}
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// fromGrade converts an external grade, rewriting verdict-style
// improvements into next steps.
func fromGrade(c Criterion, g CriterionGrade) scored {
	conf := g.Confidence
	if conf <= 0 || conf > 1 {
		conf = 1
	}
	obs := strings.TrimSpace(g.Observation)
	if obs == "" {
		obs = c.Name + " was reviewed."
	}
	p := FeedbackPoint{
		CriterionID: c.ID,
		Observation: obs,
		Strength:    strings.TrimSpace(g.Strength),
	}
	score := clampScore(g.Score)
	if imp := strings.TrimSpace(g.Improvement); imp != "" {
		p.Improvement = ForwardGuidance(imp, c)
	} else if score < strengthThreshold {
		p.Improvement = fallbackGuidance(c)
	}
	if p.Strength == "" && p.Improvement == "" {
		p.Strength = "Nice work on " + strings.ToLower(c.Name) + "."
	}
	return scored{criterion: c, score: score, confidence: conf, point: p}
}

func opening(overall mastery.Level, attempt int, prior []mastery.Level) string {
	if attempt > 1 && len(prior) > 0 {
		trend := mastery.Trend(append(append([]mastery.Level{}, prior...), overall))
		switch {
		case trend > 0:
			return "You pushed this further than last time!"
		case trend == 0:
			return "Thanks for giving this another go."
		default:
			return "Thanks for sticking with this one."
		}
	}
	switch {
	case overall >= mastery.LevelAdvanced:
		return "Wow, look at what you made!"
	case overall == mastery.LevelProficient:
		return "Great job on this challenge!"
	default:
		return "Thanks for sharing your work!"
	}
}

func guidance(a *Assessment, results []scored) string {
	switch {
	case a.AllowResubmission:
		for _, r := range results {
			if r.point.Improvement != "" {
				return fmt.Sprintf("Aim for %s on your next try. %s", a.TargetMasteryLevel.String(), r.point.Improvement)
			}
		}
		return fmt.Sprintf("Aim for %s on your next try.", a.TargetMasteryLevel.String())
	case a.OverallMastery >= mastery.LevelProficient:
		return "Keep going: you're ready for the next challenge."
	default:
		return "Keep going: your tutor will help you plan the next step."
	}
}

func closing(overall mastery.Level) string {
	if overall >= mastery.LevelProficient {
		return "Wowl is proud of you!"
	}
	return "Every try makes you stronger. Wowl believes in you!"
}
