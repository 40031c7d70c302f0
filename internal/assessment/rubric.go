package assessment

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wowl-learning/wowl/internal/errs"
)

// Method is how a criterion gets scored.
type Method string

const (
	// MethodKeywords scores the share of expected key ideas present in the text.
	MethodKeywords Method = "keywords"
	// MethodLength scores word count against MinWords.
	MethodLength Method = "length"
	// MethodCompleteness scores sentence structure.
	MethodCompleteness Method = "completeness"
	// MethodReview needs a grader or a tutor.
	MethodReview Method = "review"
)

// Criterion is one line of a rubric.
type Criterion struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Weight      float64  `yaml:"weight" json:"weight"`
	Method      Method   `yaml:"method" json:"method"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	MinWords    int      `yaml:"min_words,omitempty" json:"min_words,omitempty"`
	// Required criteria must be evaluated; otherwise the submission
	// goes to review.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
}

// Rubric is the criteria set for one challenge type.
type Rubric struct {
	ChallengeType SubmissionType `yaml:"challenge_type" json:"challenge_type"`
	Criteria      []Criterion    `yaml:"criteria" json:"criteria"`
	// MaxAttempts overrides the engine policy when > 0.
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
}

// Validate checks the rubric is complete enough to score against.
func (r Rubric) Validate() error {
	source := fmt.Sprintf("rubric %q", r.ChallengeType)
	var problems []string
	if len(r.Criteria) == 0 {
		problems = append(problems, "no criteria")
	}
	if r.MaxAttempts < 0 {
		problems = append(problems, fmt.Sprintf("max_attempts must be >= 0, got %d", r.MaxAttempts))
	}
	seen := make(map[string]bool, len(r.Criteria))
	for i, c := range r.Criteria {
		if c.ID == "" {
			problems = append(problems, fmt.Sprintf("criterion %d has empty id", i))
			continue
		}
		if seen[c.ID] {
			problems = append(problems, fmt.Sprintf("duplicate criterion %q", c.ID))
		}
		seen[c.ID] = true
		if c.Weight <= 0 {
			problems = append(problems, fmt.Sprintf("criterion %q: weight must be > 0", c.ID))
		}
		switch c.Method {
		case MethodKeywords:
			if len(c.Keywords) == 0 {
				problems = append(problems, fmt.Sprintf("criterion %q: keywords method needs keywords", c.ID))
			}
		case MethodLength:
			if c.MinWords <= 0 {
				problems = append(problems, fmt.Sprintf("criterion %q: length method needs min_words", c.ID))
			}
		case MethodCompleteness, MethodReview:
		default:
			problems = append(problems, fmt.Sprintf("criterion %q: unknown method %q", c.ID, c.Method))
		}
	}
	if len(problems) > 0 {
		return &errs.ConfigurationError{Source: source, Err: errors.New(strings.Join(problems, "; "))}
	}
	return nil
}

// TotalWeight sums criterion weights.
func (r Rubric) TotalWeight() float64 {
	var w float64
	for _, c := range r.Criteria {
		w += c.Weight
	}
	return w
}

// RubricProvider supplies the rubric for a challenge type.
type RubricProvider interface {
	RubricFor(t SubmissionType) (Rubric, error)
}

// RubricSet is a validated set of rubrics keyed by challenge type.
type RubricSet map[SubmissionType]Rubric

// RubricFor returns the rubric for t, or a ConfigurationError.
func (s RubricSet) RubricFor(t SubmissionType) (Rubric, error) {
	r, ok := s[t]
	if !ok {
		return Rubric{}, errs.Configuration(fmt.Sprintf("rubric %q", t), "no rubric for challenge type")
	}
	return r, nil
}

//go:embed rubrics.yaml
var defaultRubricsYAML []byte

type rubricFile struct {
	Rubrics []Rubric `yaml:"rubrics"`
}

// DefaultRubrics returns the rubric set shipped with the binary.
func DefaultRubrics() (RubricSet, error) {
	return ParseRubrics(defaultRubricsYAML)
}

// LoadRubrics reads a rubric set from a YAML file.
func LoadRubrics(path string) (RubricSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigurationError{Source: path, Err: err}
	}
	return ParseRubrics(data)
}

// ParseRubrics decodes and validates a rubric set. Every submission type
// must have a rubric.
func ParseRubrics(data []byte) (RubricSet, error) {
	var f rubricFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &errs.ConfigurationError{Source: "rubrics", Err: fmt.Errorf("parse YAML: %w", err)}
	}
	set := make(RubricSet, len(f.Rubrics))
	for _, r := range f.Rubrics {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set[r.ChallengeType]; dup {
			return nil, errs.Configuration("rubrics", "duplicate rubric for %q", r.ChallengeType)
		}
		set[r.ChallengeType] = r
	}
	for _, t := range AllSubmissionTypes() {
		if _, ok := set[t]; !ok {
			return nil, errs.Configuration("rubrics", "missing rubric for challenge type %q", t)
		}
	}
	return set, nil
}
