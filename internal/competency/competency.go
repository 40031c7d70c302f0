package competency

import (
	"fmt"
	"strconv"
	"strings"
)

// Subject is a curriculum subject.
type Subject string

const (
	SubjectReading  Subject = "reading"
	SubjectMath     Subject = "math"
	SubjectSpelling Subject = "spelling"
	SubjectWriting  Subject = "writing"
)

// AllSubjects returns all subjects in display order.
func AllSubjects() []Subject {
	return []Subject{SubjectReading, SubjectMath, SubjectSpelling, SubjectWriting}
}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	switch s {
	case SubjectReading, SubjectMath, SubjectSpelling, SubjectWriting:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for a subject.
func (s Subject) DisplayName() string {
	switch s {
	case SubjectReading:
		return "Reading"
	case SubjectMath:
		return "Math"
	case SubjectSpelling:
		return "Spelling"
	case SubjectWriting:
		return "Writing"
	default:
		return string(s)
	}
}

// Grade is an ordered grade level. PreK sorts before K, K before 1.
type Grade int

const (
	GradePreK Grade = -1
	GradeK    Grade = 0
	Grade12   Grade = 12

	MinGrade = GradePreK
	MaxGrade = Grade12
)

// ParseGrade parses "PreK", "K" or "1".."12".
func ParseGrade(s string) (Grade, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prek", "pre-k", "pk":
		return GradePreK, nil
	case "k", "kindergarten":
		return GradeK, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > int(Grade12) {
		return 0, fmt.Errorf("invalid grade %q", s)
	}
	return Grade(n), nil
}

func (g Grade) String() string {
	switch g {
	case GradePreK:
		return "PreK"
	case GradeK:
		return "K"
	default:
		return strconv.Itoa(int(g))
	}
}

// Clamp limits g to the PreK..12 range.
func (g Grade) Clamp() Grade {
	if g < MinGrade {
		return MinGrade
	}
	if g > MaxGrade {
		return MaxGrade
	}
	return g
}

// MarshalText encodes the grade with its display form.
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText accepts the forms understood by ParseGrade.
func (g *Grade) UnmarshalText(b []byte) error {
	v, err := ParseGrade(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// AssessmentQuestion is a check-for-understanding prompt attached to a competency.
type AssessmentQuestion struct {
	ID     string `yaml:"id" json:"id"`
	Prompt string `yaml:"prompt" json:"prompt"`
	Answer string `yaml:"answer,omitempty" json:"answer,omitempty"`
}

// Competency is a single gradable learning skill.
type Competency struct {
	ID                  string               `yaml:"id" json:"id"`
	Subject             Subject              `yaml:"subject" json:"subject"`
	Grade               Grade                `yaml:"grade" json:"grade"`
	Domain              string               `yaml:"domain" json:"domain"`
	Skill               string               `yaml:"skill" json:"skill"`
	Prerequisites       []string             `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
	MasteryTimeHours    float64              `yaml:"mastery_time_hours" json:"mastery_time_hours"`
	AssessmentQuestions []AssessmentQuestion `yaml:"assessment_questions,omitempty" json:"assessment_questions,omitempty"`
}
