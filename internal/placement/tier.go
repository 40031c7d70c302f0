// Package placement turns a placement-quiz result into a starting tier
// and grade.
package placement

import (
	"fmt"
	"strings"

	"github.com/wowl-learning/wowl/internal/competency"
)

// Tier is a difficulty band shown to families, mapped onto grade-level
// competencies.
type Tier string

const (
	TierEarlyExplorers Tier = "early-explorers"
	TierExplorers      Tier = "explorers"
	TierWarriors       Tier = "warriors"
)

// AllTiers returns the tiers in ascending order.
func AllTiers() []Tier {
	return []Tier{TierEarlyExplorers, TierExplorers, TierWarriors}
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

func (t Tier) rank() int {
	switch t {
	case TierEarlyExplorers:
		return 0
	case TierExplorers:
		return 1
	case TierWarriors:
		return 2
	}
	return -1
}

// DisplayName returns the family-facing name.
func (t Tier) DisplayName() string {
	switch t {
	case TierEarlyExplorers:
		return "Early Explorers"
	case TierExplorers:
		return "Explorers"
	case TierWarriors:
		return "Warriors"
	}
	return string(t)
}

// Band returns the inclusive grade range the tier covers.
func (t Tier) Band() (lo, hi competency.Grade) {
	switch t {
	case TierEarlyExplorers:
		return competency.GradePreK, 2
	case TierExplorers:
		return 3, 5
	default:
		return 6, 8
	}
}

// Contains reports whether g falls inside the tier's band.
func (t Tier) Contains(g competency.Grade) bool {
	lo, hi := t.Band()
	return g >= lo && g <= hi
}

// TierForAge maps an age in years to the tier of its usual grade, so
// ages 7 and under are early explorers, 8 to 11 explorers and 12 and up
// warriors.
func TierForAge(age int) Tier {
	return TierForGrade(GradeForAge(age))
}

// TierForGrade maps a grade to the tier whose band contains it. Grades
// above 8 map to warriors.
func TierForGrade(g competency.Grade) Tier {
	switch {
	case g <= 2:
		return TierEarlyExplorers
	case g <= 5:
		return TierExplorers
	default:
		return TierWarriors
	}
}

// GradeForAge returns the usual US grade for an age in years.
//
//	age    4    5  6  7  8  9  10  11  12  13  14
//	grade  PreK K  1  2  3  4  5   5   6   7   8
//
// Most 11-year-olds are still finishing grade 5, so the offset grows by
// one from age 11.
func GradeForAge(age int) competency.Grade {
	if age >= 11 {
		return competency.Grade(age - 6).Clamp()
	}
	return competency.Grade(age - 5).Clamp()
}
