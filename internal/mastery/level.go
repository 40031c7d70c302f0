package mastery

import (
	"fmt"
	"strings"
)

// Level is a demonstrated-skill grade. Levels are totally ordered and the
// numeric value is the weight used for comparisons and trend math.
// The zero value means "not assessed".
type Level int

const (
	LevelEmerging   Level = 1
	LevelDeveloping Level = 2
	LevelProficient Level = 3
	LevelAdvanced   Level = 4
	LevelMastered   Level = 5
)

// AllLevels returns every level in ascending order.
func AllLevels() []Level {
	return []Level{LevelEmerging, LevelDeveloping, LevelProficient, LevelAdvanced, LevelMastered}
}

// ParseLevel parses the lowercase level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emerging":
		return LevelEmerging, nil
	case "developing":
		return LevelDeveloping, nil
	case "proficient":
		return LevelProficient, nil
	case "advanced":
		return LevelAdvanced, nil
	case "mastered":
		return LevelMastered, nil
	}
	return 0, fmt.Errorf("unknown mastery level %q", s)
}

func (l Level) String() string {
	switch l {
	case LevelEmerging:
		return "emerging"
	case LevelDeveloping:
		return "developing"
	case LevelProficient:
		return "proficient"
	case LevelAdvanced:
		return "advanced"
	case LevelMastered:
		return "mastered"
	default:
		return ""
	}
}

// Valid reports whether l is one of the five levels.
func (l Level) Valid() bool {
	return l >= LevelEmerging && l <= LevelMastered
}

// Weight returns the 1..5 numeric weight.
func (l Level) Weight() int {
	return int(l)
}

// Next returns the level one step up. Mastered has no next level and
// returns itself.
func (l Level) Next() Level {
	if l >= LevelMastered {
		return LevelMastered
	}
	if l < LevelEmerging {
		return LevelEmerging
	}
	return l + 1
}

// Max returns the higher of two levels.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// FromScore maps a 1..5 weighted score onto a level. Boundaries round
// half up: 2.5 is proficient.
func FromScore(score float64) Level {
	switch {
	case score < 1.5:
		return LevelEmerging
	case score < 2.5:
		return LevelDeveloping
	case score < 3.5:
		return LevelProficient
	case score < 4.5:
		return LevelAdvanced
	default:
		return LevelMastered
	}
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid mastery level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
