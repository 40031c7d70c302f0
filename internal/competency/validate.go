package competency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wowl-learning/wowl/internal/errs"
)

// validate performs all structural checks on the given definitions.
// Returns a ConfigurationError describing every problem found, or nil.
func validate(defs []Competency, domains map[Subject][]string) error {
	var problems []string

	idSet := make(map[string]bool, len(defs))
	for _, c := range defs {
		if c.ID == "" {
			problems = append(problems, "competency with empty ID")
			continue
		}
		if idSet[c.ID] {
			problems = append(problems, fmt.Sprintf("duplicate competency ID: %q", c.ID))
		}
		idSet[c.ID] = true
	}

	for _, c := range defs {
		if !c.Subject.Valid() {
			problems = append(problems, fmt.Sprintf("competency %q has unknown subject %q", c.ID, c.Subject))
		}
		if c.Grade < MinGrade || c.Grade > MaxGrade {
			problems = append(problems, fmt.Sprintf("competency %q has grade %d outside PreK..12", c.ID, c.Grade))
		}
		if c.MasteryTimeHours < 0 {
			problems = append(problems, fmt.Sprintf("competency %q: mastery_time_hours must be >= 0, got %g", c.ID, c.MasteryTimeHours))
		}
		if !declaresDomain(domains[c.Subject], c.Domain) {
			problems = append(problems, fmt.Sprintf("competency %q uses undeclared %s domain %q", c.ID, c.Subject, c.Domain))
		}
		for _, prereqID := range c.Prerequisites {
			switch {
			case prereqID == c.ID:
				problems = append(problems, fmt.Sprintf("competency %q lists itself as a prerequisite", c.ID))
			case !idSet[prereqID]:
				problems = append(problems, fmt.Sprintf("competency %q references nonexistent prerequisite %q", c.ID, prereqID))
			}
		}
	}

	if cycle := cycleMembers(defs, idSet); len(cycle) > 0 {
		problems = append(problems, fmt.Sprintf("cycle detected involving competencies: %s", strings.Join(cycle, ", ")))
	}

	if len(problems) > 0 {
		return &errs.ConfigurationError{
			Source: "competency catalog",
			Err:    errors.New("validation failed:\n  " + strings.Join(problems, "\n  ")),
		}
	}
	return nil
}

func declaresDomain(declared []string, domain string) bool {
	for _, d := range declared {
		if d == domain {
			return true
		}
	}
	return false
}

// cycleMembers runs Kahn's algorithm over the known edges and returns the
// IDs left with a positive in-degree, i.e. those on or behind a cycle.
func cycleMembers(defs []Competency, idSet map[string]bool) []string {
	inDegree := make(map[string]int, len(defs))
	adj := make(map[string][]string)
	for _, c := range defs {
		for _, prereqID := range c.Prerequisites {
			if !idSet[prereqID] {
				continue
			}
			inDegree[c.ID]++
			adj[prereqID] = append(adj[prereqID], c.ID)
		}
	}

	var queue []string
	for _, c := range defs {
		if inDegree[c.ID] == 0 {
			queue = append(queue, c.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, depID := range adj[id] {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if visited >= len(idSet) {
		return nil
	}
	var members []string
	for _, c := range defs {
		if inDegree[c.ID] > 0 {
			members = append(members, c.ID)
		}
	}
	return members
}
