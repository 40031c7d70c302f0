package path

import (
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/placement"
)

// SkipLevel is the best-known level at which a competency drops off the
// path.
const SkipLevel = mastery.LevelProficient

// Generator builds learning paths from the catalog.
type Generator struct {
	catalog *competency.Catalog
	now     func() time.Time
}

// NewGenerator creates a generator over catalog.
func NewGenerator(catalog *competency.Catalog) *Generator {
	return &Generator{catalog: catalog, now: time.Now}
}

// Generate orders the subject's competencies inside the tier's grade band
// that the student has not yet reached SkipLevel on. Every competency
// comes after its prerequisites that are also on the path. Among the
// ready competencies, the one with fewer unmet prerequisites goes first,
// then the earlier catalog domain, then the earlier declaration.
//
// levels maps competency IDs to best-known levels; missing entries count
// as never assessed. The result never depends on a previous path.
func (g *Generator) Generate(studentID string, subject competency.Subject, tier placement.Tier, levels map[string]mastery.Level) LearningPath {
	lo, hi := tier.Band()

	var candidates []competency.Competency
	onPath := make(map[string]bool)
	for _, c := range g.catalog.InBand(subject, lo, hi) {
		if levels[c.ID] >= SkipLevel {
			continue
		}
		candidates = append(candidates, c)
		onPath[c.ID] = true
	}

	inDegree := make(map[string]int, len(candidates))
	unmet := make(map[string]int, len(candidates))
	for _, c := range candidates {
		for _, pre := range g.catalog.PrerequisitesOf(c.ID) {
			if levels[pre] < SkipLevel {
				unmet[c.ID]++
			}
			if onPath[pre] {
				inDegree[c.ID]++
			}
		}
	}

	var ready []competency.Competency
	for _, c := range candidates {
		if inDegree[c.ID] == 0 {
			ready = append(ready, c)
		}
	}

	ordered := make([]string, 0, len(candidates))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if g.before(ready[i], ready[best], unmet) {
				best = i
			}
		}
		next := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		ordered = append(ordered, next.ID)

		for _, depID := range g.catalog.Dependents(next.ID) {
			if !onPath[depID] {
				continue
			}
			inDegree[depID]--
			if inDegree[depID] == 0 {
				dep, err := g.catalog.Get(depID)
				if err == nil {
					ready = append(ready, dep)
				}
			}
		}
	}

	return LearningPath{
		StudentID:    studentID,
		Subject:      subject,
		Tier:         tier,
		Competencies: ordered,
		GeneratedAt:  g.now().UTC(),
	}
}

func (g *Generator) before(a, b competency.Competency, unmet map[string]int) bool {
	if unmet[a.ID] != unmet[b.ID] {
		return unmet[a.ID] < unmet[b.ID]
	}
	ra, rb := g.catalog.DomainRank(a.Subject, a.Domain), g.catalog.DomainRank(b.Subject, b.Domain)
	if ra != rb {
		return ra < rb
	}
	return g.catalog.DeclarationIndex(a.ID) < g.catalog.DeclarationIndex(b.ID)
}
