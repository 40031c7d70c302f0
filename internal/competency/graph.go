package competency

import (
	"fmt"
	"slices"
	"sort"
)

// Catalog holds the competency DAG with precomputed indices.
// It is read-only once built.
type Catalog struct {
	competencies []Competency
	byID         map[string]*Competency
	bySubject    map[Subject][]Competency
	declIndex    map[string]int
	dependents   map[string][]string
	domains      map[Subject][]string
	domainRank   map[Subject]map[string]int
	topoOrder    []Competency
	topoIndex    map[string]int
	acyclic      bool
}

// New validates the definitions and builds a catalog. domains lists, per
// subject, the declared domain order used for tie-breaking.
func New(defs []Competency, domains map[Subject][]string) (*Catalog, error) {
	if err := validate(defs, domains); err != nil {
		return nil, err
	}
	return buildCatalog(defs, domains), nil
}

// buildCatalog constructs the indices and a topological order (Kahn's algorithm).
func buildCatalog(defs []Competency, domains map[Subject][]string) *Catalog {
	c := &Catalog{
		competencies: slices.Clone(defs),
		byID:         make(map[string]*Competency, len(defs)),
		bySubject:    make(map[Subject][]Competency),
		declIndex:    make(map[string]int, len(defs)),
		dependents:   make(map[string][]string),
		domains:      make(map[Subject][]string, len(domains)),
		domainRank:   make(map[Subject]map[string]int, len(domains)),
		topoIndex:    make(map[string]int, len(defs)),
	}

	for i := range c.competencies {
		comp := &c.competencies[i]
		c.byID[comp.ID] = comp
		c.declIndex[comp.ID] = i
	}

	for subject, ds := range domains {
		c.domains[subject] = slices.Clone(ds)
		rank := make(map[string]int, len(ds))
		for i, d := range ds {
			rank[d] = i
		}
		c.domainRank[subject] = rank
	}

	// Reverse edges
	for i := range c.competencies {
		for _, prereqID := range c.competencies[i].Prerequisites {
			c.dependents[prereqID] = append(c.dependents[prereqID], c.competencies[i].ID)
		}
	}

	inDegree := make(map[string]int, len(defs))
	for i := range c.competencies {
		inDegree[c.competencies[i].ID] = len(c.competencies[i].Prerequisites)
	}

	var queue []string
	for i := range c.competencies {
		if inDegree[c.competencies[i].ID] == 0 {
			queue = append(queue, c.competencies[i].ID)
		}
	}
	// Declaration order keeps the topological order deterministic.
	c.sortByDeclaration(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		c.topoOrder = append(c.topoOrder, *c.byID[id])

		deps := slices.Clone(c.dependents[id])
		c.sortByDeclaration(deps)
		for _, depID := range deps {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}
	c.acyclic = len(c.topoOrder) == len(c.competencies)

	for i, comp := range c.topoOrder {
		c.topoIndex[comp.ID] = i
	}

	// Group by subject, sorted by grade then topological position.
	for _, comp := range c.topoOrder {
		c.bySubject[comp.Subject] = append(c.bySubject[comp.Subject], comp)
	}
	for subject, comps := range c.bySubject {
		sort.SliceStable(comps, func(i, j int) bool {
			if comps[i].Grade != comps[j].Grade {
				return comps[i].Grade < comps[j].Grade
			}
			return c.topoIndex[comps[i].ID] < c.topoIndex[comps[j].ID]
		})
		c.bySubject[subject] = comps
	}

	return c
}

func (c *Catalog) sortByDeclaration(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return c.declIndex[ids[i]] < c.declIndex[ids[j]]
	})
}

// Get returns a competency by ID.
func (c *Catalog) Get(id string) (Competency, error) {
	comp, ok := c.byID[id]
	if !ok {
		return Competency{}, fmt.Errorf("competency not found: %q", id)
	}
	return *comp, nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every competency in declaration order.
func (c *Catalog) All() []Competency {
	return slices.Clone(c.competencies)
}

// Subjects returns the subjects present in the catalog, in display order.
func (c *Catalog) Subjects() []Subject {
	var out []Subject
	for _, s := range AllSubjects() {
		if len(c.bySubject[s]) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// CompetenciesFor returns the competencies of a subject at one grade,
// in topological order.
func (c *Catalog) CompetenciesFor(subject Subject, grade Grade) []Competency {
	var out []Competency
	for _, comp := range c.bySubject[subject] {
		if comp.Grade == grade {
			out = append(out, comp)
		}
	}
	return out
}

// InBand returns the competencies of a subject with lo <= grade <= hi,
// ordered by grade then topological position.
func (c *Catalog) InBand(subject Subject, lo, hi Grade) []Competency {
	var out []Competency
	for _, comp := range c.bySubject[subject] {
		if comp.Grade >= lo && comp.Grade <= hi {
			out = append(out, comp)
		}
	}
	return out
}

// PrerequisitesOf returns the direct prerequisite IDs of a competency, sorted.
func (c *Catalog) PrerequisitesOf(id string) []string {
	comp, ok := c.byID[id]
	if !ok {
		return nil
	}
	out := slices.Clone(comp.Prerequisites)
	sort.Strings(out)
	return slices.Compact(out)
}

// Dependents returns the IDs of competencies that directly require id.
func (c *Catalog) Dependents(id string) []string {
	out := slices.Clone(c.dependents[id])
	sort.Strings(out)
	return slices.Compact(out)
}

// TransitiveClosure returns every competency reachable through the
// prerequisite relation from id, excluding id itself unless the graph
// has a cycle through it.
func (c *Catalog) TransitiveClosure(id string) map[string]bool {
	seen := make(map[string]bool)
	stack := c.PrerequisitesOf(id)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		stack = append(stack, c.PrerequisitesOf(next)...)
	}
	return seen
}

// IsAcyclic reports whether the prerequisite relation is a DAG.
// Catalogs returned by New are always acyclic.
func (c *Catalog) IsAcyclic() bool {
	return c.acyclic
}

// Domains returns the declared domain order for a subject.
func (c *Catalog) Domains(subject Subject) []string {
	return slices.Clone(c.domains[subject])
}

// DomainRank returns the position of domain in the subject's declared order.
// Undeclared domains sort last.
func (c *Catalog) DomainRank(subject Subject, domain string) int {
	if r, ok := c.domainRank[subject][domain]; ok {
		return r
	}
	return len(c.domains[subject])
}

// DeclarationIndex returns the position of id in the source definitions.
func (c *Catalog) DeclarationIndex(id string) int {
	if i, ok := c.declIndex[id]; ok {
		return i
	}
	return len(c.competencies)
}

// TopologicalOrder returns the competencies of a subject in a valid
// topological order.
func (c *Catalog) TopologicalOrder(subject Subject) []Competency {
	var out []Competency
	for _, comp := range c.topoOrder {
		if comp.Subject == subject {
			out = append(out, comp)
		}
	}
	return out
}
