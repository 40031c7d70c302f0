package quest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/placement"
)

// QuestSize is the default number of competencies bundled into one quest.
const QuestSize = 3

// questNamespace seeds deterministic quest IDs.
var questNamespace = uuid.MustParse("6f1d8c2e-4b7a-5e90-9c3d-2a8b1f4e7d60")

// Difficulty is how far into its tier's grade band a quest sits.
type Difficulty string

const (
	DifficultyWarmUp  Difficulty = "warm-up"
	DifficultyOnLevel Difficulty = "on-level"
	DifficultyStretch Difficulty = "stretch"
)

// LessonXP returns the XP awarded per completed lesson.
func (d Difficulty) LessonXP() int {
	switch d {
	case DifficultyWarmUp:
		return 10
	case DifficultyStretch:
		return 20
	default:
		return 15
	}
}

// Quest is the curriculum side of an assignment.
type Quest struct {
	ID           string
	Title        string
	Subject      competency.Subject
	Competencies []string
	Lessons      []string
	Difficulty   Difficulty
	Policy       CompletionPolicy
}

// QuestBuilder turns path entries into quests.
type QuestBuilder struct {
	catalog  *competency.Catalog
	size     int
	policies map[competency.Subject]CompletionPolicy
}

// NewQuestBuilder creates a builder. size <= 0 uses QuestSize.
func NewQuestBuilder(catalog *competency.Catalog, size int) *QuestBuilder {
	if size <= 0 {
		size = QuestSize
	}
	return &QuestBuilder{
		catalog: catalog,
		size:    size,
		// Writing is judged by tutors, so its quests finish on lessons.
		policies: map[competency.Subject]CompletionPolicy{
			competency.SubjectWriting: PolicyLessons,
		},
	}
}

// Size returns the number of competencies per quest.
func (b *QuestBuilder) Size() int { return b.size }

// SetPolicy sets the completion policy for a subject.
func (b *QuestBuilder) SetPolicy(subject competency.Subject, p CompletionPolicy) {
	b.policies[subject] = p
}

// PolicyFor returns the completion policy of a subject's quests.
func (b *QuestBuilder) PolicyFor(subject competency.Subject) CompletionPolicy {
	if p, ok := b.policies[subject]; ok {
		return p
	}
	return PolicyMastery
}

// Build creates the quest for ids. The quest ID depends only on the
// competency list, so the same bundle always gets the same ID.
func (b *QuestBuilder) Build(tier placement.Tier, ids []string) (Quest, error) {
	if len(ids) == 0 {
		return Quest{}, fmt.Errorf("build quest: no competencies")
	}
	comps := make([]competency.Competency, 0, len(ids))
	for _, id := range ids {
		c, err := b.catalog.Get(id)
		if err != nil {
			return Quest{}, fmt.Errorf("build quest: %w", err)
		}
		if len(comps) > 0 && c.Subject != comps[0].Subject {
			return Quest{}, fmt.Errorf("build quest: %q is %s, not %s", id, c.Subject, comps[0].Subject)
		}
		comps = append(comps, c)
	}

	subject := comps[0].Subject
	lessons := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		lessons = append(lessons, id+"/learn", id+"/challenge")
	}
	return Quest{
		ID:           uuid.NewSHA1(questNamespace, []byte(strings.Join(ids, ","))).String(),
		Title:        title(subject, comps),
		Subject:      subject,
		Competencies: ids,
		Lessons:      lessons,
		Difficulty:   difficulty(tier, comps),
		Policy:       b.PolicyFor(subject),
	}, nil
}

func title(subject competency.Subject, comps []competency.Competency) string {
	t := fmt.Sprintf("%s Quest: %s", subject.DisplayName(), comps[0].Skill)
	if n := len(comps) - 1; n == 1 {
		t += " and 1 more skill"
	} else if n > 1 {
		t += fmt.Sprintf(" and %d more skills", n)
	}
	return t
}

// difficulty places the quest's mean grade within the tier band: the
// lower third is a warm-up, the upper third a stretch.
func difficulty(tier placement.Tier, comps []competency.Competency) Difficulty {
	lo, hi := tier.Band()
	var sum float64
	for _, c := range comps {
		sum += float64(c.Grade)
	}
	mean := sum / float64(len(comps))
	pos := (mean - float64(lo)) / float64(hi-lo)
	switch {
	case pos < 1.0/3:
		return DifficultyWarmUp
	case pos < 2.0/3:
		return DifficultyOnLevel
	default:
		return DifficultyStretch
	}
}
