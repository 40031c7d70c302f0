package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

type pairKey struct{ a, b string }

type attemptKey struct {
	student, challenge string
	attempt            int
}

// MemoryStore is an in-memory Repository. It is safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	students    map[string]StudentData
	mastery     map[pairKey]MasteryData
	paths       map[pairKey]PathData
	submissions map[string]SubmissionData
	attempts    map[attemptKey]string
	assessments []AssessmentData
	assignments map[string]AssignmentData
	assignOrder []string
	keys        map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students:    make(map[string]StudentData),
		mastery:     make(map[pairKey]MasteryData),
		paths:       make(map[pairKey]PathData),
		submissions: make(map[string]SubmissionData),
		attempts:    make(map[attemptKey]string),
		assignments: make(map[string]AssignmentData),
		keys:        make(map[string]string),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetStudent(_ context.Context, id string) (*StudentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *MemoryStore) PutStudent(_ context.Context, st StudentData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.students[st.ID]; ok && st.CreatedAt.IsZero() {
		st.CreatedAt = prev.CreatedAt
	}
	s.students[st.ID] = st
	return nil
}

func (s *MemoryStore) GetMastery(_ context.Context, studentID, competencyID string) (*MasteryData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mastery[pairKey{studentID, competencyID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) ListMastery(_ context.Context, studentID string) ([]MasteryData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []MasteryData
	for k, m := range s.mastery {
		if k.a == studentID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompetencyID < out[j].CompetencyID })
	return out, nil
}

func (s *MemoryStore) UpdateMastery(_ context.Context, studentID, competencyID string, fn func(cur *MasteryData) (MasteryData, error)) (*MasteryData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pairKey{studentID, competencyID}
	var cur *MasteryData
	if m, ok := s.mastery[k]; ok {
		cur = &m
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	next.StudentID, next.CompetencyID = studentID, competencyID
	s.mastery[k] = next
	return &next, nil
}

func (s *MemoryStore) GetPath(_ context.Context, studentID, subject string) (*PathData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paths[pairKey{studentID, subject}]
	if !ok {
		return nil, ErrNotFound
	}
	p.Competencies = slices.Clone(p.Competencies)
	return &p, nil
}

func (s *MemoryStore) PutPath(_ context.Context, p PathData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Competencies = slices.Clone(p.Competencies)
	s.paths[pairKey{p.StudentID, p.Subject}] = p
	return nil
}

func (s *MemoryStore) DeletePath(_ context.Context, studentID, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, pairKey{studentID, subject})
	return nil
}

func (s *MemoryStore) CreateSubmission(_ context.Context, sub SubmissionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ak := attemptKey{sub.StudentID, sub.ChallengeID, sub.AttemptNumber}
	if _, ok := s.submissions[sub.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.attempts[ak]; ok {
		return ErrDuplicate
	}
	sub.Content = slices.Clone(sub.Content)
	s.submissions[sub.ID] = sub
	s.attempts[ak] = sub.ID
	return nil
}

func (s *MemoryStore) GetSubmission(_ context.Context, id string) (*SubmissionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	sub.Content = slices.Clone(sub.Content)
	return &sub, nil
}

func (s *MemoryStore) LatestSubmission(_ context.Context, studentID, challengeID string) (*SubmissionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *SubmissionData
	for _, sub := range s.submissions {
		if sub.StudentID != studentID || sub.ChallengeID != challengeID {
			continue
		}
		if best == nil || sub.AttemptNumber > best.AttemptNumber {
			best = &sub
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	best.Content = slices.Clone(best.Content)
	return best, nil
}

func (s *MemoryStore) SetSubmissionStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	s.submissions[id] = sub
	return nil
}

func (s *MemoryStore) ListSubmissionsByStatus(_ context.Context, status string) ([]SubmissionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SubmissionData
	for _, sub := range s.submissions {
		if sub.Status == status {
			sub.Content = slices.Clone(sub.Content)
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) PutAssessment(_ context.Context, a AssessmentData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assessments {
		if existing.ID == a.ID {
			return ErrDuplicate
		}
	}
	a.Payload = slices.Clone(a.Payload)
	s.assessments = append(s.assessments, a)
	return nil
}

func (s *MemoryStore) LatestAssessment(_ context.Context, submissionID string) (*AssessmentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.assessments) - 1; i >= 0; i-- {
		if a := s.assessments[i]; a.SubmissionID == submissionID {
			a.Payload = slices.Clone(a.Payload)
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAssessments(_ context.Context, studentID, competencyID string) ([]AssessmentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AssessmentData
	for _, a := range s.assessments {
		if a.StudentID == studentID && a.CompetencyID == competencyID {
			a.Payload = slices.Clone(a.Payload)
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateAssignment(_ context.Context, a AssignmentData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; ok {
		return ErrDuplicate
	}
	if a.IdempotencyKey != "" {
		if _, ok := s.keys[a.IdempotencyKey]; ok {
			return ErrDuplicate
		}
		s.keys[a.IdempotencyKey] = a.ID
	}
	s.assignments[a.ID] = cloneAssignment(a)
	s.assignOrder = append(s.assignOrder, a.ID)
	return nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (*AssignmentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	a = cloneAssignment(a)
	return &a, nil
}

func (s *MemoryStore) GetAssignmentByKey(ctx context.Context, key string) (*AssignmentData, error) {
	s.mu.RLock()
	id, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetAssignment(ctx, id)
}

func (s *MemoryStore) UpdateAssignment(_ context.Context, a AssignmentData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.assignments[a.ID]
	if !ok {
		return ErrNotFound
	}
	// Identity and origin are fixed at creation.
	a.IdempotencyKey = prev.IdempotencyKey
	a.StudentID, a.Subject, a.QuestID = prev.StudentID, prev.Subject, prev.QuestID
	a.AssignedBy, a.AssignedAt = prev.AssignedBy, prev.AssignedAt
	s.assignments[a.ID] = cloneAssignment(a)
	return nil
}

func (s *MemoryStore) OpenAssignment(_ context.Context, studentID, subject string) (*AssignmentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.assignOrder) - 1; i >= 0; i-- {
		a := s.assignments[s.assignOrder[i]]
		if a.StudentID == studentID && a.Subject == subject && a.Open() {
			a = cloneAssignment(a)
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAssignments(_ context.Context, studentID string) ([]AssignmentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AssignmentData
	for _, id := range s.assignOrder {
		if a := s.assignments[id]; a.StudentID == studentID {
			out = append(out, cloneAssignment(a))
		}
	}
	return out, nil
}

func cloneAssignment(a AssignmentData) AssignmentData {
	a.CompetenciesTargeted = slices.Clone(a.CompetenciesTargeted)
	a.Lessons = slices.Clone(a.Lessons)
	a.LessonsCompleted = slices.Clone(a.LessonsCompleted)
	if a.StartedAt != nil {
		t := *a.StartedAt
		a.StartedAt = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	return a
}
