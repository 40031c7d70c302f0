package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert collides with a unique key:
	// a submission's (student, challenge, attempt) or an assignment's
	// idempotency key.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Submission statuses.
const (
	SubmissionReceived      = "received"
	SubmissionAssessed      = "assessed"
	SubmissionPendingReview = "pending-review"
)

// StudentData is a student profile. SelectedTier, when set by a parent or
// tutor, takes precedence over RecommendedTier.
type StudentData struct {
	ID              string
	Age             int // 0 when unknown
	EstimatedGrade  string
	Subject         string
	RecommendedTier string
	SelectedTier    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MasteryData is one ledger entry. Level is the best level ever achieved;
// LatestLevel is whatever the most recent assessment said.
// LastAssessmentID names the assessment folded in last, so recording it
// again is a no-op.
type MasteryData struct {
	StudentID        string
	CompetencyID     string
	Level            string
	LatestLevel      string
	AttemptCount     int
	LastAssessedAt   time.Time
	LastAssessmentID string
}

// PathData is the active learning path for a (student, subject).
type PathData struct {
	StudentID    string
	Subject      string
	Tier         string
	Competencies []string
	Cursor       int
	GeneratedAt  time.Time
}

// SubmissionData is a stored submission. Content holds the JSON-encoded
// content union.
type SubmissionData struct {
	ID                string
	StudentID         string
	ChallengeID       string
	CompetencyID      string
	SkillLevel        string
	Type              string
	Content           []byte
	AttemptNumber     int
	PreviousAttemptID string
	Status            string
	SubmittedAt       time.Time
}

// AssessmentData is a stored assessment. Payload holds the full JSON
// assessment; the other fields are indexed copies.
type AssessmentData struct {
	ID                string
	SubmissionID      string
	StudentID         string
	CompetencyID      string
	OverallMastery    string
	AllowResubmission bool
	AssessedBy        string
	AssessedAt        time.Time
	Payload           []byte
}

// AssignmentData is a stored quest assignment.
type AssignmentData struct {
	ID                   string
	StudentID            string
	Subject              string
	QuestID              string
	QuestTitle           string
	Status               string
	CompetenciesTargeted []string
	Lessons              []string
	LessonsCompleted     []string
	XPEarned             int
	Difficulty           string
	CompletionPolicy     string
	AssignedBy           string
	AssignedAt           time.Time
	StartedAt            *time.Time
	CompletedAt          *time.Time
	SupersededBy         string
	IdempotencyKey       string
}

// Open reports whether the assignment is still in flight.
func (a *AssignmentData) Open() bool {
	return a.Status != "completed" && a.SupersededBy == ""
}

// StudentRepo manages student profiles.
type StudentRepo interface {
	GetStudent(ctx context.Context, id string) (*StudentData, error)
	PutStudent(ctx context.Context, s StudentData) error
}

// MasteryRepo manages ledger entries.
type MasteryRepo interface {
	// GetMastery returns ErrNotFound if the student was never assessed on
	// the competency.
	GetMastery(ctx context.Context, studentID, competencyID string) (*MasteryData, error)

	ListMastery(ctx context.Context, studentID string) ([]MasteryData, error)

	// UpdateMastery runs fn against the current entry (nil if none) and
	// stores the result atomically. Concurrent updates of the same entry
	// are serialized.
	UpdateMastery(ctx context.Context, studentID, competencyID string, fn func(cur *MasteryData) (MasteryData, error)) (*MasteryData, error)
}

// PathRepo manages learning paths, one per (student, subject).
type PathRepo interface {
	GetPath(ctx context.Context, studentID, subject string) (*PathData, error)
	PutPath(ctx context.Context, p PathData) error
	DeletePath(ctx context.Context, studentID, subject string) error
}

// SubmissionRepo manages submissions.
type SubmissionRepo interface {
	// CreateSubmission returns ErrDuplicate when the ID or the
	// (student, challenge, attempt) triple already exists.
	CreateSubmission(ctx context.Context, s SubmissionData) error
	GetSubmission(ctx context.Context, id string) (*SubmissionData, error)

	// LatestSubmission returns the highest-attempt submission for a
	// challenge, or ErrNotFound.
	LatestSubmission(ctx context.Context, studentID, challengeID string) (*SubmissionData, error)
	SetSubmissionStatus(ctx context.Context, id, status string) error
	ListSubmissionsByStatus(ctx context.Context, status string) ([]SubmissionData, error)
}

// AssessmentRepo manages assessments. Assessments are append-only.
type AssessmentRepo interface {
	PutAssessment(ctx context.Context, a AssessmentData) error

	// LatestAssessment returns the newest assessment for a submission.
	LatestAssessment(ctx context.Context, submissionID string) (*AssessmentData, error)

	// ListAssessments returns a student's assessments for a competency,
	// oldest first.
	ListAssessments(ctx context.Context, studentID, competencyID string) ([]AssessmentData, error)
}

// AssignmentRepo manages quest assignments.
type AssignmentRepo interface {
	// CreateAssignment returns ErrDuplicate when the ID or the
	// idempotency key already exists.
	CreateAssignment(ctx context.Context, a AssignmentData) error
	GetAssignment(ctx context.Context, id string) (*AssignmentData, error)
	GetAssignmentByKey(ctx context.Context, key string) (*AssignmentData, error)
	UpdateAssignment(ctx context.Context, a AssignmentData) error

	// OpenAssignment returns the newest in-flight assignment for the
	// student and subject, or ErrNotFound.
	OpenAssignment(ctx context.Context, studentID, subject string) (*AssignmentData, error)

	// ListAssignments returns all of a student's assignments, oldest first.
	ListAssignments(ctx context.Context, studentID string) ([]AssignmentData, error)
}

// Repository bundles every repo the engine persists through.
type Repository interface {
	StudentRepo
	MasteryRepo
	PathRepo
	SubmissionRepo
	AssessmentRepo
	AssignmentRepo
	Close() error
}
