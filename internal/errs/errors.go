// Package errs defines the error taxonomy shared by the engine packages.
//
// Each category is a struct type carrying context and wrapping an optional
// cause, plus a sentinel that errors.Is matches for every instance of the
// category.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is for each category.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrGraderTimeout     = errors.New("grader timeout")
	ErrPolicyViolation   = errors.New("policy violation")
)

// ConfigurationError reports broken content or wiring: a catalog cycle,
// a missing rubric. It is fatal at load time.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Configuration builds a ConfigurationError with a formatted cause.
func Configuration(source, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Source: source, Err: fmt.Errorf(format, args...)}
}

// InvalidSubmissionError rejects a submission before any scoring happens.
type InvalidSubmissionError struct {
	SubmissionID string
	Reason       string
}

func (e *InvalidSubmissionError) Error() string {
	return fmt.Sprintf("invalid submission %q: %s", e.SubmissionID, e.Reason)
}

func (e *InvalidSubmissionError) Is(target error) bool { return target == ErrInvalidSubmission }

// InvalidSubmission builds an InvalidSubmissionError with a formatted reason.
func InvalidSubmission(submissionID, format string, args ...any) *InvalidSubmissionError {
	return &InvalidSubmissionError{SubmissionID: submissionID, Reason: fmt.Sprintf(format, args...)}
}

// GraderTimeoutError means the external grader did not produce a usable
// result. The submission goes to pending-review; the student is not told
// the assessment failed.
type GraderTimeoutError struct {
	SubmissionID string
	Err          error
}

func (e *GraderTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grader unavailable for submission %q: %v", e.SubmissionID, e.Err)
	}
	return fmt.Sprintf("grader unavailable for submission %q", e.SubmissionID)
}

func (e *GraderTimeoutError) Unwrap() error { return e.Err }

func (e *GraderTimeoutError) Is(target error) bool { return target == ErrGraderTimeout }

// UserMessage is the text shown to the student while a tutor reviews the work.
func (e *GraderTimeoutError) UserMessage() string {
	return "Wowl is reviewing your work. Check back soon!"
}

// PolicyViolationError is a user-visible refusal, not a system failure.
type PolicyViolationError struct {
	Policy  string
	Message string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy %s: %s", e.Policy, e.Message)
}

func (e *PolicyViolationError) Is(target error) bool { return target == ErrPolicyViolation }

// UserMessage returns the message suitable for display.
func (e *PolicyViolationError) UserMessage() string { return e.Message }
