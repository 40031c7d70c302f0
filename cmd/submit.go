package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/assessment"
	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/errs"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file|->",
	Short: "Assess a submission read from a JSON file or stdin",
	Long: `Assess a submission. The JSON document carries the submission fields and a
content object whose "type" is text, image, video, screenshot or multiple.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in submissionFile
		if err := readJSON(args[0], &in); err != nil {
			return fmt.Errorf("read submission: %w", err)
		}
		sub, err := in.toSubmission()
		if err != nil {
			return err
		}

		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.AssessSubmission(cmd.Context(), sub)
		if err != nil {
			return userFacing(err)
		}
		return printJSON(a)
	},
}

// submissionFile is the JSON shape accepted by submit.
type submissionFile struct {
	ID                string           `json:"id"`
	StudentID         string           `json:"student_id"`
	ChallengeID       string           `json:"challenge_id"`
	CompetencyID      string           `json:"competency_id"`
	SkillLevel        competency.Grade `json:"skill_level"`
	Content           json.RawMessage  `json:"content"`
	AttemptNumber     int              `json:"attempt_number"`
	PreviousAttemptID string           `json:"previous_attempt_id,omitempty"`
	SubmittedAt       time.Time        `json:"submitted_at"`
}

func (f submissionFile) toSubmission() (assessment.Submission, error) {
	content, err := assessment.UnmarshalContent(f.Content)
	if err != nil {
		return assessment.Submission{}, err
	}
	at := f.SubmittedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return assessment.Submission{
		ID:                f.ID,
		StudentID:         f.StudentID,
		ChallengeID:       f.ChallengeID,
		CompetencyID:      f.CompetencyID,
		SkillLevel:        f.SkillLevel,
		Content:           content,
		AttemptNumber:     f.AttemptNumber,
		PreviousAttemptID: f.PreviousAttemptID,
		SubmittedAt:       at,
	}, nil
}

// userFacing prints the student-facing message for soft failures and
// returns nil for them; other errors pass through.
func userFacing(err error) error {
	var timeout *errs.GraderTimeoutError
	if errors.As(err, &timeout) {
		fmt.Println(timeout.UserMessage())
		return nil
	}
	var policy *errs.PolicyViolationError
	if errors.As(err, &policy) {
		fmt.Println(policy.UserMessage())
		return nil
	}
	return err
}

func readJSON(name string, v any) error {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
