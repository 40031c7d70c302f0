package assessment

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/errs"
)

// SubmissionType is the kind of work a student turned in. It doubles as
// the challenge type rubrics are keyed by.
type SubmissionType string

const (
	TypeText       SubmissionType = "text"
	TypeImage      SubmissionType = "image"
	TypeVideo      SubmissionType = "video"
	TypeScreenshot SubmissionType = "screenshot"
	TypeMultiple   SubmissionType = "multiple"
)

// AllSubmissionTypes returns every submission type.
func AllSubmissionTypes() []SubmissionType {
	return []SubmissionType{TypeText, TypeImage, TypeVideo, TypeScreenshot, TypeMultiple}
}

// Content is the submitted work. Exactly one variant per submission type;
// media is referenced by URL, never carried as bytes.
type Content interface {
	Type() SubmissionType
	content()
}

type TextContent struct {
	Text string
}

type ImageContent struct {
	URL     string
	Caption string
}

type VideoContent struct {
	URL             string
	DurationSeconds float64
	Transcript      string
}

type ScreenshotContent struct {
	URL     string
	Caption string
}

// MultipleContent bundles several single-variant items.
type MultipleContent struct {
	Items []Content
}

func (TextContent) Type() SubmissionType       { return TypeText }
func (ImageContent) Type() SubmissionType      { return TypeImage }
func (VideoContent) Type() SubmissionType      { return TypeVideo }
func (ScreenshotContent) Type() SubmissionType { return TypeScreenshot }
func (MultipleContent) Type() SubmissionType   { return TypeMultiple }

func (TextContent) content()       {}
func (ImageContent) content()      {}
func (VideoContent) content()      {}
func (ScreenshotContent) content() {}
func (MultipleContent) content()   {}

// Submission is one attempt at a challenge. Resubmissions are new
// submissions linked to the previous attempt by ID.
type Submission struct {
	ID                string
	StudentID         string
	ChallengeID       string
	CompetencyID      string
	SkillLevel        competency.Grade
	Content           Content
	AttemptNumber     int
	PreviousAttemptID string
	SubmittedAt       time.Time
}

// Type returns the submission type derived from the content variant.
func (s Submission) Type() SubmissionType {
	if s.Content == nil {
		return ""
	}
	return s.Content.Type()
}

// Validate rejects malformed submissions before any scoring.
func Validate(sub Submission) error {
	switch {
	case sub.ID == "":
		return errs.InvalidSubmission(sub.ID, "missing submission id")
	case sub.StudentID == "":
		return errs.InvalidSubmission(sub.ID, "missing student id")
	case sub.ChallengeID == "":
		return errs.InvalidSubmission(sub.ID, "missing challenge id")
	case sub.CompetencyID == "":
		return errs.InvalidSubmission(sub.ID, "missing competency id")
	case sub.AttemptNumber < 1:
		return errs.InvalidSubmission(sub.ID, "attempt number must be >= 1, got %d", sub.AttemptNumber)
	case sub.AttemptNumber > 1 && sub.PreviousAttemptID == "":
		return errs.InvalidSubmission(sub.ID, "attempt %d has no previous attempt id", sub.AttemptNumber)
	case sub.AttemptNumber == 1 && sub.PreviousAttemptID != "":
		return errs.InvalidSubmission(sub.ID, "first attempt cannot reference a previous attempt")
	case sub.PreviousAttemptID == sub.ID:
		return errs.InvalidSubmission(sub.ID, "submission references itself as previous attempt")
	}
	if sub.Content == nil {
		return errs.InvalidSubmission(sub.ID, "empty content")
	}
	if reason := contentProblem(sub.Content, false); reason != "" {
		return errs.InvalidSubmission(sub.ID, "%s", reason)
	}
	return nil
}

// contentProblem returns a description of what is wrong with c, or "".
func contentProblem(c Content, nested bool) string {
	switch v := c.(type) {
	case TextContent:
		if strings.TrimSpace(v.Text) == "" {
			return "empty text content"
		}
	case ImageContent:
		return urlProblem("image", v.URL)
	case ScreenshotContent:
		return urlProblem("screenshot", v.URL)
	case VideoContent:
		if p := urlProblem("video", v.URL); p != "" {
			return p
		}
		if v.DurationSeconds < 0 {
			return "video duration cannot be negative"
		}
	case MultipleContent:
		if nested {
			return "multiple content cannot be nested"
		}
		if len(v.Items) == 0 {
			return "empty multiple content"
		}
		for i, item := range v.Items {
			if item == nil {
				return fmt.Sprintf("item %d: empty content", i)
			}
			if p := contentProblem(item, true); p != "" {
				return fmt.Sprintf("item %d: %s", i, p)
			}
		}
	default:
		return fmt.Sprintf("unsupported content %T", c)
	}
	return ""
}

func urlProblem(kind, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return fmt.Sprintf("empty %s content", kind)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Sprintf("%s url %q is not an http(s) url", kind, raw)
	}
	return ""
}

// Text returns all student-written text in the content: the text variant
// plus captions and transcripts attached to media.
func Text(c Content) string {
	var parts []string
	var walk func(Content)
	walk = func(c Content) {
		switch v := c.(type) {
		case TextContent:
			parts = append(parts, v.Text)
		case ImageContent:
			parts = append(parts, v.Caption)
		case ScreenshotContent:
			parts = append(parts, v.Caption)
		case VideoContent:
			parts = append(parts, v.Transcript)
		case MultipleContent:
			for _, item := range v.Items {
				walk(item)
			}
		}
	}
	walk(c)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// HasMedia reports whether c contains any image, video or screenshot.
func HasMedia(c Content) bool {
	switch v := c.(type) {
	case ImageContent, VideoContent, ScreenshotContent:
		return true
	case MultipleContent:
		for _, item := range v.Items {
			if HasMedia(item) {
				return true
			}
		}
	}
	return false
}

// contentJSON is the wire form of Content: a "type" discriminant plus the
// fields of that variant.
type contentJSON struct {
	Type            SubmissionType    `json:"type"`
	Text            string            `json:"text,omitempty"`
	URL             string            `json:"url,omitempty"`
	Caption         string            `json:"caption,omitempty"`
	Transcript      string            `json:"transcript,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	Items           []json.RawMessage `json:"items,omitempty"`
}

// MarshalContent encodes c with its type discriminant.
func MarshalContent(c Content) ([]byte, error) {
	var w contentJSON
	switch v := c.(type) {
	case TextContent:
		w = contentJSON{Type: TypeText, Text: v.Text}
	case ImageContent:
		w = contentJSON{Type: TypeImage, URL: v.URL, Caption: v.Caption}
	case ScreenshotContent:
		w = contentJSON{Type: TypeScreenshot, URL: v.URL, Caption: v.Caption}
	case VideoContent:
		w = contentJSON{Type: TypeVideo, URL: v.URL, Transcript: v.Transcript, DurationSeconds: v.DurationSeconds}
	case MultipleContent:
		w = contentJSON{Type: TypeMultiple}
		for _, item := range v.Items {
			b, err := MarshalContent(item)
			if err != nil {
				return nil, err
			}
			w.Items = append(w.Items, b)
		}
	default:
		return nil, fmt.Errorf("unsupported content %T", c)
	}
	return json.Marshal(w)
}

// UnmarshalContent decodes content written by MarshalContent.
func UnmarshalContent(data []byte) (Content, error) {
	var w contentJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	switch w.Type {
	case TypeText:
		return TextContent{Text: w.Text}, nil
	case TypeImage:
		return ImageContent{URL: w.URL, Caption: w.Caption}, nil
	case TypeScreenshot:
		return ScreenshotContent{URL: w.URL, Caption: w.Caption}, nil
	case TypeVideo:
		return VideoContent{URL: w.URL, Transcript: w.Transcript, DurationSeconds: w.DurationSeconds}, nil
	case TypeMultiple:
		m := MultipleContent{}
		for _, raw := range w.Items {
			item, err := UnmarshalContent(raw)
			if err != nil {
				return nil, err
			}
			m.Items = append(m.Items, item)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("decode content: unknown type %q", w.Type)
	}
}

type submissionJSON struct {
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

func (s Submission) MarshalJSON() ([]byte, error) {
	var content json.RawMessage
	if s.Content != nil {
		b, err := MarshalContent(s.Content)
		if err != nil {
			return nil, err
		}
		content = b
	}
	return json.Marshal(submissionJSON{
		ID:                s.ID,
		StudentID:         s.StudentID,
		ChallengeID:       s.ChallengeID,
		CompetencyID:      s.CompetencyID,
		SkillLevel:        s.SkillLevel,
		Content:           content,
		AttemptNumber:     s.AttemptNumber,
		PreviousAttemptID: s.PreviousAttemptID,
		SubmittedAt:       s.SubmittedAt,
	})
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var w submissionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Submission{
		ID:                w.ID,
		StudentID:         w.StudentID,
		ChallengeID:       w.ChallengeID,
		CompetencyID:      w.CompetencyID,
		SkillLevel:        w.SkillLevel,
		AttemptNumber:     w.AttemptNumber,
		PreviousAttemptID: w.PreviousAttemptID,
		SubmittedAt:       w.SubmittedAt,
	}
	if len(w.Content) > 0 && string(w.Content) != "null" {
		c, err := UnmarshalContent(w.Content)
		if err != nil {
			return err
		}
		s.Content = c
	}
	return nil
}
