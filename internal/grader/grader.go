package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"text/template"

	"github.com/wowl-learning/wowl/internal/assessment"
)

const systemPrompt = `You are Wowl, a warm and encouraging tutor for children in grades PreK to 8.
You score one piece of student work against rubric criteria on a 1 to 5 scale:
1 emerging, 2 developing, 3 proficient, 4 advanced, 5 mastered.

Rules:
- Score only the criteria listed, using their IDs exactly.
- Observations describe what the work shows. Never judge the child.
- Improvements are a single concrete next step that starts with a verb
  like "Try", "Add", "Show" or "Explain". Never say the work is wrong, bad or incorrect.
- Leave strength or improvement empty when there is nothing to say.
- Use confidence below 0.5 when you cannot see enough of the work.`

var userTemplate = template.Must(template.New("grade").Parse(`Competency: {{.CompetencyID}} (grade {{.Grade}})
Challenge type: {{.Type}}
Attempt: {{.Attempt}}
{{- range .Media}}
{{.Kind}}: {{.URL}}{{if .Note}} ({{.Note}}){{end}}
{{- end}}
{{- if .Text}}

Student's words:
"""
{{.Text}}
"""
{{- end}}

Criteria to score:
{{- range .Criteria}}
- {{.ID}}: {{.Name}}. {{.Description}}
{{- end}}`))

type mediaLine struct {
	Kind     string
	URL      string
	Note     string
	MIMEType string
}

type promptData struct {
	CompetencyID string
	Grade        string
	Type         assessment.SubmissionType
	Attempt      int
	Media        []mediaLine
	Text         string
	Criteria     []assessment.Criterion
}

type gradesOutput struct {
	Grades []struct {
		CriterionID string  `json:"criterion_id"`
		Score       float64 `json:"score"`
		Observation string  `json:"observation"`
		Strength    string  `json:"strength"`
		Improvement string  `json:"improvement"`
		Confidence  float64 `json:"confidence"`
	} `json:"grades"`
}

// LLMGrader implements assessment.Grader on top of a Model.
type LLMGrader struct {
	model       Model
	maxTokens   int
	temperature float64
}

// NewLLMGrader creates a grader that asks m for structured grades.
func NewLLMGrader(m Model, maxTokens int, temperature float64) *LLMGrader {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMGrader{model: m, maxTokens: maxTokens, temperature: temperature}
}

// Grade scores req.Criteria. Grades for criteria that were not asked for
// are dropped; a missing grade is left for the engine to treat as
// unevaluated.
func (g *LLMGrader) Grade(ctx context.Context, req assessment.GradeRequest) (assessment.Grades, error) {
	if len(req.Criteria) == 0 {
		return assessment.Grades{}, nil
	}
	media := mediaLines(req.Submission.Content)
	user, err := buildPrompt(req, media)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	reply, err := g.model.Complete(ctx, Prompt{
		System:      systemPrompt,
		User:        user,
		Attachments: attachments(media),
		Schema:      GradesSchema,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("grade submission %s: %w", req.Submission.ID, err)
	}

	var out gradesOutput
	if err := json.Unmarshal(reply.Content, &out); err != nil {
		return nil, &InvalidReplyError{Content: reply.Content, Err: err}
	}

	wanted := make(map[string]bool, len(req.Criteria))
	for _, c := range req.Criteria {
		wanted[c.ID] = true
	}
	grades := make(assessment.Grades, len(out.Grades))
	for _, gr := range out.Grades {
		if !wanted[gr.CriterionID] {
			continue
		}
		grades[gr.CriterionID] = assessment.CriterionGrade{
			Score:       gr.Score,
			Observation: strings.TrimSpace(gr.Observation),
			Strength:    strings.TrimSpace(gr.Strength),
			Improvement: strings.TrimSpace(gr.Improvement),
			Confidence:  gr.Confidence,
		}
	}
	return grades, nil
}

func buildPrompt(req assessment.GradeRequest, media []mediaLine) (string, error) {
	sub := req.Submission
	data := promptData{
		CompetencyID: sub.CompetencyID,
		Grade:        sub.SkillLevel.String(),
		Type:         sub.Type(),
		Attempt:      sub.AttemptNumber,
		Media:        media,
		Text:         assessment.Text(sub.Content),
		Criteria:     req.Criteria,
	}
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func mediaLines(c assessment.Content) []mediaLine {
	switch v := c.(type) {
	case assessment.ImageContent:
		return []mediaLine{{Kind: "Image", URL: v.URL, MIMEType: mimeFor(v.URL, "image/jpeg")}}
	case assessment.ScreenshotContent:
		return []mediaLine{{Kind: "Screenshot", URL: v.URL, MIMEType: mimeFor(v.URL, "image/png")}}
	case assessment.VideoContent:
		var note string
		if v.DurationSeconds > 0 {
			note = fmt.Sprintf("%.0f seconds", v.DurationSeconds)
		}
		return []mediaLine{{Kind: "Video", URL: v.URL, Note: note, MIMEType: mimeFor(v.URL, "video/mp4")}}
	case assessment.MultipleContent:
		var out []mediaLine
		for _, item := range v.Items {
			out = append(out, mediaLines(item)...)
		}
		return out
	}
	return nil
}

func attachments(media []mediaLine) []Attachment {
	var out []Attachment
	for _, m := range media {
		if m.URL == "" {
			continue
		}
		out = append(out, Attachment{URL: m.URL, MIMEType: m.MIMEType})
	}
	return out
}

// mimeFor guesses a media type from the URL's file extension, falling
// back to def when the extension is missing or of the wrong kind.
func mimeFor(rawURL, def string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	t := mime.TypeByExtension(strings.ToLower(path.Ext(p)))
	if t == "" {
		return def
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	kind, _, _ := strings.Cut(def, "/")
	if !strings.HasPrefix(t, kind+"/") {
		return def
	}
	return t
}
