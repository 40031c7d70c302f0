package grader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowl-learning/wowl/internal/assessment"
)

func gradeRequest() assessment.GradeRequest {
	return assessment.GradeRequest{
		Submission: assessment.Submission{
			ID:            "sub-1",
			StudentID:     "stu-1",
			ChallengeID:   "ch-1",
			CompetencyID:  "math-area-perimeter",
			SkillLevel:    3,
			AttemptNumber: 1,
			Content: assessment.MultipleContent{Items: []assessment.Content{
				assessment.ImageContent{URL: "https://cdn.example.com/garden.png", Caption: "My garden is 4 by 6."},
				assessment.VideoContent{URL: "https://cdn.example.com/walk.mp4", DurationSeconds: 42},
			}},
		},
		Criteria: []assessment.Criterion{
			{ID: "shows-skill", Name: "Shows the skill", Description: "The pieces together show the skill", Weight: 2, Method: assessment.MethodReview},
		},
	}
}

func TestLLMGrader_Grade(t *testing.T) {
	m := NewScriptedModel(ScriptedReply{Content: json.RawMessage(`{"grades":[
		{"criterion_id":"shows-skill","score":4,"observation":" Area found by counting squares. ","strength":"Neat grid.","improvement":"","confidence":0.7},
		{"criterion_id":"made-up","score":1,"observation":"x","strength":"","improvement":"","confidence":1}
	]}`)})
	g := NewLLMGrader(m, 0, 0.2)

	grades, err := g.Grade(context.Background(), gradeRequest())
	require.NoError(t, err)
	require.Len(t, grades, 1)
	got := grades["shows-skill"]
	assert.Equal(t, 4.0, got.Score)
	assert.Equal(t, "Area found by counting squares.", got.Observation)
	assert.Equal(t, 0.7, got.Confidence)

	require.Equal(t, 1, m.Calls())
	p := m.Prompts[0]
	assert.Equal(t, GradesSchema, p.Schema)
	assert.Equal(t, 1024, p.MaxTokens)
	assert.Contains(t, p.User, "Image: https://cdn.example.com/garden.png")
	assert.Contains(t, p.User, "Video: https://cdn.example.com/walk.mp4 (42 seconds)")
	assert.Contains(t, p.User, "My garden is 4 by 6.")
	assert.Contains(t, p.User, "- shows-skill: Shows the skill.")
	assert.Contains(t, p.User, "grade 3")
	assert.Equal(t, []Attachment{
		{URL: "https://cdn.example.com/garden.png", MIMEType: "image/png"},
		{URL: "https://cdn.example.com/walk.mp4", MIMEType: "video/mp4"},
	}, p.Attachments)
}

func TestMimeFor(t *testing.T) {
	assert.Equal(t, "image/png", mimeFor("https://cdn.example.com/a/garden.PNG?sig=abc", "image/jpeg"))
	assert.Equal(t, "image/jpeg", mimeFor("https://cdn.example.com/upload/123", "image/jpeg"))
	assert.Equal(t, "image/png", mimeFor("https://cdn.example.com/notes.json", "image/png"))
}

func TestLLMGrader_SchemaViolation(t *testing.T) {
	m := NewScriptedModel(ScriptedReply{Content: json.RawMessage(`{"grades":[{"criterion_id":"shows-skill","score":9}]}`)})
	_, err := NewLLMGrader(m, 0, 0).Grade(context.Background(), gradeRequest())
	var inv *InvalidReplyError
	assert.True(t, errors.As(err, &inv), "got %v", err)
}

func TestLLMGrader_BackendError(t *testing.T) {
	m := NewScriptedModel()
	_, err := NewLLMGrader(m, 0, 0).Grade(context.Background(), gradeRequest())
	var un *UnavailableError
	assert.True(t, errors.As(err, &un))
}

func TestLLMGrader_NoCriteria(t *testing.T) {
	m := NewScriptedModel()
	req := gradeRequest()
	req.Criteria = nil
	grades, err := NewLLMGrader(m, 0, 0).Grade(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, grades)
	assert.Zero(t, m.Calls())
}

func TestSystemPromptAsksForForwardGuidance(t *testing.T) {
	assert.Contains(t, systemPrompt, "Never say the work is wrong")
}
