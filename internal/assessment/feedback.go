package assessment

import (
	"strings"
)

// Feedback is the structured note a student sees after an assessment.
type Feedback struct {
	Opening      string          `json:"opening"`
	Celebrations []string        `json:"celebrations,omitempty"`
	Points       []FeedbackPoint `json:"points"`
	Guidance     string          `json:"guidance"`
	Closing      string          `json:"closing"`
}

// FeedbackPoint pairs an observation about one criterion with a strength,
// a next step, or both.
type FeedbackPoint struct {
	CriterionID string `json:"criterion_id"`
	Observation string `json:"observation"`
	Strength    string `json:"strength,omitempty"`
	Improvement string `json:"improvement,omitempty"`
}

// verdictPhrases mark text that judges the work instead of pointing to a
// next step.
var verdictPhrases = []string{
	"wrong", "incorrect", "not correct", "bad", "poor", "fail", "failed",
	"mistake", "terrible", "sloppy", "lazy", "not good", "unacceptable",
	"doesn't make sense", "does not make sense", "you didn't", "you did not",
}

// forwardStarters are the openings forward guidance may use.
var forwardStarters = []string{
	"try", "next", "add", "include", "use", "write", "explain", "show",
	"check", "practice", "look", "describe", "give", "aim", "keep", "make",
	"read", "compare", "record", "take", "think", "see if", "start", "label",
	"draw", "talk", "tell", "say", "find", "count", "ask", "go back",
}

// IsForwardGuidance reports whether s is phrased as a concrete next step
// rather than a verdict.
func IsForwardGuidance(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return false
	}
	for _, v := range verdictPhrases {
		if containsWord(t, v) {
			return false
		}
	}
	for _, st := range forwardStarters {
		if t == st || strings.HasPrefix(t, st+" ") || strings.HasPrefix(t, st+",") || strings.HasPrefix(t, st+":") {
			return true
		}
	}
	return false
}

// ForwardGuidance returns s if it is already forward guidance. Otherwise
// it keeps the sentences of s that are, and falls back to a next step
// built from the criterion.
func ForwardGuidance(s string, c Criterion) string {
	if IsForwardGuidance(s) {
		return strings.TrimSpace(s)
	}
	var kept []string
	for _, sentence := range splitSentences(s) {
		if IsForwardGuidance(sentence) {
			kept = append(kept, sentence)
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}
	return fallbackGuidance(c)
}

func fallbackGuidance(c Criterion) string {
	focus := strings.ToLower(strings.TrimSpace(c.Description))
	if focus == "" {
		focus = strings.ToLower(strings.TrimSpace(c.Name))
	}
	if focus == "" {
		return "Next time, take one more look at this part before you submit."
	}
	return "Next time, focus on this: " + strings.TrimSuffix(focus, ".") + "."
}

// containsWord matches phrase on word boundaries so "badge" is not "bad".
func containsWord(text, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		if boundary(text, start-1) && boundary(text, end) {
			return true
		}
		i = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '\'')
}
