package assessment

import (
	"fmt"
	"strings"
	"unicode"
)

// ruleResult is the outcome of scoring one criterion automatically.
type ruleResult struct {
	Score       float64 // 1..5
	Observation string
	Strength    string
	Improvement string
}

// strengthThreshold is the score at or above which a criterion counts as
// a strength; below it the criterion gets a next step.
const strengthThreshold = 3.0

// evaluateRule scores c against the student's text. ok is false when the
// criterion cannot be scored by rules (review method or no text).
func evaluateRule(c Criterion, text string) (ruleResult, bool) {
	if strings.TrimSpace(text) == "" {
		return ruleResult{}, false
	}
	switch c.Method {
	case MethodKeywords:
		return scoreKeywords(c, text), true
	case MethodLength:
		return scoreLength(c, text), true
	case MethodCompleteness:
		return scoreCompleteness(text), true
	}
	return ruleResult{}, false
}

func scoreKeywords(c Criterion, text string) ruleResult {
	words := wordSet(text)
	var found, missing []string
	for _, kw := range c.Keywords {
		if containsPhrase(text, words, kw) {
			found = append(found, kw)
		} else {
			missing = append(missing, kw)
		}
	}
	frac := float64(len(found)) / float64(len(c.Keywords))
	r := ruleResult{
		Score:       1 + 4*frac,
		Observation: fmt.Sprintf("Used %d of %d key ideas.", len(found), len(c.Keywords)),
	}
	if len(found) > 0 {
		r.Strength = fmt.Sprintf("You used key ideas like %s.", joinList(found))
	}
	if r.Score < strengthThreshold || len(missing) > 0 {
		r.Improvement = fmt.Sprintf("Try working these ideas into your answer: %s.", joinList(missing))
	}
	return r
}

func scoreLength(c Criterion, text string) ruleResult {
	n := len(strings.Fields(text))
	ratio := float64(n) / float64(c.MinWords)
	r := ruleResult{
		Score:       clampScore(1 + 3*ratio),
		Observation: fmt.Sprintf("Wrote %d words.", n),
	}
	if ratio >= 1 {
		r.Strength = "You gave plenty of detail."
	} else {
		r.Improvement = fmt.Sprintf("Add more detail: aim for at least %d words.", c.MinWords)
	}
	return r
}

func scoreCompleteness(text string) ruleResult {
	sentences := splitSentences(text)
	complete := 0
	for _, s := range sentences {
		if isCompleteSentence(s) {
			complete++
		}
	}
	frac := 0.0
	if len(sentences) > 0 {
		frac = float64(complete) / float64(len(sentences))
	}
	score := 1 + 4*frac
	if len(sentences) < 2 && score > 3 {
		score = 3
	}
	r := ruleResult{
		Score:       score,
		Observation: fmt.Sprintf("%d of %d sentences are complete.", complete, len(sentences)),
	}
	if score >= strengthThreshold {
		r.Strength = "Your sentences are clear and complete."
	}
	switch {
	case complete < len(sentences):
		r.Improvement = "Check that each sentence starts with a capital letter and ends with punctuation."
	case len(sentences) < 2:
		r.Improvement = "Add another sentence that explains your thinking."
	}
	return r
}

func clampScore(s float64) float64 {
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		set[w] = true
	}
	return set
}

// containsPhrase matches single words on word boundaries and multi-word
// phrases as substrings.
func containsPhrase(text string, words map[string]bool, phrase string) bool {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if strings.ContainsAny(p, " -") {
		return strings.Contains(strings.ToLower(text), p)
	}
	return words[p]
}

func splitSentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return out
}

func isCompleteSentence(s string) bool {
	s = strings.TrimSpace(s)
	if len(strings.Fields(s)) < 3 {
		return false
	}
	first := []rune(s)[0]
	last := s[len(s)-1]
	return unicode.IsUpper(first) && (last == '.' || last == '!' || last == '?')
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
