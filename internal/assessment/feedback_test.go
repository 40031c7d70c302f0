package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsForwardGuidance(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Try adding a label to each group.", true},
		{"Next time, show how you got the total.", true},
		{"Add more detail: aim for at least 40 words.", true},
		{"Go back and count the last row again.", true},
		{"This answer is wrong.", false},
		{"Try again, your spelling was incorrect.", false},
		{"You didn't explain your steps.", false},
		{"Good effort overall.", false},
		{"Use your badge chart to check.", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForwardGuidance(tt.text))
		})
	}
}

func TestForwardGuidance(t *testing.T) {
	c := Criterion{ID: "shows-skill", Name: "Shows the skill", Description: "The picture shows the skill being practiced"}

	assert.Equal(t, "Try labeling each group.", ForwardGuidance("  Try labeling each group. ", c))

	got := ForwardGuidance("The groups are wrong. Try drawing equal groups.", c)
	assert.Equal(t, "Try drawing equal groups.", got)

	got = ForwardGuidance("This is a poor drawing.", c)
	assert.Equal(t, "Next time, focus on this: the picture shows the skill being practiced.", got)
	assert.True(t, IsForwardGuidance(got))

	got = ForwardGuidance("Bad.", Criterion{})
	assert.True(t, IsForwardGuidance(got))
}
