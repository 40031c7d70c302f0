package competency

import (
	"strings"
	"testing"
)

func TestValidate_Problems(t *testing.T) {
	domains := map[Subject][]string{SubjectMath: {"ops"}}
	tests := []struct {
		name string
		defs []Competency
		want string
	}{
		{
			name: "duplicate id",
			defs: []Competency{
				{ID: "A", Subject: SubjectMath, Domain: "ops"},
				{ID: "A", Subject: SubjectMath, Domain: "ops"},
			},
			want: "duplicate competency ID",
		},
		{
			name: "dangling prerequisite",
			defs: []Competency{{ID: "A", Subject: SubjectMath, Domain: "ops", Prerequisites: []string{"Z"}}},
			want: "nonexistent prerequisite",
		},
		{
			name: "self prerequisite",
			defs: []Competency{{ID: "A", Subject: SubjectMath, Domain: "ops", Prerequisites: []string{"A"}}},
			want: "lists itself",
		},
		{
			name: "unknown subject",
			defs: []Competency{{ID: "A", Subject: "art", Domain: "ops"}},
			want: "unknown subject",
		},
		{
			name: "undeclared domain",
			defs: []Competency{{ID: "A", Subject: SubjectMath, Domain: "geometry"}},
			want: "undeclared math domain",
		},
		{
			name: "negative hours",
			defs: []Competency{{ID: "A", Subject: SubjectMath, Domain: "ops", MasteryTimeHours: -1}},
			want: "mastery_time_hours",
		},
		{
			name: "grade out of range",
			defs: []Competency{{ID: "A", Subject: SubjectMath, Domain: "ops", Grade: 14}},
			want: "outside PreK..12",
		},
		{
			name: "two-node cycle",
			defs: []Competency{
				{ID: "A", Subject: SubjectMath, Domain: "ops", Prerequisites: []string{"B"}},
				{ID: "B", Subject: SubjectMath, Domain: "ops", Prerequisites: []string{"A"}},
			},
			want: "cycle detected involving competencies: A, B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.defs, domains)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	defs := []Competency{
		{ID: "A", Subject: SubjectMath, Domain: "ops"},
		{ID: "B", Subject: SubjectMath, Domain: "ops", Prerequisites: []string{"A"}},
	}
	if err := validate(defs, map[Subject][]string{SubjectMath: {"ops"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	defs := []Competency{
		{ID: "A", Subject: "art", Domain: "ops"},
		{ID: "B", Subject: SubjectMath, Domain: "ops", Prerequisites: []string{"missing"}},
	}
	err := validate(defs, map[Subject][]string{SubjectMath: {"ops"}})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unknown subject", "nonexistent prerequisite"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}
