package mastery

import (
	"encoding/json"
	"testing"
)

func TestLevel_Ordering(t *testing.T) {
	levels := AllLevels()
	for i := 1; i < len(levels); i++ {
		if levels[i] <= levels[i-1] {
			t.Errorf("%s should be greater than %s", levels[i], levels[i-1])
		}
		if levels[i].Weight() != i+1 {
			t.Errorf("%s weight = %d, want %d", levels[i], levels[i].Weight(), i+1)
		}
	}
}

func TestLevel_Next(t *testing.T) {
	tests := []struct {
		in, want Level
	}{
		{LevelEmerging, LevelDeveloping},
		{LevelDeveloping, LevelProficient},
		{LevelProficient, LevelAdvanced},
		{LevelAdvanced, LevelMastered},
		{LevelMastered, LevelMastered},
	}
	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range AllLevels() {
		got, err := ParseLevel(l.String())
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if _, err := ParseLevel("expert"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{1.0, LevelEmerging},
		{1.49, LevelEmerging},
		{1.5, LevelDeveloping},
		{2.49, LevelDeveloping},
		{2.5, LevelProficient},
		{3.5, LevelAdvanced},
		{4.5, LevelMastered},
		{5.0, LevelMastered},
	}
	for _, tt := range tests {
		if got := FromScore(tt.score); got != tt.want {
			t.Errorf("FromScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestLevel_JSON(t *testing.T) {
	type wrapper struct {
		L Level `json:"l"`
	}
	b, err := json.Marshal(wrapper{L: LevelAdvanced})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"l":"advanced"}` {
		t.Errorf("got %s", b)
	}
	var w wrapper
	if err := json.Unmarshal([]byte(`{"l":"developing"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.L != LevelDeveloping {
		t.Errorf("got %s, want developing", w.L)
	}
	if _, err := json.Marshal(wrapper{}); err == nil {
		t.Error("expected error marshaling zero level")
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		levels []Level
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []Level{LevelDeveloping}, 0},
		{"flat", []Level{LevelDeveloping, LevelDeveloping, LevelDeveloping}, 0},
		{"rising by one", []Level{LevelEmerging, LevelDeveloping, LevelProficient}, 1},
		{"falling", []Level{LevelAdvanced, LevelProficient}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trend(tt.levels); got != tt.want {
				t.Errorf("Trend() = %v, want %v", got, tt.want)
			}
		})
	}
}
