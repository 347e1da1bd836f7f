package priority_test

import (
	"testing"

	"stageflow/internal/priority"
)

func TestForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  priority.Level
	}{
		{-0.5, priority.Low},
		{0.1, priority.Low},
		{0.3, priority.Medium},
		{0.59, priority.Medium},
		{0.6, priority.High},
		{0.8, priority.Critical},
		{4, priority.Critical},
	}
	for _, tc := range cases {
		if got := priority.ForScore(tc.score); got != tc.want {
			t.Fatalf("ForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	level, err := priority.ParseLevel(" HIGH ")
	if err != nil || level != priority.High {
		t.Fatalf("ParseLevel = %q, %v", level, err)
	}
	if _, err := priority.ParseLevel("urgent"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if priority.Critical.Rank() <= priority.High.Rank() {
		t.Fatal("expected critical to outrank high")
	}
}

func TestFloorRoundTrips(t *testing.T) {
	for _, level := range []priority.Level{priority.Low, priority.Medium, priority.High, priority.Critical} {
		if got := priority.ForScore(level.Floor()); got != level {
			t.Fatalf("ForScore(%s.Floor()) = %s", level, got)
		}
	}
}
