package condition_test

import (
	"testing"
	"time"

	"stageflow/internal/condition"
	"stageflow/internal/directory"
)

func TestBlankScriptIsAlwaysTrue(t *testing.T) {
	script, err := condition.Parse("   ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if script != nil {
		t.Fatalf("expected nil script, got %#v", script)
	}
	if !script.Evaluate(condition.Subject{}) {
		t.Fatal("nil script must evaluate true")
	}
}

func TestEvaluateRules(t *testing.T) {
	subject := condition.Subject{
		Priority:    0.65,
		Role:        directory.RoleReviewer,
		ScopeID:     3,
		TimeInStage: 30 * time.Hour,
	}
	cases := []struct {
		name   string
		script string
		want   bool
	}{
		{"priority score", `{"rules":[{"type":"priority","operator":"greaterOrEqual","value":0.6}]}`, true},
		{"priority level", `{"rules":[{"type":"priority","operator":"equals","value":"high"}]}`, true},
		{"priority level below", `{"rules":[{"type":"priority","operator":"greaterOrEqual","value":"critical"}]}`, false},
		{"role floor", `{"rules":[{"type":"role","operator":"greaterOrEqual","value":"Manager"}]}`, false},
		{"scope equals", `{"rules":[{"type":"scope","operator":"equals","value":3}]}`, true},
		{"elapsed", `{"rules":[{"type":"timeElapsed","operator":"greaterThan","value":24}]}`, true},
		{"and short", `{"rules":[
			{"type":"scope","operator":"equals","value":3},
			{"type":"timeElapsed","operator":"lessThan","value":1}]}`, false},
		{"or any", `{"combinator":"or","rules":[
			{"type":"scope","operator":"equals","value":9},
			{"type":"timeElapsed","operator":"greaterOrEqual","value":30}]}`, true},
		{"unknown type passes", `{"rules":[{"type":"budget","operator":"whatever","value":{"limit":5}}]}`, true},
		{"empty rules", `{"combinator":"OR","rules":[]}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := condition.Evaluate(tc.script, subject)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseRejectsMalformedKnownRules(t *testing.T) {
	bad := []string{
		`{"rules":[{"type":"priority","operator":"about","value":1}]}`,
		`{"rules":[{"type":"role","operator":"equals","value":"owner"}]}`,
		`{"rules":[{"type":"scope","operator":"equals","value":"three"}]}`,
		`{"rules":[{"type":"timeElapsed","operator":"equals"}]}`,
		`{"combinator":"XOR","rules":[]}`,
		`not json`,
	}
	for _, text := range bad {
		if _, err := condition.Parse(text); err == nil {
			t.Fatalf("expected parse error for %s", text)
		}
	}
}

func TestUnknownListsUnrecognisedTypes(t *testing.T) {
	script, err := condition.Parse(`{"rules":[{"type":"budget"},{"type":"scope","operator":"equals","value":1}]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	unknown := script.Unknown()
	if len(unknown) != 1 || unknown[0] != "budget" {
		t.Fatalf("Unknown = %v", unknown)
	}
	if script.Rules[0].Kind() != condition.Kind("budget") {
		t.Fatalf("unexpected kind %q", script.Rules[0].Kind())
	}
}
