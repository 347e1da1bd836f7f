package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"stageflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STAGEFLOW_NTFY_TOPIC", "https://ntfy.example/team")
	t.Setenv("STAGEFLOW_CONFIG", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "stageflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "stageflow.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/team" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.SLA.AtRiskRatio != 0.25 {
		t.Fatalf("unexpected at-risk ratio %v", cfg.SLA.AtRiskRatio)
	}
	if cfg.Bottlenecks.StuckHours != 72 {
		t.Fatalf("unexpected stuck hours %v", cfg.Bottlenecks.StuckHours)
	}
	if cfg.Workflow.SystemActor != "system" {
		t.Fatalf("unexpected system actor %q", cfg.Workflow.SystemActor)
	}
}

func TestLoadParsesScopeRatios(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "stageflow.toml")

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.SLA.ScopeAtRiskRatios = map[string]float64{"7": 0.5}
	cfg.Bottlenecks.StuckHours = 24
	payload, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	ratios := loaded.AtRiskRatios()
	if ratios[7] != 0.5 {
		t.Fatalf("expected scope 7 ratio 0.5, got %v", ratios)
	}
	if loaded.Bottlenecks.StuckHours != 24 {
		t.Fatalf("unexpected stuck hours %v", loaded.Bottlenecks.StuckHours)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"ratio", "[sla]\nat_risk_ratio = 1.5\n", "sla.at_risk_ratio"},
		{"scope key", "[sla.scope_at_risk_ratios]\n\"abc\" = 0.3\n", "scope_at_risk_ratios"},
		{"schedule", "[workflow]\nauto_transition_schedule = \"every minute\"\n", "workflow.auto_transition_schedule"},
		{"approver", "[workflow]\ndefault_approver_role = \"owner\"\n", "workflow.default_approver_role"},
		{"stuck hours", "[bottlenecks]\nstuck_hours = -1\n", "bottlenecks.stuck_hours"},
		{"format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"unknown key", "[workflow]\nlanes = 3\n", "parse config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTripsThroughLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Workflow.AutoTransitionSchedule != "@every 1m" {
		t.Fatalf("unexpected schedule %q", cfg.Workflow.AutoTransitionSchedule)
	}
}

func TestLoadHonoursConfigEnvAndRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	body := "[paths]\ndata_dir = " + tomlLiteral(filepath.Join(dir, "data")) + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STAGEFLOW_CONFIG", path)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path || !exists {
		t.Fatalf("expected %s to be used, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}

	if err := os.WriteFile(path, []byte(body+"[workflow]\nmystery = 1\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	_, _, _, err = config.Load("")
	if err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

// tomlLiteral wraps s in a TOML literal string.
func tomlLiteral(s string) string {
	return "'" + s + "'"
}
