package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stageflow/internal/preflight"
	"stageflow/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	testsupport.WriteFile(t, file, "x")

	cases := []struct {
		name string
		path string
		pass bool
	}{
		{"temp dir", dir, true},
		{"missing", filepath.Join(dir, "nope"), false},
		{"file", file, false},
		{"blank", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := preflight.CheckDirectoryAccess("test", tc.path)
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tc.pass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	missing := preflight.CheckDatabaseFile(filepath.Join(dir, "stageflow.db"))
	if !missing.Passed || !strings.Contains(missing.Detail, "created on first use") {
		t.Fatalf("missing database should pass, got %+v", missing)
	}

	path := filepath.Join(dir, "existing.db")
	testsupport.WriteFile(t, path, strings.Repeat("x", 2048))
	existing := preflight.CheckDatabaseFile(path)
	if !existing.Passed || !strings.Contains(existing.Detail, "kB") {
		t.Fatalf("expected sized pass, got %+v", existing)
	}

	if result := preflight.CheckDatabaseFile(dir); result.Passed {
		t.Fatal("expected failure for directory path")
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/locked/json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("poll") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok := preflight.CheckNtfy(context.Background(), srv.URL+"/stageflow")
	if !ok.Passed || !ok.Optional {
		t.Fatalf("expected optional pass, got %+v", ok)
	}
	locked := preflight.CheckNtfy(context.Background(), srv.URL+"/locked")
	if locked.Passed || !strings.Contains(locked.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", locked)
	}
	if blank := preflight.CheckNtfy(context.Background(), ""); blank.Passed {
		t.Fatal("expected failure for missing topic")
	}
}

func TestCheckNtfyFromConfigDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := preflight.CheckNtfyFromConfig(context.Background(), cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got %+v", result)
	}
}

func TestCheckSchedules(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	result := preflight.CheckSchedules(cfg, now)
	if !result.Passed || !strings.Contains(result.Detail, "from now") {
		t.Fatalf("expected next-run detail, got %+v", result)
	}

	cfg.Workflow.EscalationSchedule = "not a schedule"
	result = preflight.CheckSchedules(cfg, now)
	if result.Passed || !strings.Contains(result.Detail, "escalations") {
		t.Fatalf("expected escalation schedule failure, got %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	if results := preflight.RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	if err := os.RemoveAll(cfg.Paths.LogDir); err != nil {
		t.Fatalf("remove log dir: %v", err)
	}
	failed := preflight.Failed(preflight.RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("expected log directory failure, got %+v", failed)
	}
}
