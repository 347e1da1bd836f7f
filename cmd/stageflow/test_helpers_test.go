package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("STAGEFLOW_NTFY_TOPIC", "")
	t.Setenv("STAGEFLOW_ACTOR", "")

	configPath := filepath.Join(base, "stageflow.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[logging]
format = "json"
level = "warn"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, actor string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", e.configPath}
	if actor != "" {
		flags = append(flags, "--actor", actor)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, actor string, args ...string) string {
	t.Helper()
	out, err := e.run(t, actor, args...)
	if err != nil {
		t.Fatalf("stageflow %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *cliTestEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
