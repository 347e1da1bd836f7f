package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"

	"stageflow/internal/api"
	"stageflow/internal/config"
	"stageflow/internal/daemon"
	"stageflow/internal/testsupport"
	"stageflow/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	engine := workflow.New(st, workflow.SettingsFromConfig(cfg))
	d, err := daemon.New(cfg, st, engine, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || len(status.NextRuns) != 2 {
		t.Fatalf("expected running daemon with two scheduled sweeps, got %+v", status)
	}
	if locked, err := daemon.Locked(cfg.LockPath()); err != nil || !locked {
		t.Fatalf("Locked = %v, %v; want true", locked, err)
	}

	if data, err := os.ReadFile(cfg.PIDPath()); err != nil || strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected pid file with our pid, got %q, %v", data, err)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	if locked, err := daemon.Locked(cfg.LockPath()); err != nil || locked {
		t.Fatalf("Locked after stop = %v, %v; want false", locked, err)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.MetricsBind = ""
	first := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	st := testsupport.MustOpenStore(t, cfg)
	second, err := daemon.New(cfg, st, workflow.New(st, workflow.SettingsFromConfig(cfg)), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonServesStatusAndMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + d.Status().MetricsBind

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected status %+v", status)
	}

	metrics, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	metrics.Body.Close()
	if metrics.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", metrics.StatusCode)
	}
}

func TestDaemonRejectsInvalidSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.EscalationSchedule = "every tuesday"
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := daemon.New(cfg, st, workflow.New(st, workflow.SettingsFromConfig(cfg)), nil); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d := newDaemon(t, testsupport.NewConfig(t))
	sent, detail, err := d.TestNotification(context.Background())
	if err != nil || sent || detail != "ntfy topic not configured" {
		t.Fatalf("unexpected result %v %q %v", sent, detail, err)
	}
}
