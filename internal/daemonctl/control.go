package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"stageflow/internal/api"
	"stageflow/internal/config"
	"stageflow/internal/daemon"
)

// ErrNotRunning is returned when no daemon process is recorded.
var ErrNotRunning = errors.New("stageflow daemon is not running")

const pollInterval = 100 * time.Millisecond

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult describes how the daemon was stopped.
type StopResult struct {
	PID    int
	Forced bool
}

// Launch starts a detached stageflowd process.
func Launch(executablePath, configPath string) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}
	var args []string
	if cfg := strings.TrimSpace(configPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureStarted launches the daemon unless one is already running and waits
// for it to record its pid.
func EnsureStarted(cfg *config.Config, executablePath, configPath string, timeout time.Duration) (StartResult, error) {
	if pid, err := RunningPID(cfg); err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	} else if !errors.Is(err, ErrNotRunning) {
		return StartResult{}, err
	}
	if err := Launch(executablePath, configPath); err != nil {
		return StartResult{}, err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pid, err := RunningPID(cfg); err == nil {
			return StartResult{State: StartStateStarted, PID: pid}, nil
		}
		time.Sleep(pollInterval)
	}
	return StartResult{}, fmt.Errorf("daemon failed to start within %s; check %s", timeout, cfg.LogPath())
}

// RunningPID returns the pid recorded by a live daemon.
func RunningPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s is corrupt", cfg.PIDPath())
	}
	if !alive(pid) {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// Stop sends SIGTERM to the daemon and waits up to grace for it to exit,
// then kills it.
func Stop(cfg *config.Config, grace time.Duration) (StopResult, error) {
	pid, err := RunningPID(cfg)
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("signal daemon: %w", err)
	}
	if waitForExit(pid, grace) {
		return result, nil
	}

	result.Forced = true
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon: %w", err)
	}
	if !waitForExit(pid, 2*time.Second) {
		return result, fmt.Errorf("daemon process %d did not exit", pid)
	}
	_ = os.Remove(cfg.PIDPath())
	return result, nil
}

// Status reports the daemon state, preferring the daemon's own HTTP status
// and falling back to the lock and pid files.
func Status(ctx context.Context, cfg *config.Config) api.DaemonStatus {
	if status, err := FetchStatus(ctx, cfg); err == nil {
		return status
	}
	status := api.DaemonStatus{
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		MetricsBind:  cfg.Paths.MetricsBind,
	}
	if pid, err := RunningPID(cfg); err == nil {
		status.Running = true
		status.PID = pid
		return status
	}
	if locked, err := daemon.Locked(cfg.LockPath()); err == nil {
		status.Running = locked
	}
	return status
}

// FetchStatus queries /api/status on the configured bind address.
func FetchStatus(ctx context.Context, cfg *config.Config) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	bind := strings.TrimSpace(cfg.Paths.MetricsBind)
	if bind == "" {
		return status, errors.New("daemon http endpoint disabled")
	}
	if host, port, err := net.SplitHostPort(bind); err == nil {
		if port == "0" {
			return status, errors.New("daemon http endpoint has no fixed port")
		}
		if host == "" || host == "0.0.0.0" || host == "::" {
			bind = net.JoinHostPort("127.0.0.1", port)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return status, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("daemon status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode daemon status: %w", err)
	}
	return status, nil
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !alive(pid)
}
