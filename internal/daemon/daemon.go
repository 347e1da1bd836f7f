package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"stageflow/internal/api"
	"stageflow/internal/config"
	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/preflight"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

// Daemon runs the sweep scheduler and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	engine    *workflow.Engine
	scheduler *workflow.Scheduler
	server    *apiServer

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, engine *workflow.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || engine == nil {
		return nil, errors.New("daemon requires config, store, and workflow engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	scheduler, err := workflow.NewScheduler(engine, workflow.SchedulesFromConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("configure scheduler: %w", err)
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		engine:    engine,
		scheduler: scheduler,
		lockPath:  lockPath,
		pidPath:   cfg.PIDPath(),
		lock:      flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks and launches the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stageflow daemon instance is already running")
	}

	if failed := preflight.Failed(preflight.RunAll(ctx, d.cfg)); len(failed) > 0 {
		_ = d.lock.Unlock()
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}
	d.logValidation(ctx)

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.release()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.server.start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.release()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("stageflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.cfg.DatabasePath()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// logValidation reports configuration warnings at startup without blocking it.
func (d *Daemon) logValidation(ctx context.Context) {
	report, err := d.engine.ValidateWorkflowConfiguration(ctx, 0)
	if err != nil {
		logging.WarnWithContext(d.logger, "workflow configuration check failed", "config_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run stageflow validate for details"),
		)
		return
	}
	for _, w := range report.Warnings {
		logging.WarnWithContext(d.logger, w.Message, "workflow_config_warning",
			logging.String("code", w.Code),
			logging.String(logging.FieldErrorHint, "fix the stage and transition definitions"),
			logging.String(logging.FieldImpact, "affected items may not progress"),
		)
	}
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.scheduler.Stop()
	d.release()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("stageflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) release() {
	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		MetricsBind:  d.server.address(),
	}
	if status.Running {
		status.NextRuns = make(map[string]string)
		for name, at := range d.scheduler.Next() {
			if !at.IsZero() {
				status.NextRuns[name] = at.UTC().Format(time.RFC3339)
			}
		}
	}
	return status
}

// Locked reports whether another process holds the daemon lock at path.
func Locked(path string) (bool, error) {
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
