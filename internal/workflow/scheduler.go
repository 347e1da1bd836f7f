package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stageflow/internal/config"
	"stageflow/internal/logging"
)

// Schedules holds the cron expressions of the periodic sweeps.
type Schedules struct {
	AutoTransitions string
	Escalations     string
}

// SchedulesFromConfig reads the sweep schedules from configuration.
func SchedulesFromConfig(cfg *config.Config) Schedules {
	return Schedules{
		AutoTransitions: cfg.Workflow.AutoTransitionSchedule,
		Escalations:     cfg.Workflow.EscalationSchedule,
	}
}

// Scheduler runs the auto-transition and escalation sweeps on cron schedules.
// A sweep that is still running when its next tick fires is skipped.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	runCtx  context.Context
	entries map[string]cron.EntryID
}

// NewScheduler parses the schedules and registers both sweeps.
func NewScheduler(engine *Engine, schedules Schedules, logger *slog.Logger) (*Scheduler, error) {
	if engine == nil {
		return nil, errors.New("scheduler requires an engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	adapter := cronLogger{logger: logger}
	s := &Scheduler{
		engine:  engine,
		logger:  logger,
		entries: make(map[string]cron.EntryID, 2),
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
	}
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{sweepAuto, schedules.AutoTransitions, s.runAutoTransitions},
		{sweepEscalations, schedules.Escalations, s.runEscalations},
	}
	for _, job := range jobs {
		run := job.run
		id, err := s.cron.AddFunc(job.spec, func() { run(s.context()) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
		s.entries[job.name] = id
	}
	return s, nil
}

// Start begins firing sweeps until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started",
		logging.String("auto_next", s.nextRun(sweepAuto)),
		logging.String("escalation_next", s.nextRun(sweepEscalations)),
		logging.String(logging.FieldEventType, "scheduler_started"),
	)
	return nil
}

// Stop halts the cron loop and waits for in-flight sweeps.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
}

// Running reports whether the cron loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Next returns the next fire time of each sweep, keyed by sweep name.
func (s *Scheduler) Next() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) nextRun(name string) string {
	next := s.cron.Entry(s.entries[name]).Next
	if next.IsZero() {
		return "pending"
	}
	return next.Format(time.RFC3339)
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}

func (s *Scheduler) runAutoTransitions(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.engine.ProcessAutoTransitions(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.ErrorWithContext(s.logger, "auto transition sweep failed", "auto_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the workflow database"),
		)
		return
	}
	s.logger.Debug("auto transition sweep finished",
		logging.Int("scanned", report.Scanned),
		logging.Int("advanced", report.Advanced),
		logging.Int("failed", report.Failed),
	)
}

func (s *Scheduler) runEscalations(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.engine.ProcessSLANotifications(ctx, 0); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.ErrorWithContext(s.logger, "escalation sweep failed", "escalation_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the workflow database"),
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
