package workflow

import (
	"context"
	"log/slog"
	"time"

	"stageflow/internal/audit"
	"stageflow/internal/config"
	"stageflow/internal/directory"
	"stageflow/internal/logging"
	"stageflow/internal/notifications"
	"stageflow/internal/registry"
	"stageflow/internal/sla"
	"stageflow/internal/store"
	"stageflow/internal/validation"
)

// Store is the persistence surface the engine needs. *store.Store satisfies it.
type Store interface {
	registry.Backend
	GetWorkItem(ctx context.Context, id int64) (*store.WorkItem, error)
	ListWorkItems(ctx context.Context, filter store.ItemFilter) ([]*store.WorkItem, error)
	CreateWorkItem(ctx context.Context, item *store.WorkItem, record store.Record) (*store.WorkItem, error)
	CommitTransition(ctx context.Context, commit store.Commit) (store.Record, error)
	AppendRecord(ctx context.Context, record store.Record) (store.Record, error)
	ListAuditEntries(ctx context.Context, itemID int64) ([]*store.AuditEntry, error)
	ListAuditSince(ctx context.Context, scopeID int64, since time.Time) ([]*store.AuditEntry, error)
	RecordEscalation(ctx context.Context, esc store.Escalation) (bool, error)
}

// Settings are the engine's policy knobs.
type Settings struct {
	SystemActor         string
	DefaultApproverRole directory.Role
	// RejectToStage names the stage rejected items return to; empty keeps them in place.
	RejectToStage    string
	StuckHours       float64
	MinStuckItems    int
	AtRiskRatio      float64
	ScopeAtRiskRatio map[int64]float64
}

// SettingsFromConfig extracts engine settings from configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	role, err := directory.ParseRole(cfg.Workflow.DefaultApproverRole)
	if err != nil || role == directory.RoleNone {
		role = directory.RoleManager
	}
	return Settings{
		SystemActor:         cfg.Workflow.SystemActor,
		DefaultApproverRole: role,
		RejectToStage:       cfg.Workflow.RejectToStage,
		StuckHours:          cfg.Bottlenecks.StuckHours,
		MinStuckItems:       cfg.Bottlenecks.MinItems,
		AtRiskRatio:         cfg.SLA.AtRiskRatio,
		ScopeAtRiskRatio:    cfg.AtRiskRatios(),
	}
}

// Engine orchestrates stage transitions.
type Engine struct {
	store     Store
	registry  *registry.Registry
	directory directory.Directory
	validator *validation.Engine
	notifier  notifications.Service
	audit     *audit.Log
	sla       *sla.Monitor
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifier sets the notification dispatcher.
func WithNotifier(n notifications.Service) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithDirectory overrides the actor directory. By default the store's actor
// table is used.
func WithDirectory(d directory.Directory) Option {
	return func(e *Engine) {
		if d != nil {
			e.directory = d
		}
	}
}

// WithValidator supplies a validation engine with custom rules registered.
func WithValidator(v *validation.Engine) Option {
	return func(e *Engine) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an engine. When st also implements directory.Directory it
// backs the actor lookups.
func New(st Store, settings Settings, opts ...Option) *Engine {
	if settings.SystemActor == "" {
		settings.SystemActor = "system"
	}
	if settings.DefaultApproverRole == directory.RoleNone {
		settings.DefaultApproverRole = directory.RoleManager
	}
	e := &Engine{
		store:     st,
		validator: validation.New(),
		notifier:  notifications.Noop(),
		settings:  settings,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	if d, ok := st.(directory.Directory); ok {
		e.directory = d
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.directory == nil {
		e.directory = directory.NewStatic()
	}
	e.directory = directory.WithSystem(e.directory, settings.SystemActor)
	e.logger = logging.NewComponentLogger(e.logger, "workflow")
	e.registry = registry.New(st, registry.WithRuleCatalog(e.validator))
	e.audit = audit.NewLog(st)
	tracker := sla.Tracker{DefaultRatio: settings.AtRiskRatio, ScopeRatios: settings.ScopeAtRiskRatio}
	e.sla = sla.NewMonitor(tracker, st, e.registry, st, e.notifier, e.logger)
	return e
}

// Registry exposes the definition registry the engine resolves against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Validator exposes the validation engine so callers can register rules.
func (e *Engine) Validator() *validation.Engine {
	return e.validator
}

// Directory returns the actor directory, including the system identity.
func (e *Engine) Directory() directory.Directory {
	return e.directory
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// stampFor returns the timestamp for a new audit entry on item, never
// earlier than the item's last stage entry so the trail stays ordered.
func (e *Engine) stampFor(item *store.WorkItem) time.Time {
	now := e.clock()
	if now.Before(item.LastStageEntryAt) {
		return item.LastStageEntryAt
	}
	return now
}

func (e *Engine) itemLogger(ctx context.Context, item *store.WorkItem) *slog.Logger {
	return logging.WithContext(ctx, e.logger).With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int64(logging.FieldScopeID, item.ScopeID),
	)
}
