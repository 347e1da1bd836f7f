package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for work item identifiers.
	FieldItemID = "item_id"
	// FieldStage is the standardized structured logging key for stage names.
	FieldStage = "stage"
	// FieldScopeID is the standardized structured logging key for business-vertical scopes.
	FieldScopeID = "scope_id"
	// FieldActorID is the standardized structured logging key for acting users.
	FieldActorID = "actor_id"
	// FieldTransitionID is the standardized structured logging key for transition definitions.
	FieldTransitionID = "transition_id"
	// FieldSweep names the periodic sweep that produced the log line.
	FieldSweep = "sweep"
	// FieldEventType classifies a log line for filtering and alerting.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	itemIDKey contextKey = iota
	actorIDKey
	sweepKey
)

// WithItemID tags ctx with a work item id for WithContext.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, itemIDKey, id)
}

// WithActorID tags ctx with the acting user for WithContext.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// WithSweep tags ctx with the running sweep name for WithContext.
func WithSweep(ctx context.Context, sweep string) context.Context {
	return context.WithValue(ctx, sweepKey, sweep)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(itemIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldItemID, id))
	}
	if actor, ok := ctx.Value(actorIDKey).(string); ok && actor != "" {
		fields = append(fields, slog.String(FieldActorID, actor))
	}
	if sweep, ok := ctx.Value(sweepKey).(string); ok && sweep != "" {
		fields = append(fields, slog.String(FieldSweep, sweep))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
