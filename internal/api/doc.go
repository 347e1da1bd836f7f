// Package api defines wire-format types and converters for stageflow's
// machine-readable output. It translates store, registry and workflow models
// into DTOs that scripts can consume without coupling to internal types.
//
// # Key Types
//
// WorkItem: an item with its stage name, priority level and optional SLA.
//
// Stage and Transition: definitions with stage orders resolved to names.
//
// AuditEntry and HistoryState: the raw audit trail and its stage visits.
//
// Decision, PendingApproval, Violation: engine outcomes for the CLI.
//
// DaemonStatus: runtime information about stageflowd.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Durations are reported as fractional hours
// and timestamps as RFC3339 with milliseconds in UTC.
package api
