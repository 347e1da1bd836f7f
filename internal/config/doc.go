// Package config loads, normalizes, and validates stageflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads the TOML file named by --config or STAGEFLOW_CONFIG (or
// the per-user file, then ./stageflow.toml), and honours the
// STAGEFLOW_NTFY_TOPIC and STAGEFLOW_API_TOKEN environment fallbacks. Sweep
// schedules are checked with the same cron parser the scheduler uses, and SLA at-risk ratios are resolved per scope
// so the tracker receives its thresholds at construction.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
