// Package logs reads the stageflow log file for the CLI: the last N lines,
// follow mode with truncation handling, and per-item filtering that works for
// both the console and JSON log formats.
package logs
