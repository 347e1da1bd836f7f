// Package daemon coordinates the long-running stageflowd process.
//
// It wires configuration, the workflow store, the engine and its sweep
// scheduler into a single lifecycle with flock-based locking to prevent
// multiple instances. Preflight directory checks gate startup. When
// paths.metrics_bind is set the daemon also serves Prometheus metrics and
// read-only JSON status endpoints.
//
// Keep orchestration logic here: workflow semantics live in the workflow
// package while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
