// Package main hosts the stageflow CLI entrypoint and command graph.
//
// The Cobra-based command tree opens the workflow database directly and
// drives the workflow engine: stage and transition administration, work item
// lifecycle, approvals, SLA inspection, sweeps, and configuration
// scaffolding. Rendering lives here; the rules live in internal/workflow.
package main
