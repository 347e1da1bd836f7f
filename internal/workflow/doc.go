// Package workflow is the engine that moves work items between stages.
//
// The Engine answers whether an item may move (CanAdvance, Check), commits
// moves (Advance, ProcessApprovalWorkflow), runs the auto-transition and SLA
// sweeps, and reports on workflow state, history, metrics and bottlenecks.
// Every commit is a compare-and-swap on the caller's item snapshot: a stale
// snapshot fails with flowerr.ErrConcurrencyConflict and is never retried
// here.
//
// The Scheduler runs the two sweeps on cron schedules from config. Each sweep
// skips a tick while its previous run is still going; the two sweeps are
// independent of each other.
package workflow
