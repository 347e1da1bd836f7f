// Package store persists stage and transition definitions, work items,
// actors, the audit trail and the workflow event log in SQLite.
//
// Every committed stage change runs in a single transaction that performs a
// compare-and-swap on the work item's current stage and last entry time,
// appends exactly one audit entry and one workflow event, and commits them
// together. Audit entries and events are append-only; triggers reject updates
// and deletes. Definitions are only ever soft-deleted so historical entries
// keep resolving.
//
// Schema changes are appended as migrations in schema.go; a database written
// by a newer build refuses to open.
package store
