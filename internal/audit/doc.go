// Package audit builds the audit entry and workflow event written with each
// committed change, and replays an item's trail into a stage history.
//
// Records are only constructed here; internal/store writes them inside the
// transaction that moves the item so the trail and the item never diverge.
package audit
