// Package directory resolves actors and their roles.
//
// Roles form a total order so that transition role floors and approver
// requirements reduce to a rank comparison. The package defines the
// Directory contract the engine consumes plus a Static implementation for
// tests and embedded use; the SQLite store provides the persistent one.
package directory
