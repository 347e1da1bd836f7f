// Package registry resolves stage and transition definitions per scope.
//
// A scope sees the global definitions (scope 0) overlaid with its own: a
// scoped stage replaces the global stage with the same order, and a scoped
// transition replaces the global transition between the same pair of
// orders. Edges are matched by stage order so a global edge keeps working
// when a scope overrides one of its endpoints.
//
// Lookups never return inactive definitions. Removal is a soft delete in the
// backing store.
package registry
