// Package flowerr defines the error taxonomy shared by the workflow engine,
// its registries and its persistence layer.
//
// Callers classify failures with errors.Is against the exported markers;
// Wrap attaches component and operation context without hiding either the
// marker or the underlying cause.
package flowerr
