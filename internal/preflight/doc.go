// Package preflight provides readiness checks for the filesystem paths and
// external services stageflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting the scheduler and refuses to
//     start when a required directory is unusable.
//   - The CLI "stageflow doctor" command renders every check result.
//
// Optional features are reported as passed with a "Disabled" detail.
package preflight
