// Package preflight provides readiness checks for the filesystem paths and
// external binaries evalpilot depends on.
//
// The workflow runs RunAll before every pass and skips the pass when a
// required check fails. The CLI "evalpilot deps" command displays the same
// results.
package preflight
