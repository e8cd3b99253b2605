// Package daemon runs evalpilot passes on an interval as a single long-lived
// process.
//
// A flock on log_dir/evalpilot.lock guarantees that at most one process runs
// passes against the same storage at a time; the one-shot "run" command takes
// the same lock. The daemon runs a pass immediately, then waits
// workflow.interval after each pass finishes before starting the next.
// Cancellation stops the loop between passes and aborts a pass in progress at
// its next model or export boundary.
package daemon
