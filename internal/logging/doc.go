// Package logging assembles structured slog loggers and formatting helpers used
// across evalpilot.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, tees every record into a per-run JSON archive, and exposes
// context-aware helpers so pass code can automatically tag log lines with the
// pass ID and model. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
