// Package staging reclaims disk space from leftovers in the export
// directories: partial cross-device copies abandoned by an interrupted
// promotion.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"evalpilot/internal/fileutil"
	"evalpilot/internal/logging"
)

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStalePartials removes partial copies in dir older than maxAge. Younger
// partials may belong to a promotion still running in another process.
func CleanStalePartials(ctx context.Context, dir string, maxAge time.Duration, dryRun bool, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !fileutil.IsPartialName(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if !dryRun {
			if err := os.RemoveAll(path); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logging.WarnWithContext(logger, "failed to remove stale partial copy", "partial_cleanup_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check storage_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale partial copy",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.Bool("dry_run", dryRun),
				logging.String(logging.FieldEventType, "partial_cleanup"),
			)
		}
	}
	return result
}
