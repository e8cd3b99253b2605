package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"evalpilot/internal/config"
	"evalpilot/internal/fileutil"
	"evalpilot/internal/jobqueue"
	"evalpilot/internal/logging"
)

// PromoteResult contains the outcome of a promote pass.
type PromoteResult struct {
	Promoted     []Export
	Deduplicated []Export
	// Skipped exports belong to jobs that are still owned.
	Skipped []Export
	Errors  []ExportError
}

// RetireResult contains the outcome of a retire pass.
type RetireResult struct {
	Removed []Export
	Kept    []Export
	Errors  []ExportError
}

// Option configures a Manager.
type Option func(*Manager)

// WithDryRun records decisions without touching the filesystem.
func WithDryRun(dryRun bool) Option {
	return func(m *Manager) {
		m.dryRun = dryRun
	}
}

// Manager owns every write to durable checkpoint storage.
type Manager struct {
	stagingDir string
	storageDir string
	keep       int
	models     map[string]struct{}
	codec      jobqueue.Codec
	logger     *slog.Logger
	dryRun     bool
}

// NewManager constructs a Manager from configuration.
func NewManager(cfg *config.Config, codec jobqueue.Codec, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("lifecycle: config required")
	}
	if cfg.Retention.KeepCheckpoints < 1 {
		return nil, fmt.Errorf("lifecycle: keep_checkpoints must be at least 1, got %d", cfg.Retention.KeepCheckpoints)
	}
	models := make(map[string]struct{}, len(cfg.Models))
	for name := range cfg.Models {
		models[name] = struct{}{}
	}
	m := &Manager{
		stagingDir: strings.TrimSpace(cfg.Paths.StagingDir),
		storageDir: strings.TrimSpace(cfg.Paths.StorageDir),
		keep:       cfg.Retention.KeepCheckpoints,
		models:     models,
		codec:      codec,
		logger:     logging.NewComponentLogger(logger, "lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Promote moves staged exports of finished jobs into durable storage. Exports
// whose job name is still owned are never touched.
func (m *Manager) Promote(ctx context.Context, owned jobqueue.Listing) PromoteResult {
	result := PromoteResult{}
	logger := logging.WithContext(ctx, m.logger)

	staged, err := ListStaged(m.stagingDir, m.codec)
	if err != nil {
		result.Errors = append(result.Errors, ExportError{Path: m.stagingDir, Error: err})
		m.warn(logger, "staging dir unreadable", m.stagingDir, err, "promote_failed")
		return result
	}
	for _, path := range staged.Foreign {
		logger.Debug("ignoring foreign staging entry", logging.String("path", path))
	}
	for _, bad := range staged.Malformed {
		result.Errors = append(result.Errors, bad)
		m.warn(logger, "staged export name did not decode; leaving in place", bad.Path, bad.Error, "promote_failed")
	}

	planned := make(map[string]bool)
	for _, export := range staged.Exports {
		if ctx.Err() != nil {
			return result
		}
		if owned.Owns(export.Name) {
			result.Skipped = append(result.Skipped, export)
			logger.Debug("staged export belongs to running job",
				logging.String(logging.FieldJobName, export.Name),
				logging.String(logging.FieldEventType, "promote_skipped"),
			)
			continue
		}

		dest := filepath.Join(m.storageDir, DurableName(export.Model, export.Iteration))
		if err := m.promoteOne(export, dest, planned, &result); err != nil {
			result.Errors = append(result.Errors, ExportError{Path: export.Path, Error: err})
			m.warn(logger, "promote staged export failed", export.Path, err, "promote_failed")
			continue
		}
	}

	for _, exp := range result.Promoted {
		logger.Info("promoted staged export",
			logging.String("path", exp.Path),
			logging.String(logging.FieldModel, exp.Model),
			logging.Int(logging.FieldIteration, exp.Iteration),
			logging.Bool("dry_run", m.dryRun),
			logging.String(logging.FieldEventType, "export_promoted"),
		)
	}
	for _, exp := range result.Deduplicated {
		logger.Info("removed duplicate staged export",
			logging.String("path", exp.Path),
			logging.String(logging.FieldModel, exp.Model),
			logging.Int(logging.FieldIteration, exp.Iteration),
			logging.Bool("dry_run", m.dryRun),
			logging.String(logging.FieldEventType, "export_deduplicated"),
		)
	}
	return result
}

// planned tracks destinations claimed earlier in a dry run.
func (m *Manager) promoteOne(staged Export, dest string, planned map[string]bool, result *PromoteResult) error {
	promoted := staged
	promoted.Name = filepath.Base(dest)
	promoted.Path = dest

	_, statErr := os.Stat(dest)
	switch {
	case statErr == nil || planned[dest]:
		if !m.dryRun {
			if err := os.RemoveAll(staged.Path); err != nil {
				return fmt.Errorf("remove duplicate: %w", err)
			}
		}
		result.Deduplicated = append(result.Deduplicated, staged)
		return nil
	case !errors.Is(statErr, fs.ErrNotExist):
		return fmt.Errorf("stat durable export: %w", statErr)
	}

	if m.dryRun {
		planned[dest] = true
		result.Promoted = append(result.Promoted, promoted)
		return nil
	}
	err := fileutil.MoveDir(staged.Path, dest)
	if errors.Is(err, fileutil.ErrDestinationExists) {
		// Another promotion landed first.
		if err := os.RemoveAll(staged.Path); err != nil {
			return fmt.Errorf("remove duplicate: %w", err)
		}
		result.Deduplicated = append(result.Deduplicated, staged)
		return nil
	}
	if err != nil {
		return err
	}
	result.Promoted = append(result.Promoted, promoted)
	return nil
}

// Retire keeps the newest K durable exports of each configured model and
// removes the rest. Exports of unconfigured models are left alone.
func (m *Manager) Retire(ctx context.Context) RetireResult {
	result := RetireResult{}
	logger := logging.WithContext(ctx, m.logger)

	durable, err := ListDurable(m.storageDir)
	if err != nil {
		result.Errors = append(result.Errors, ExportError{Path: m.storageDir, Error: err})
		m.warn(logger, "storage dir unreadable", m.storageDir, err, "retire_failed")
		return result
	}

	models := make([]string, 0, len(durable))
	for model := range durable {
		if _, ok := m.models[model]; ok {
			models = append(models, model)
		}
	}
	sort.Strings(models)

	for _, model := range models {
		exports := durable[model]
		cut := max(len(exports)-m.keep, 0)
		result.Kept = append(result.Kept, exports[cut:]...)
		for _, exp := range exports[:cut] {
			if ctx.Err() != nil {
				return result
			}
			if !m.dryRun {
				if err := os.RemoveAll(exp.Path); err != nil {
					result.Errors = append(result.Errors, ExportError{Path: exp.Path, Error: err})
					m.warn(logger, "retire durable export failed", exp.Path, err, "retire_failed")
					continue
				}
			}
			result.Removed = append(result.Removed, exp)
			logger.Info("retired durable export",
				logging.String("path", exp.Path),
				logging.String(logging.FieldModel, exp.Model),
				logging.Int(logging.FieldIteration, exp.Iteration),
				logging.Int("keep", m.keep),
				logging.Bool("dry_run", m.dryRun),
				logging.String(logging.FieldEventType, "export_retired"),
			)
		}
	}
	return result
}

func (m *Manager) warn(logger *slog.Logger, msg, path string, err error, event string) {
	logging.WarnWithContext(logger, msg, event,
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check staging_dir and storage_dir permissions"),
		logging.String(logging.FieldImpact, "export left as is; retried next pass"),
	)
}
