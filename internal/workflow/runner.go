package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"evalpilot/internal/catalog"
	"evalpilot/internal/completion"
	"evalpilot/internal/config"
	"evalpilot/internal/history"
	"evalpilot/internal/jobqueue"
	"evalpilot/internal/lifecycle"
	"evalpilot/internal/logging"
	"evalpilot/internal/notifications"
	"evalpilot/internal/preflight"
	"evalpilot/internal/reconcile"
	"evalpilot/internal/trackersync"
)

// PreflightFunc evaluates readiness before a pass.
type PreflightFunc func(ctx context.Context, cfg *config.Config) []preflight.Result

// Option configures optional Runner behavior.
type Option func(*runnerOptions)

type runnerOptions struct {
	dryRun    bool
	history   *history.Store
	notifier  notifications.Service
	syncer    *trackersync.Syncer
	preflight PreflightFunc
	reconcile []reconcile.Option
	newPassID func() string
	now       func() time.Time
}

// WithDryRun computes every decision without filesystem side effects. The
// queue client must be built in dry-run mode separately.
func WithDryRun(dryRun bool) Option {
	return func(o *runnerOptions) { o.dryRun = dryRun }
}

// WithHistory appends pass outcomes to store.
func WithHistory(store *history.Store) Option {
	return func(o *runnerOptions) { o.history = store }
}

// WithNotifier overrides the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *runnerOptions) { o.notifier = notifier }
}

// WithSyncer runs the tracker sync after lifecycle steps.
func WithSyncer(syncer *trackersync.Syncer) Option {
	return func(o *runnerOptions) { o.syncer = syncer }
}

// WithPreflight replaces the readiness checks (primarily for tests).
func WithPreflight(fn PreflightFunc) Option {
	return func(o *runnerOptions) { o.preflight = fn }
}

// WithReconcileOptions forwards options to the reconciler.
func WithReconcileOptions(opts ...reconcile.Option) Option {
	return func(o *runnerOptions) { o.reconcile = append(o.reconcile, opts...) }
}

// WithClock overrides time and pass ID generation (primarily for tests).
func WithClock(now func() time.Time, newPassID func() string) Option {
	return func(o *runnerOptions) {
		if now != nil {
			o.now = now
		}
		if newPassID != nil {
			o.newPassID = newPassID
		}
	}
}

// Runner executes passes. It holds no state between passes: every decision
// is derived from the filesystem and the queue at pass time.
type Runner struct {
	cfg        *config.Config
	queue      jobqueue.Client
	reconciler *reconcile.Reconciler
	lifecycle  *lifecycle.Manager
	syncer     *trackersync.Syncer
	history    *history.Store
	notifier   notifications.Service
	preflight  PreflightFunc
	logger     *slog.Logger
	dryRun     bool
	newPassID  func() string
	now        func() time.Time
}

// New wires a Runner from config, the loaded catalog, and a queue client.
func New(cfg *config.Config, cat *catalog.Catalog, queue jobqueue.Client, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil || cat == nil || queue == nil {
		return nil, errors.New("workflow: config, catalog, and queue client required")
	}
	options := runnerOptions{
		preflight: preflight.RunAll,
		newPassID: uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.notifier == nil {
		options.notifier = notifications.NewService(cfg)
	}

	codec := jobqueue.NewCodec(cfg.Queue.JobPrefix, cat.RootAggregate())
	reader := completion.NewReader(cfg.Paths.LogsRoot, cat, logger)
	rec, err := reconcile.New(cfg, cat, codec, queue, reader, logger, options.reconcile...)
	if err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	life, err := lifecycle.NewManager(cfg, codec, logger, lifecycle.WithDryRun(options.dryRun))
	if err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}

	return &Runner{
		cfg:        cfg,
		queue:      queue,
		reconciler: rec,
		lifecycle:  life,
		syncer:     options.syncer,
		history:    options.history,
		notifier:   options.notifier,
		preflight:  options.preflight,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		dryRun:     options.dryRun,
		newPassID:  options.newPassID,
		now:        options.now,
	}, nil
}

// Reconciler exposes the reconciler for read-only status reports.
func (r *Runner) Reconciler() *reconcile.Reconciler {
	return r.reconciler
}
