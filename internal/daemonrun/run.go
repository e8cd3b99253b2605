// Package daemonrun assembles the evalpilot process: logger, queue client,
// pass history, and pass runner, for both the one-shot and daemon modes.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"evalpilot/internal/catalog"
	"evalpilot/internal/config"
	"evalpilot/internal/daemon"
	"evalpilot/internal/history"
	"evalpilot/internal/ipc"
	"evalpilot/internal/jobqueue"
	"evalpilot/internal/logging"
	"evalpilot/internal/preflight"
	"evalpilot/internal/trackersync"
	"evalpilot/internal/workflow"
)

// Options configures process runtime behavior.
type Options struct {
	LogLevel string
	DryRun   bool
}

// Stack holds the components one process uses.
type Stack struct {
	Catalog *catalog.Catalog
	Queue   *jobqueue.Slurm
	History *history.Store
	Runner  *workflow.Runner
}

// Close releases resources held by the stack.
func (s *Stack) Close() error {
	if s == nil || s.History == nil {
		return nil
	}
	return s.History.Close()
}

// Build wires the pass runner from configuration.
func Build(cfg *config.Config, logger *slog.Logger, opts Options) (*Stack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	dryRun := opts.DryRun || cfg.Reconcile.DryRun

	cat, err := catalog.Load(cfg.Paths.Catalog)
	if err != nil {
		return nil, err
	}
	codec := jobqueue.NewCodec(cfg.Queue.JobPrefix, cat.RootAggregate())
	queue, err := jobqueue.NewSlurm(cfg, codec, jobqueue.WithDryRun(dryRun))
	if err != nil {
		return nil, err
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}

	runnerOpts := []workflow.Option{
		workflow.WithDryRun(dryRun),
		workflow.WithHistory(store),
	}
	if cfg.Workflow.SyncEnabled {
		syncer, err := trackersync.New(cfg, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		runnerOpts = append(runnerOpts, workflow.WithSyncer(syncer))
	}
	runner, err := workflow.New(cfg, cat, queue, logger, runnerOpts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Stack{Catalog: cat, Queue: queue, History: store, Runner: runner}, nil
}

// RunOnce performs a single pass under the single-instance lock.
func RunOnce(cmdCtx context.Context, cfg *config.Config, opts Options) (workflow.Outcome, error) {
	if cfg == nil {
		return workflow.Outcome{}, fmt.Errorf("config is required")
	}
	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := setupLogger(cfg, opts)
	if err != nil {
		return workflow.Outcome{}, err
	}
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		return workflow.Outcome{}, err
	}
	defer lock.Unlock()

	stack, err := Build(cfg, logger, opts)
	if err != nil {
		logger.Error("assemble pass runner", logging.Error(err))
		return workflow.Outcome{}, err
	}
	defer stack.Close()

	pruneHistory(ctx, logger, cfg, stack.History)
	return stack.Runner.RunPass(ctx)
}

// Run starts the evalpilot daemon loop and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := setupLogger(cfg, opts)
	if err != nil {
		return err
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "evalpilot.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	stack, err := Build(cfg, logger, opts)
	if err != nil {
		logger.Error("assemble pass runner", logging.Error(err))
		return err
	}
	defer stack.Close()
	pruneHistory(signalCtx, logger, cfg, stack.History)

	d, err := daemon.New(cfg, stack.Runner, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(signalCtx) }()
	select {
	case err := <-errCh:
		return err
	case <-d.Ready():
	}

	srv, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		logging.WarnWithContext(logger, "daemon control socket unavailable", "ipc_unavailable",
			logging.String("socket", cfg.SocketPath()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "daemon control commands cannot reach this daemon"),
		)
	} else {
		srv.Serve()
		defer srv.Close()
	}

	if err := <-errCh; err != nil {
		return err
	}
	logger.Info("evalpilot daemon shutting down")
	return nil
}

func setupLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logger, logPath, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if logPath != "" {
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update evalpilot.log link: %v\n", err)
		}
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "evalpilot-*.log", Exclude: []string{logPath}},
	)
	return logger, nil
}

func pruneHistory(ctx context.Context, logger *slog.Logger, cfg *config.Config, store *history.Store) {
	if store == nil || cfg.Logging.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.Logging.RetentionDays)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.db permissions"),
			logging.String(logging.FieldImpact, "old passes remain in history"),
		)
		return
	}
	if removed > 0 {
		logger.Debug("history pruned", logging.Int64("passes", removed))
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "evalpilot.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("dry_run", cfg.Reconcile.DryRun),
		logging.Bool("sync_enabled", cfg.Workflow.SyncEnabled),
		logging.Int("models", len(cfg.Models)),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
