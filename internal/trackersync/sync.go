// Package trackersync pushes evaluation results to the experiment tracker by
// running the configured sync command once per model.
package trackersync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"evalpilot/internal/config"
	"evalpilot/internal/logging"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, env []string) ([]byte, error)
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(s *Syncer) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// Result is the outcome of syncing one model.
type Result struct {
	Model    string
	OK       bool
	Err      error
	Output   string
	Duration time.Duration
}

// Syncer runs the tracker sync command.
type Syncer struct {
	command  []string
	logsRoot string
	env      []string
	timeout  time.Duration
	exec     Executor
	logger   *slog.Logger
}

// New constructs a Syncer from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Syncer, error) {
	if cfg == nil {
		return nil, errors.New("trackersync: config required")
	}
	if len(cfg.Sync.Command) == 0 {
		return nil, errors.New("trackersync: sync.command is empty")
	}
	s := &Syncer{
		command:  slices.Clone(cfg.Sync.Command),
		logsRoot: cfg.Paths.LogsRoot,
		env: []string{
			"WANDB_SILENT=true",
			"WANDB_RESUME=allow",
			"WANDB_ENTITY=" + cfg.Sync.Entity,
			"WANDB_PROJECT=" + cfg.Sync.Project,
		},
		timeout: time.Duration(cfg.Sync.Timeout) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "trackersync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Binary returns the executable the sync command runs.
func (s *Syncer) Binary() string {
	return s.command[0]
}

// Sync runs the sync command for each model in turn. A failure for one
// model is logged and does not stop the others.
func (s *Syncer) Sync(ctx context.Context, models []string) []Result {
	logger := logging.WithContext(ctx, s.logger)
	results := make([]Result, 0, len(models))
	for _, model := range models {
		if ctx.Err() != nil {
			break
		}
		res := s.syncModel(ctx, model)
		results = append(results, res)
		if !res.OK {
			logging.WarnWithContext(logger, "tracker sync failed", "tracker_sync_failed",
				logging.String(logging.FieldModel, model),
				logging.Error(res.Err),
				logging.String("output", res.Output),
				logging.String(logging.FieldErrorHint, "check tracker credentials and the sync command"),
				logging.String(logging.FieldImpact, "tracker dashboards lag until the next pass"),
			)
			continue
		}
		logger.Info("tracker sync complete",
			logging.String(logging.FieldModel, model),
			logging.Duration("duration", res.Duration),
			logging.String(logging.FieldEventType, "tracker_synced"),
		)
	}
	return results
}

func (s *Syncer) syncModel(ctx context.Context, model string) Result {
	args := append(slices.Clone(s.command[1:]), s.logsRoot, "--name="+model)
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := s.exec.Run(runCtx, s.command[0], args, append(os.Environ(), s.env...))
	res := Result{
		Model:    model,
		OK:       err == nil,
		Output:   tail(string(out), 20),
		Duration: time.Since(start),
	}
	if err != nil {
		res.Err = fmt.Errorf("sync %s: %w", model, err)
	}
	return res
}

func tail(output string, lines int) string {
	parts := strings.Split(strings.TrimSpace(output), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Env = env
	return cmd.CombinedOutput()
}
