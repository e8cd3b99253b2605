package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evalpilot/internal/logging"
	"evalpilot/internal/staging"
)

// partialMaxAge is how long a partial cross-device copy may sit in storage
// before it is treated as abandoned.
const partialMaxAge = 24 * time.Hour

// ErrPreflightFailed marks a pass stopped by a blocking readiness check.
var ErrPreflightFailed = errors.New("preflight checks failed")

// RunPass performs one full pass. The returned error is non-nil only when
// the pass could not reconcile at all; per-model and per-export failures are
// reported in the Outcome.
func (r *Runner) RunPass(ctx context.Context) (Outcome, error) {
	outcome := Outcome{
		PassID:    r.newPassID(),
		DryRun:    r.dryRun,
		StartedAt: r.now(),
	}
	ctx = logging.WithPassID(ctx, outcome.PassID)
	logger := logging.WithContext(ctx, r.logger)

	logger.Info("pass started",
		logging.Bool("dry_run", r.dryRun),
		logging.Int("models", len(r.cfg.Models)),
		logging.String(logging.FieldEventType, "pass_started"),
	)
	r.beginHistory(ctx, logger, outcome)

	if err := r.runPreflightChecks(ctx, logger, &outcome); err != nil {
		return r.finish(ctx, logger, outcome), err
	}

	report, err := r.reconciler.Run(ctx)
	outcome.Reconcile = report
	if err != nil {
		outcome.ReconcileErr = err
		logging.ErrorWithContext(logger, "reconcile pass aborted", "reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the batch queue is reachable"),
			logging.String(logging.FieldImpact, "no jobs submitted and promotion skipped this pass"),
		)
		outcome.PromoteSkipped = true
		outcome.PromoteErr = err
	} else {
		r.promote(ctx, logger, &outcome)
	}

	if ctx.Err() == nil {
		outcome.Retire = r.lifecycle.Retire(ctx)
		outcome.Cleanup = staging.CleanStalePartials(ctx, r.cfg.Paths.StorageDir, partialMaxAge, r.dryRun, logger)
	}
	if r.syncer != nil && !r.dryRun && ctx.Err() == nil {
		outcome.Sync = r.syncer.Sync(ctx, r.cfg.ModelNames())
	}

	outcome = r.finish(ctx, logger, outcome)
	if outcome.ReconcileErr != nil {
		return outcome, outcome.ReconcileErr
	}
	return outcome, ctx.Err()
}

// promote re-lists owned jobs after submission so that an export whose job
// is still running is never moved.
func (r *Runner) promote(ctx context.Context, logger *slog.Logger, outcome *Outcome) {
	if ctx.Err() != nil {
		return
	}
	listing, err := r.queue.ListOwned(ctx)
	if err != nil {
		outcome.PromoteSkipped = true
		outcome.PromoteErr = fmt.Errorf("list owned jobs: %w", err)
		logging.WarnWithContext(logger, "owned job listing failed; promotion skipped", "promote_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the batch queue is reachable"),
			logging.String(logging.FieldImpact, "finished exports stay staged until the next pass"),
		)
		return
	}
	outcome.Promote = r.lifecycle.Promote(ctx, listing)
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, outcome Outcome) Outcome {
	outcome.FinishedAt = r.now()
	failures := outcome.Failures()
	level := slog.LevelInfo
	if len(failures) > 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "pass finished",
		logging.String("status", outcome.Status()),
		logging.Int("submitted", outcome.Reconcile.Submitted()),
		logging.Int("submit_failures", outcome.Reconcile.FailedSubmissions()),
		logging.Int("promoted", len(outcome.Promote.Promoted)),
		logging.Int("deduplicated", len(outcome.Promote.Deduplicated)),
		logging.Int("retired", len(outcome.Retire.Removed)),
		logging.Int("partials_cleaned", len(outcome.Cleanup.Removed)),
		logging.Int("failures", len(failures)),
		logging.Duration("duration", outcome.Duration()),
		logging.String(logging.FieldEventType, "pass_finished"),
	)
	r.finishHistory(context.WithoutCancel(ctx), logger, outcome)
	r.notifyPass(context.WithoutCancel(ctx), logger, outcome)
	return outcome
}
