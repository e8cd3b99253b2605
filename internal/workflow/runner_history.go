package workflow

import (
	"context"
	"log/slog"

	"evalpilot/internal/logging"
)

func (r *Runner) beginHistory(ctx context.Context, logger *slog.Logger, outcome Outcome) {
	if r.history == nil {
		return
	}
	if err := r.history.BeginPass(ctx, outcome.PassID, outcome.StartedAt, outcome.DryRun); err != nil {
		r.warnHistory(logger, err)
	}
}

func (r *Runner) finishHistory(ctx context.Context, logger *slog.Logger, outcome Outcome) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordEvents(ctx, outcome.PassID, outcome.Events()); err != nil {
		r.warnHistory(logger, err)
	}
	if err := r.history.FinishPass(ctx, outcome.Pass()); err != nil {
		r.warnHistory(logger, err)
	}
}

func (r *Runner) warnHistory(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "pass history write failed", "history_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check log_dir permissions and history.db"),
		logging.String(logging.FieldImpact, "pass missing from evalpilot history; decisions unaffected"),
	)
}
