package workflow

import (
	"context"
	"errors"
	"log/slog"

	"evalpilot/internal/logging"
)

func (r *Runner) notifyPass(ctx context.Context, logger *slog.Logger, outcome Outcome) {
	if r.notifier == nil {
		return
	}
	var err error
	if outcome.PreflightErr != nil || outcome.ReconcileErr != nil {
		label := "reconcile"
		cause := outcome.ReconcileErr
		if outcome.PreflightErr != nil {
			label, cause = "preflight", outcome.PreflightErr
		}
		err = r.notifier.NotifyError(ctx, cause, label)
	} else {
		err = r.notifier.NotifyPassCompleted(ctx, outcome.Summary())
	}
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Debug("shutting down, pass notification not sent")
		return
	}
	logger.Debug("pass notification failed", logging.Error(err))
}
