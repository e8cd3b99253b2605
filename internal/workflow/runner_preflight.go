package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"evalpilot/internal/logging"
	"evalpilot/internal/preflight"
)

// runPreflightChecks validates readiness before a pass. Advisory failures are
// logged and ignored; blocking failures stop the pass.
func (r *Runner) runPreflightChecks(ctx context.Context, logger *slog.Logger, outcome *Outcome) error {
	if r.preflight == nil {
		return nil
	}
	results := r.preflight(ctx, r.cfg)
	outcome.Preflight = results

	for _, res := range results {
		switch {
		case res.Passed:
			logger.Debug("preflight check passed",
				logging.String("check", res.Name),
				logging.String("detail", res.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case res.Advisory:
			logging.WarnWithContext(logger, "preflight advisory", "preflight_advisory",
				logging.String("check", res.Name),
				logging.String("detail", res.Detail),
				logging.String(logging.FieldErrorHint, "fix the reported issue"),
				logging.String(logging.FieldImpact, "pass continues"),
			)
		default:
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", res.Name),
				logging.String("detail", res.Detail),
				logging.String(logging.FieldErrorHint, "fix the reported issue; the next pass retries"),
				logging.String(logging.FieldImpact, "pass skipped"),
			)
		}
	}

	blocking := preflight.Blocking(results)
	if len(blocking) == 0 {
		return nil
	}
	failures := make([]string, 0, len(blocking))
	for _, res := range blocking {
		failures = append(failures, fmt.Sprintf("%s: %s", res.Name, res.Detail))
	}
	outcome.PreflightErr = fmt.Errorf("%w: %s", ErrPreflightFailed, strings.Join(failures, "; "))
	return outcome.PreflightErr
}
