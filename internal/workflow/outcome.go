package workflow

import (
	"fmt"
	"sort"
	"time"

	"evalpilot/internal/history"
	"evalpilot/internal/lifecycle"
	"evalpilot/internal/notifications"
	"evalpilot/internal/preflight"
	"evalpilot/internal/reconcile"
	"evalpilot/internal/staging"
	"evalpilot/internal/trackersync"
)

// Outcome is everything one pass did or decided.
type Outcome struct {
	PassID     string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	Preflight []preflight.Result
	// PreflightErr is set when a blocking check failed and the pass stopped.
	PreflightErr error

	Reconcile    reconcile.Report
	ReconcileErr error

	Promote lifecycle.PromoteResult
	// PromoteSkipped is set when the owned-job listing was unavailable.
	PromoteSkipped bool
	PromoteErr     error

	Retire lifecycle.RetireResult
	// Cleanup lists abandoned partial copies removed from durable storage.
	Cleanup staging.CleanStaleResult
	Sync    []trackersync.Result
}

// Duration is the wall-clock time the pass took.
func (o Outcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Failures lists every problem encountered, one line each.
func (o Outcome) Failures() []string {
	var out []string
	if o.PreflightErr != nil {
		out = append(out, o.PreflightErr.Error())
	}
	if o.ReconcileErr != nil {
		out = append(out, o.ReconcileErr.Error())
	}
	modelErrs := o.Reconcile.ModelErrors()
	models := make([]string, 0, len(modelErrs))
	for model := range modelErrs {
		models = append(models, model)
	}
	sort.Strings(models)
	for _, model := range models {
		out = append(out, fmt.Sprintf("%s: %v", model, modelErrs[model]))
	}
	for _, mr := range o.Reconcile.Models {
		for _, sub := range mr.Failed() {
			out = append(out, fmt.Sprintf("submit %s: %s", sub.Name, sub.Reason))
		}
	}
	if o.PromoteErr != nil {
		out = append(out, fmt.Sprintf("promote skipped: %v", o.PromoteErr))
	}
	for _, e := range o.Promote.Errors {
		out = append(out, fmt.Sprintf("promote %s: %v", e.Path, e.Error))
	}
	for _, e := range o.Retire.Errors {
		out = append(out, fmt.Sprintf("retire %s: %v", e.Path, e.Error))
	}
	for _, e := range o.Cleanup.Errors {
		out = append(out, fmt.Sprintf("cleanup %s: %v", e.Path, e.Error))
	}
	for _, res := range o.Sync {
		if !res.OK {
			out = append(out, fmt.Sprintf("sync %s: %v", res.Model, res.Err))
		}
	}
	return out
}

// Status classifies the pass for the history store.
func (o Outcome) Status() string {
	switch {
	case o.PreflightErr != nil, o.ReconcileErr != nil:
		return history.StatusFailed
	case len(o.Failures()) > 0:
		return history.StatusPartial
	default:
		return history.StatusOK
	}
}

// Summary converts the outcome into a notification payload.
func (o Outcome) Summary() notifications.PassSummary {
	return notifications.PassSummary{
		PassID:         o.PassID,
		DryRun:         o.DryRun,
		Submitted:      o.Reconcile.Submitted(),
		SubmitFailures: o.Reconcile.FailedSubmissions(),
		Promoted:       len(o.Promote.Promoted),
		Retired:        len(o.Retire.Removed),
		Failures:       o.Failures(),
		Duration:       o.Duration(),
	}
}

// Pass converts the outcome into its history row.
func (o Outcome) Pass() history.Pass {
	failures := o.Failures()
	pass := history.Pass{
		ID:             o.PassID,
		StartedAt:      o.StartedAt,
		FinishedAt:     o.FinishedAt,
		DryRun:         o.DryRun,
		Status:         o.Status(),
		Submitted:      o.Reconcile.Submitted(),
		SubmitFailures: o.Reconcile.FailedSubmissions(),
		Promoted:       len(o.Promote.Promoted),
		Deduplicated:   len(o.Promote.Deduplicated),
		Retired:        len(o.Retire.Removed),
		Errors:         len(failures),
	}
	if len(failures) > 0 {
		pass.Message = failures[0]
	}
	return pass
}

// Events flattens the outcome into history events.
func (o Outcome) Events() []history.Event {
	var events []history.Event
	add := func(kind, model string, iteration int, subject, detail string) {
		events = append(events, history.Event{
			PassID:    o.PassID,
			Kind:      kind,
			Model:     model,
			Iteration: iteration,
			Subject:   subject,
			Detail:    detail,
			CreatedAt: o.FinishedAt,
		})
	}

	if o.PreflightErr != nil {
		add(history.KindError, "", 0, "preflight", o.PreflightErr.Error())
	}
	if o.ReconcileErr != nil {
		add(history.KindError, "", 0, "reconcile", o.ReconcileErr.Error())
	}
	for _, mr := range o.Reconcile.Models {
		if mr.Err != nil {
			add(history.KindError, mr.Model, 0, "reconcile", mr.Err.Error())
		}
		for _, sub := range mr.Submissions {
			if sub.OK {
				add(history.KindSubmitted, sub.Job.Model, sub.Job.Iteration, sub.Name, "")
				continue
			}
			add(history.KindSubmitFailed, sub.Job.Model, sub.Job.Iteration, sub.Name, sub.Reason)
		}
	}
	for _, exp := range o.Promote.Promoted {
		add(history.KindPromoted, exp.Model, exp.Iteration, exp.Name, exp.Path)
	}
	for _, exp := range o.Promote.Deduplicated {
		add(history.KindDeduplicated, exp.Model, exp.Iteration, exp.Name, lifecycle.DurableName(exp.Model, exp.Iteration))
	}
	for _, e := range o.Promote.Errors {
		add(history.KindError, "", 0, e.Path, e.Error.Error())
	}
	for _, exp := range o.Retire.Removed {
		add(history.KindRetired, exp.Model, exp.Iteration, exp.Name, "")
	}
	for _, e := range o.Retire.Errors {
		add(history.KindError, "", 0, e.Path, e.Error.Error())
	}
	for _, path := range o.Cleanup.Removed {
		add(history.KindCleaned, "", 0, path, "")
	}
	for _, e := range o.Cleanup.Errors {
		add(history.KindError, "", 0, e.Path, e.Error.Error())
	}
	for _, res := range o.Sync {
		if res.OK {
			add(history.KindSynced, res.Model, 0, res.Model, res.Duration.String())
			continue
		}
		add(history.KindError, res.Model, 0, "sync", fmt.Sprint(res.Err))
	}
	return events
}
