package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"evalpilot/internal/catalog"
	"evalpilot/internal/checkpoints"
	"evalpilot/internal/config"
	"evalpilot/internal/jobqueue"
	"evalpilot/internal/logging"
)

// CompletionReader reports completed leaf tasks per iteration.
type CompletionReader interface {
	GetCompleted(model string) (map[int]catalog.TaskSet, error)
}

// DiscoverFunc lists available iterations across a model's source dirs.
type DiscoverFunc func(modelDirs []string) (checkpoints.Available, error)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithDiscover replaces checkpoint discovery (primarily for tests).
func WithDiscover(fn DiscoverFunc) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.discover = fn
		}
	}
}

// Reconciler drives missing-work submission.
type Reconciler struct {
	models         map[string]config.Model
	shardThreshold int
	catalog        *catalog.Catalog
	codec          jobqueue.Codec
	queue          jobqueue.Client
	completion     CompletionReader
	discover       DiscoverFunc
	logger         *slog.Logger
}

// New constructs a Reconciler. The config and catalog are read, never mutated.
func New(cfg *config.Config, cat *catalog.Catalog, codec jobqueue.Codec, queue jobqueue.Client, completion CompletionReader, logger *slog.Logger, opts ...Option) (*Reconciler, error) {
	if cfg == nil || cat == nil {
		return nil, errors.New("reconcile: config and catalog required")
	}
	if queue == nil || completion == nil {
		return nil, errors.New("reconcile: queue and completion reader required")
	}
	r := &Reconciler{
		models:         cfg.Models,
		shardThreshold: cfg.Reconcile.ShardThreshold,
		catalog:        cat,
		codec:          codec,
		queue:          queue,
		completion:     completion,
		discover:       checkpoints.Discover,
		logger:         logging.NewComponentLogger(logger, "reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run reconciles every model and submits missing work. It fails only when
// the queue cannot be listed, since in-flight work would be unknown.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	return r.pass(ctx, true)
}

// Status computes the same per-iteration view as Run without submitting.
func (r *Reconciler) Status(ctx context.Context) (Report, error) {
	return r.pass(ctx, false)
}

func (r *Reconciler) pass(ctx context.Context, submit bool) (Report, error) {
	logger := logging.WithContext(ctx, r.logger)
	listing, err := r.queue.ListOwned(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: list owned jobs: %w", err)
	}
	report := Report{Malformed: listing.Malformed}

	universe := r.catalog.AllLeafTasks()
	inFlight := make(map[string]map[int]catalog.TaskSet)
	for _, job := range listing.Jobs {
		byIter, ok := inFlight[job.Model]
		if !ok {
			byIter = make(map[int]catalog.TaskSet)
			inFlight[job.Model] = byIter
		}
		if _, ok := byIter[job.Iteration]; !ok {
			byIter[job.Iteration] = catalog.NewTaskSet()
		}
		byIter[job.Iteration].Add(job.Covers(universe)...)
	}

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		modelCtx := logging.WithModel(ctx, name)
		mr := ModelReport{Model: name}
		if bad := r.malformedFor(name, listing.Malformed); len(bad) > 0 {
			mr.Err = fmt.Errorf("%w: %s", jobqueue.ErrMalformedJobName, strings.Join(bad, ", "))
		} else {
			mr = r.reconcileModel(modelCtx, name, r.models[name], inFlight[name], submit)
		}
		if mr.Err != nil {
			logging.ErrorWithContext(logging.WithContext(modelCtx, r.logger), "model reconcile aborted", "reconcile_model_failed",
				logging.Error(mr.Err),
				logging.String(logging.FieldErrorHint, "fix the checkpoint directories or cancel the offending job"),
				logging.String(logging.FieldImpact, "no submissions for this model until resolved"),
			)
		}
		report.Models = append(report.Models, mr)
	}

	for _, name := range listing.Malformed {
		logging.WarnWithContext(logger, "owned job name did not decode", "job_name_malformed",
			logging.String(logging.FieldJobName, name),
			logging.String(logging.FieldImpact, "job ignored for in-flight masking"),
		)
	}
	logger.Info("reconcile pass complete",
		logging.String(logging.FieldEventType, "reconcile_complete"),
		logging.Int("models", len(report.Models)),
		logging.Int("owned_jobs", len(listing.Jobs)),
		logging.Int("submitted", report.Submitted()),
		logging.Int("submit_failures", report.FailedSubmissions()),
	)
	return report, nil
}

// malformedFor returns malformed names that can be attributed to model.
func (r *Reconciler) malformedFor(model string, malformed []string) []string {
	prefix := r.codec.Prefix() + "_" + model + "_"
	var out []string
	for _, name := range malformed {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

func (r *Reconciler) reconcileModel(ctx context.Context, name string, model config.Model, inFlight map[int]catalog.TaskSet, submit bool) ModelReport {
	report := ModelReport{Model: name}
	logger := logging.WithContext(ctx, r.logger)

	available, err := r.discover(model.ModelDirs)
	if err != nil {
		report.Err = fmt.Errorf("discover checkpoints: %w", err)
		return report
	}
	completed, err := r.completion.GetCompleted(name)
	if err != nil {
		report.Err = fmt.Errorf("read completed results: %w", err)
		return report
	}

	candidates := make(map[int]struct{})
	for it := range inFlight {
		candidates[it] = struct{}{}
	}
	for it := range completed {
		candidates[it] = struct{}{}
	}
	for it := range available {
		if model.Eligible(it) {
			candidates[it] = struct{}{}
		}
	}
	iterations := make([]int, 0, len(candidates))
	for it := range candidates {
		iterations = append(iterations, it)
	}
	sort.Ints(iterations)

	universe := r.catalog.AllLeafTasks()
	for _, it := range iterations {
		done := completed[it]
		if done == nil {
			done = catalog.NewTaskSet()
		}
		running := inFlight[it]
		if running == nil {
			running = catalog.NewTaskSet()
		}
		status := done.Union(running)
		_, isAvailable := available[it]
		st := IterationStatus{
			Iteration: it,
			Available: isAvailable,
			Eligible:  isAvailable && model.Eligible(it),
			Completed: done.Sorted(),
			InFlight:  running.Sorted(),
			Missing:   status.Missing(universe),
			Satisfied: r.catalog.Satisfied(status),
		}
		report.Iterations = append(report.Iterations, st)

		if len(st.Missing) == 0 || !st.Eligible || !submit {
			continue
		}
		for _, batch := range r.batches(model, st.Missing) {
			if err := ctx.Err(); err != nil {
				report.Err = err
				return report
			}
			result := r.queue.Submit(ctx, jobqueue.Submission{
				Job:           jobqueue.NewJobID(r.catalog, name, it, batch),
				Tasks:         batch,
				ModelDir:      available[it],
				TokensPerIter: model.TokensPerIter,
				Size:          model.Size,
			})
			r.logSubmission(logger, result)
			report.Submissions = append(report.Submissions, result)
		}
	}
	return report
}

// batches splits missing tasks by size class: small models get one job,
// large models one job per task.
func (r *Reconciler) batches(model config.Model, missing []string) [][]string {
	if model.Size < r.shardThreshold {
		return [][]string{missing}
	}
	out := make([][]string, 0, len(missing))
	for _, task := range missing {
		out = append(out, []string{task})
	}
	return out
}

func (r *Reconciler) logSubmission(logger *slog.Logger, result jobqueue.SubmitResult) {
	attrs := []logging.Attr{
		logging.String(logging.FieldJobName, result.Name),
		logging.Int(logging.FieldIteration, result.Job.Iteration),
		logging.String("tasks", r.codec.Alias(result.Job)),
	}
	if !result.OK {
		attrs = append(attrs,
			logging.Int("exit_code", result.ExitCode),
			logging.String("reason", result.Reason),
			logging.String("output", result.Output),
			logging.String(logging.FieldErrorHint, "check queue availability and the job script"),
			logging.String(logging.FieldImpact, "tasks stay missing and are resubmitted next pass"),
		)
		logging.WarnWithContext(logger, "job submission failed", "job_submit_failed", attrs...)
		return
	}
	msg := "job submitted"
	if result.DryRun {
		msg = "job submission planned (dry run)"
		attrs = append(attrs, logging.String("command", result.Output))
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "job_submitted"))
	logger.Info(msg, logging.Args(attrs...)...)
}
