package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType tags a record with a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldPassID identifies one reconcile/lifecycle pass.
	FieldPassID = "pass_id"
	// FieldModel is the configured model name.
	FieldModel = "model"
	// FieldIteration is a checkpoint step.
	FieldIteration = "iteration"
	// FieldJobName is the encoded batch queue job name.
	FieldJobName = "job_name"
)

type contextKey int

const (
	passIDKey contextKey = iota
	modelKey
)

// WithPassID stores the pass identifier on ctx.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

// PassIDFromContext returns the pass identifier stored on ctx.
func PassIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(passIDKey).(string)
	return id, ok && id != ""
}

// WithModel stores the model name on ctx.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelKey, model)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := PassIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPassID, id))
	}
	if model, ok := ctx.Value(modelKey).(string); ok && model != "" {
		fields = append(fields, slog.String(FieldModel, model))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
