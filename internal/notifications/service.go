package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"evalpilot/internal/config"
)

const userAgent = "evalpilot/0.1.0"

// PassSummary is what a pass notification reports.
type PassSummary struct {
	PassID         string
	DryRun         bool
	Submitted      int
	SubmitFailures int
	Promoted       int
	Retired        int
	// Failures lists per-model or per-export problems, one line each.
	Failures []string
	Duration time.Duration
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyPassCompleted(ctx context.Context, summary PassSummary) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		onFailure:    cfg.Notifications.OnFailure,
		onSubmission: cfg.Notifications.OnSubmission,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	onFailure    bool
	onSubmission bool
}

// NotifyPassCompleted reports a pass. Quiet passes send nothing; passes with
// failures are sent when on_failure is set, and passes that submitted jobs
// when on_submission is set.
func (n *ntfyService) NotifyPassCompleted(ctx context.Context, summary PassSummary) error {
	failed := len(summary.Failures) > 0 || summary.SubmitFailures > 0
	switch {
	case failed && n.onFailure:
	case !failed && summary.Submitted > 0 && n.onSubmission:
	default:
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Submitted %d job(s)", summary.Submitted)
	if summary.SubmitFailures > 0 {
		fmt.Fprintf(&b, ", %d failed", summary.SubmitFailures)
	}
	fmt.Fprintf(&b, "; promoted %d, retired %d export(s) in %s", summary.Promoted, summary.Retired, roundDuration(summary.Duration))
	for _, line := range summary.Failures {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(line))
	}

	data := payload{
		title:   "evalpilot - Pass Complete",
		message: b.String(),
		tags:    []string{"evalpilot", "pass", "completed"},
	}
	if failed {
		data.title = "evalpilot - Pass Complete (with errors)"
		data.tags = []string{"evalpilot", "pass", "warning"}
		data.priority = "high"
	}
	if summary.DryRun {
		data.title += " [dry run]"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.onFailure {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "evalpilot - Error",
		message:  builder.String(),
		tags:     []string{"evalpilot", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "evalpilot - Test",
		message:  "Notification system test",
		tags:     []string{"evalpilot", "test"},
		priority: "low",
	})
}

func roundDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPassCompleted(context.Context, PassSummary) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error       { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
