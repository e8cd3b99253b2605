package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"evalpilot/internal/config"
	"evalpilot/internal/logging"
	"evalpilot/internal/workflow"
)

// PassRunner runs one pass.
type PassRunner interface {
	RunPass(ctx context.Context) (workflow.Outcome, error)
}

// Daemon runs passes on an interval and enforces single-instance execution.
type Daemon struct {
	runner   PassRunner
	logger   *slog.Logger
	interval time.Duration
	lockPath string

	running   atomic.Bool
	trigger   chan struct{}
	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.RWMutex
	cancel  context.CancelFunc
	active  bool
	passes  int
	last    *workflow.Outcome
	lastErr error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PassActive   bool
	Passes       int
	LastOutcome  *workflow.Outcome
	LastError    string
	LockFilePath string
	Interval     time.Duration
}

// New constructs a daemon around runner.
func New(cfg *config.Config, runner PassRunner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || runner == nil {
		return nil, errors.New("daemon requires config and pass runner")
	}
	interval := time.Duration(cfg.Workflow.Interval) * time.Second
	if interval <= 0 {
		return nil, errors.New("daemon requires a positive workflow.interval")
	}
	return &Daemon{
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		interval: interval,
		lockPath: cfg.LockPath(),
		trigger:  make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}, nil
}

// WithInterval overrides the pass interval (primarily for tests).
func (d *Daemon) WithInterval(interval time.Duration) *Daemon {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Run holds the lock and runs passes until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	lock, err := AcquireLock(d.lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.readyOnce.Do(func() { close(d.ready) })

	d.logger.Info("evalpilot daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("interval", d.interval),
		logging.String(logging.FieldEventType, "daemon_started"),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("evalpilot daemon stopped",
				logging.Int("passes", d.Status().Passes),
				logging.String(logging.FieldEventType, "daemon_stopped"),
			)
			return nil
		case <-timer.C:
		case <-d.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			d.logger.Info("pass requested", logging.String(logging.FieldEventType, "pass_requested"))
		}

		d.runPass(ctx)
		if ctx.Err() == nil {
			d.logger.Debug("next pass scheduled", logging.Time("at", time.Now().Add(d.interval)))
		}
		timer.Reset(d.interval)
	}
}

// Ready is closed once Run holds the single-instance lock.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// RunNow asks a running daemon to start a pass without waiting for the
// interval. It reports false when the daemon is not running; requests made
// while one is already pending are merged.
func (d *Daemon) RunNow() bool {
	if !d.running.Load() {
		return false
	}
	select {
	case d.trigger <- struct{}{}:
	default:
	}
	return true
}

// Stop cancels Run. A pass in progress observes the cancellation at its next
// step boundary.
func (d *Daemon) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	d.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (d *Daemon) runPass(ctx context.Context) {
	d.mu.Lock()
	d.active = true
	d.mu.Unlock()

	outcome, err := d.runner.RunPass(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(d.logger, "pass did not complete", "pass_failed",
			logging.String(logging.FieldPassID, outcome.PassID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the pass log lines above"),
			logging.String(logging.FieldImpact, "retried at the next interval"),
		)
	}

	d.mu.Lock()
	d.active = false
	d.passes++
	d.last = &outcome
	d.lastErr = err
	d.mu.Unlock()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	status := Status{
		Running:      d.running.Load(),
		PassActive:   d.active,
		Passes:       d.passes,
		LockFilePath: d.lockPath,
		Interval:     d.interval,
	}
	if d.last != nil {
		last := *d.last
		status.LastOutcome = &last
	}
	if d.lastErr != nil {
		status.LastError = d.lastErr.Error()
	}
	return status
}
