package daemon_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"evalpilot/internal/daemon"
	"evalpilot/internal/logging"
	"evalpilot/internal/testsupport"
	"evalpilot/internal/workflow"
)

type countingRunner struct {
	calls  atomic.Int32
	stopAt int32
	cancel context.CancelFunc
	err    error
}

func (r *countingRunner) RunPass(context.Context) (workflow.Outcome, error) {
	n := r.calls.Add(1)
	if n >= r.stopAt && r.cancel != nil {
		r.cancel()
	}
	return workflow.Outcome{PassID: "pass"}, r.err
}

func TestDaemonRunsPassesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &countingRunner{stopAt: 3, cancel: cancel, err: errors.New("queue down")}

	d, err := daemon.New(cfg, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	d.WithInterval(time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}

	if got := runner.calls.Load(); got != 3 {
		t.Fatalf("expected 3 passes, got %d", got)
	}
	status := d.Status()
	if status.Running || status.Passes != 3 || status.LastError != "queue down" || status.LastOutcome == nil {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	d, err := daemon.New(cfg, &countingRunner{stopAt: 1}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestNewRejectsZeroInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.Interval = 0
	if _, err := daemon.New(cfg, &countingRunner{}, logging.NewNop()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

type signallingRunner struct {
	passes chan struct{}
}

func (r *signallingRunner) RunPass(context.Context) (workflow.Outcome, error) {
	r.passes <- struct{}{}
	return workflow.Outcome{PassID: "pass"}, nil
}

func TestDaemonRunNowAndStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	runner := &signallingRunner{passes: make(chan struct{}, 4)}
	d, err := daemon.New(cfg, runner, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	d.WithInterval(time.Hour)

	if d.RunNow() {
		t.Fatal("RunNow should report false before Run starts")
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitPass := func(label string) {
		t.Helper()
		select {
		case <-runner.passes:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s pass did not run", label)
		}
	}
	waitPass("initial")

	if !d.RunNow() {
		t.Fatal("RunNow should report true while running")
	}
	waitPass("requested")

	d.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
