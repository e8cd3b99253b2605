package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"evalpilot/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLinesThenResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evalpilot.log")
	writeLog(t, path, "one\ntwo\nthree\n")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(res.Lines) != 2 || res.Lines[0] != "two" || res.Lines[1] != "three" {
		t.Fatalf("unexpected lines %q", res.Lines)
	}

	appendLog(t, path, "four\npartial")
	res, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: res.Offset})
	if err != nil {
		t.Fatalf("Tail resume: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "four" {
		t.Fatalf("unexpected resumed lines %q", res.Lines)
	}

	appendLog(t, path, " line\n")
	res, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: res.Offset})
	if err != nil {
		t.Fatalf("Tail resume: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "partial line" {
		t.Fatalf("partial line should be delivered once complete, got %q", res.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	res, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "missing.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(res.Lines) != 0 || res.Offset != 0 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestTailRestartsWhenFileShrinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evalpilot.log")
	writeLog(t, path, "new\n")
	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 1000})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "new" {
		t.Fatalf("unexpected lines %q", res.Lines)
	}
}

func TestTailFollowWaitsForAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evalpilot.log")
	writeLog(t, path, "")

	go func() {
		time.Sleep(100 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("late\n")
	}()
	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0, Follow: true, Wait: 5 * time.Second})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "late" {
		t.Fatalf("unexpected lines %q", res.Lines)
	}
}

func TestTailFollowStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evalpilot.log")
	writeLog(t, path, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := logs.Tail(ctx, path, logs.TailOptions{Offset: 0, Follow: true, Wait: time.Minute}); err == nil {
		t.Fatal("expected context error")
	}
}
