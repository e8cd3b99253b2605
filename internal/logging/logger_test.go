package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"evalpilot/internal/config"
)

func TestConsoleLoggerWritesComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := New(Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	NewComponentLogger(logger, "reconcile").Info("submitted job",
		String(FieldModel, "apertus-8b"),
		Int(FieldIteration, 150),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO reconcile: [apertus-8b@150] submitted job"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerPlacesJobHintAndImpact(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	logger := slog.New(newConsoleHandler(&buf, &lvl, false))

	WarnWithContext(logger, "submission failed", "submit_failed",
		String(FieldJobName, "eval_m_all_2"),
		String(FieldModel, "m"),
		String(FieldPassID, "0123456789abcdef"),
		String(FieldErrorHint, "check sbatch output"),
		String(FieldImpact, "retried next pass"),
		String("reason", "exit status 1"),
	)

	out := buf.String()
	for _, want := range []string{
		"WARN [eval_m_all_2] submission failed",
		"pass_id=01234567 ",
		`reason="exit status 1"`,
		"\n    hint: check sbatch output",
		"\n    impact: retried next pass\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "model=") {
		t.Fatalf("model should be folded into the subject, got %q", out)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := New(Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information, got %q", content)
	}
}

func TestArchiveReceivesJSONCopy(t *testing.T) {
	dir := t.TempDir()
	consolePath := filepath.Join(dir, "console.log")
	archivePath := filepath.Join(dir, "archive.log")

	logger, err := New(Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{consolePath},
		ArchivePath: archivePath,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("promotion failed", String(FieldEventType, "promote_failed"))

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("archive is not JSON: %v (%q)", err, data)
	}
	if record["level"] != "warn" || record[FieldEventType] != "promote_failed" {
		t.Fatalf("unexpected archive record: %#v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigCreatesRunArchive(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	logger, archive, err := NewFromConfig(&cfg, "run1")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if filepath.Base(archive) != "evalpilot-run1.log" {
		t.Fatalf("unexpected archive path %q", archive)
	}
	logger.Info("hello")
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("expected archive file: %v", err)
	}
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(TeeHandler(infoHandler, debugHandler))
	logger.Debug("debug only")

	if infoBuf.Len() != 0 {
		t.Error("info handler should not receive debug messages")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug handler should receive debug messages")
	}
}

func TestFanoutHandlerUnwrapsSingleHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
	if _, ok := newFanoutHandler(nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when all handlers are nil")
	}
}

func TestWithContextAddsPassAndModel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithModel(WithPassID(context.Background(), "pass-1"), "m1")

	WithContext(ctx, base).Info("x")

	out := buf.String()
	if !strings.Contains(out, `"pass_id":"pass-1"`) || !strings.Contains(out, `"model":"m1"`) {
		t.Fatalf("expected context fields in %q", out)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "submit failed", "submit_failed")

	out := buf.String()
	for _, key := range []string{FieldEventType, FieldErrorHint, FieldImpact} {
		if !strings.Contains(out, `"`+key+`"`) {
			t.Fatalf("expected %s in %q", key, out)
		}
	}
}

func TestCleanupOldLogsRemovesExpiredAndKeepsExcluded(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "evalpilot-old.log")
	current := filepath.Join(dir, "evalpilot-current.log")
	other := filepath.Join(dir, "history.db")
	for _, path := range []string{old, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -10)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := CleanupOldLogs(NewNop(), 5, RetentionTarget{Dir: dir, Pattern: "evalpilot-*.log", Exclude: []string{current}})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, keep := range []string{current, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s kept: %v", keep, err)
		}
	}
	if CleanupOldLogs(NewNop(), 0, RetentionTarget{Dir: dir}) != 0 {
		t.Fatal("expected retention 0 to disable pruning")
	}
}
