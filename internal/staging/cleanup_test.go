package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"evalpilot/internal/logging"
)

func mkdirAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStalePartialsInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStalePartials(context.Background(), dir, time.Hour, false, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStalePartialsRemovesOnlyOldPartials(t *testing.T) {
	dir := t.TempDir()
	oldPartial := filepath.Join(dir, ".m_it100.partial-abc")
	freshPartial := filepath.Join(dir, ".m_it200.partial-def")
	oldExport := filepath.Join(dir, "m_it50")
	mkdirAged(t, oldPartial, 48*time.Hour)
	mkdirAged(t, freshPartial, time.Minute)
	mkdirAged(t, oldExport, 48*time.Hour)

	result := CleanStalePartials(context.Background(), dir, 24*time.Hour, false, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldPartial {
		t.Fatalf("removed = %v", result.Removed)
	}
	if _, err := os.Stat(oldPartial); !os.IsNotExist(err) {
		t.Fatal("old partial should be gone")
	}
	for _, keep := range []string{freshPartial, oldExport} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
}

func TestCleanStalePartialsDryRun(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, ".m_it1.partial-x")
	mkdirAged(t, partial, 48*time.Hour)

	result := CleanStalePartials(context.Background(), dir, time.Hour, true, logging.NewNop())
	if len(result.Removed) != 1 {
		t.Fatalf("dry run should report the partial, got %v", result.Removed)
	}
	if _, err := os.Stat(partial); err != nil {
		t.Fatal("dry run must not delete")
	}
}
