package daemonrun

import (
	"os"
	"path/filepath"
	"testing"

	"evalpilot/internal/logging"
	"evalpilot/internal/testsupport"
)

func TestBuildAssemblesStack(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories(), testsupport.WithCatalogFile("a", "b"))
	stack, err := Build(cfg, logging.NewNop(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = stack.Close() })

	if stack.Runner == nil || stack.Queue == nil || stack.History == nil {
		t.Fatalf("incomplete stack %#v", stack)
	}
	if got := stack.Catalog.RootAggregate(); got != "all" {
		t.Fatalf("root aggregate = %q", got)
	}
	if stack.History.Path() != cfg.HistoryPath() {
		t.Fatalf("history path = %s", stack.History.Path())
	}
}

func TestBuildFailsWithoutCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	if _, err := Build(cfg, logging.NewNop(), Options{}); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestBuildRejectsEmptySyncCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories(), testsupport.WithCatalogFile("a"))
	cfg.Workflow.SyncEnabled = true
	cfg.Sync.Command = nil
	if _, err := Build(cfg, logging.NewNop(), Options{}); err == nil {
		t.Fatal("expected error for empty sync command")
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "evalpilot-1.log")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureCurrentLogPointer(dir, target); err != nil {
		t.Fatalf("first link: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, target); err != nil {
		t.Fatalf("relink: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "evalpilot.log"))
	if err != nil || string(data) != "x" {
		t.Fatalf("pointer content = %q, %v", data, err)
	}
}
