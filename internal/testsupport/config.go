package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"evalpilot/internal/catalog"
	"evalpilot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// A single model "m" with one checkpoint directory and frequency 1 is
// configured unless options replace it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogsRoot = filepath.Join(base, "results")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StorageDir = filepath.Join(base, "storage")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.Catalog = filepath.Join(base, "tasks.json")
	cfgVal.Workflow.SyncEnabled = false
	cfgVal.Models = map[string]config.Model{
		"m": {
			ModelDirs:     []string{filepath.Join(base, "checkpoints", "m")},
			Size:          8,
			TokensPerIter: "1000",
			Frequency:     1,
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithModel adds or replaces a model. Empty ModelDirs default to a fresh
// directory under the test root.
func WithModel(name string, model config.Model) ConfigOption {
	return func(b *configBuilder) {
		if len(model.ModelDirs) == 0 {
			model.ModelDirs = []string{filepath.Join(b.baseDir, "checkpoints", name)}
		}
		if model.Frequency == 0 {
			model.Frequency = 1
		}
		b.cfg.Models[name] = model
	}
}

// WithOnlyModel replaces every configured model with the provided one.
func WithOnlyModel(name string, model config.Model) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Models = map[string]config.Model{}
		WithModel(name, model)(b)
	}
}

// WithKeepCheckpoints sets the durable export keep-count.
func WithKeepCheckpoints(k int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retention.KeepCheckpoints = k
	}
}

// WithShardThreshold sets the size class at which submissions shard per task.
func WithShardThreshold(threshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconcile.ShardThreshold = threshold
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the queue binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"squeue", "sbatch"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// NewCatalog builds a catalog with root aggregate "all" over leaves, plus any
// extra groups.
func NewCatalog(t testing.TB, leaves []string, groups map[string][]string) *catalog.Catalog {
	t.Helper()
	doc := catalog.Document{Root: "all", Groups: map[string][]string{"all": leaves}}
	for name, members := range groups {
		doc.Groups[name] = members
	}
	cat, err := catalog.New(doc)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

// WithDirectories creates the configured path directories, including the
// results root.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
		if err := os.MkdirAll(b.cfg.Paths.LogsRoot, 0o755); err != nil {
			b.t.Fatalf("mkdir results root: %v", err)
		}
	}
}

// WithCatalogFile writes a catalog with root aggregate "all" over leaves to
// the configured catalog path.
func WithCatalogFile(leaves ...string) ConfigOption {
	return func(b *configBuilder) {
		doc := catalog.Document{Root: "all", Groups: map[string][]string{"all": leaves}}
		data, err := json.Marshal(doc)
		if err != nil {
			b.t.Fatalf("marshal catalog: %v", err)
		}
		if err := os.WriteFile(b.cfg.Paths.Catalog, data, 0o644); err != nil {
			b.t.Fatalf("write catalog: %v", err)
		}
	}
}
