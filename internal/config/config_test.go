package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"evalpilot/internal/config"
)

func writeConfig(t *testing.T, dir string, payload any) string {
	t.Helper()
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "evalpilot.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCustomPathAppliesDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LOGS_ROOT", "")

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"paths": map[string]any{
			"logs_root": "~/logs",
		},
		"models": map[string]any{
			"apertus-8b": map[string]any{
				"model_dirs":      []string{"~/ckpt/apertus-8b"},
				"size":            8,
				"tokens_per_iter": "8388608",
				"start_eval_from": 100,
				"frequency":       50,
			},
		},
	})

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.LogsRoot != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected logs root: %q", cfg.Paths.LogsRoot)
	}
	if cfg.Paths.StagingDir != filepath.Join(tempHome, ".local", "share", "evalpilot", "hf_temp") {
		t.Fatalf("unexpected staging dir: %q", cfg.Paths.StagingDir)
	}
	if cfg.Retention.KeepCheckpoints != 2 {
		t.Fatalf("expected default keep of 2, got %d", cfg.Retention.KeepCheckpoints)
	}
	if cfg.Reconcile.ShardThreshold != 70 {
		t.Fatalf("expected default shard threshold 70, got %d", cfg.Reconcile.ShardThreshold)
	}
	model, ok := cfg.Models["apertus-8b"]
	if !ok {
		t.Fatal("expected model apertus-8b")
	}
	if got := model.ModelDirs[0]; got != filepath.Join(tempHome, "ckpt", "apertus-8b") {
		t.Fatalf("unexpected model dir: %q", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StagingDir, cfg.Paths.StorageDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadUsesLogsRootEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	envRoot := t.TempDir()
	t.Setenv("LOGS_ROOT", envRoot)

	path := writeConfig(t, t.TempDir(), map[string]any{
		"models": map[string]any{
			"m": map[string]any{"model_dirs": []string{"/ckpt/m"}, "frequency": 1},
		},
	})
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.LogsRoot != envRoot {
		t.Fatalf("expected env logs root %q, got %q", envRoot, cfg.Paths.LogsRoot)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, t.TempDir(), map[string]any{
		"paths":  map[string]any{"logs_root": "/logs"},
		"bogus":  map[string]any{"x": 1},
		"models": map[string]any{"m": map[string]any{"model_dirs": []string{"/ckpt/m"}}},
	})
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestValidateRejectsBadModels(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"no models", func(c *config.Config) { c.Models = nil }, "at least one"},
		{"no dirs", func(c *config.Config) {
			c.Models["m"] = config.Model{Frequency: 1}
		}, "model_dirs"},
		{"negative frequency", func(c *config.Config) {
			c.Models["m"] = config.Model{ModelDirs: []string{"/x"}, Frequency: -5}
		}, "frequency"},
		{"negative start", func(c *config.Config) {
			c.Models["m"] = config.Model{ModelDirs: []string{"/x"}, Frequency: 1, StartEvalFrom: -1}
		}, "start_eval_from"},
		{"keep zero", func(c *config.Config) { c.Retention.KeepCheckpoints = 0 }, "keep_checkpoints"},
		{"same staging and storage", func(c *config.Config) { c.Paths.StorageDir = c.Paths.StagingDir }, "must differ"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.LogsRoot = "/logs"
			cfg.Paths.StagingDir = "/staging"
			cfg.Paths.StorageDir = "/storage"
			cfg.Models = map[string]config.Model{"m": {ModelDirs: []string{"/x"}, Frequency: 1}}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestModelEligible(t *testing.T) {
	model := config.Model{StartEvalFrom: 100, Frequency: 50}
	cases := map[int]bool{
		90:  false,
		100: true,
		120: false,
		150: true,
		200: true,
	}
	for it, want := range cases {
		if got := model.Eligible(it); got != want {
			t.Fatalf("Eligible(%d) = %v, want %v", it, got, want)
		}
	}
}

func TestCreateSampleWritesEmbeddedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if _, ok := decoded["retention"]; !ok {
		t.Fatal("expected retention section in sample")
	}
}
