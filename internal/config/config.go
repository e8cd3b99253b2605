package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogsRoot   string `toml:"logs_root"`
	StagingDir string `toml:"staging_dir"`
	StorageDir string `toml:"storage_dir"`
	LogDir     string `toml:"log_dir"`
	Catalog    string `toml:"catalog"`
}

// Queue contains the batch queue backend settings.
type Queue struct {
	ListCommand    string `toml:"list_command"`
	SubmitCommand  string `toml:"submit_command"`
	Script         string `toml:"script"`
	Owner          string `toml:"owner"`
	CommandTimeout int    `toml:"command_timeout"`
	JobPrefix      string `toml:"job_prefix"`
}

// JobEnv contains environment values forwarded to every submitted job.
type JobEnv struct {
	Tokenizer string            `toml:"tokenizer"`
	BOS       bool              `toml:"bos"`
	Extra     map[string]string `toml:"extra"`
}

// Retention controls how many durable checkpoint exports survive per model.
type Retention struct {
	KeepCheckpoints int `toml:"keep_checkpoints"`
}

// Reconcile contains submission policy knobs.
type Reconcile struct {
	// ShardThreshold is the size class at and above which missing work is
	// submitted as one job per task.
	ShardThreshold int  `toml:"shard_threshold"`
	DryRun         bool `toml:"dry_run"`
}

// Workflow contains daemon timing.
type Workflow struct {
	Interval    int  `toml:"interval"`
	SyncEnabled bool `toml:"sync_enabled"`
}

// Sync contains the experiment tracker sync hook.
type Sync struct {
	Command []string `toml:"command"`
	Entity  string   `toml:"entity"`
	Project string   `toml:"project"`
	Timeout int      `toml:"timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnFailure      bool   `toml:"on_failure"`
	OnSubmission   bool   `toml:"on_submission"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Model describes one evaluated model and its submission cadence.
type Model struct {
	ModelDirs     []string `toml:"model_dirs"`
	Size          int      `toml:"size"`
	TokensPerIter string   `toml:"tokens_per_iter"`
	StartEvalFrom int      `toml:"start_eval_from"`
	Frequency     int      `toml:"frequency"`
}

// Eligible reports whether iteration it falls on the model's cadence.
// Availability on source storage is checked separately.
func (m Model) Eligible(it int) bool {
	if m.Frequency <= 0 || it < m.StartEvalFrom {
		return false
	}
	return (it-m.StartEvalFrom)%m.Frequency == 0
}

// Config encapsulates all configuration values for evalpilot.
//
// Configuration sections by subsystem:
//   - Paths: results root, staging/durable checkpoint storage, log dir, catalog
//   - Queue: batch queue commands and job naming
//   - JobEnv: environment forwarded to submitted jobs
//   - Retention: durable checkpoint keep-count
//   - Reconcile: sharding threshold and dry-run
//   - Workflow: daemon interval and sync toggle
//   - Sync: experiment tracker sync hook
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
//   - Models: per-model checkpoint sources and cadence
type Config struct {
	Paths         Paths            `toml:"paths"`
	Queue         Queue            `toml:"queue"`
	JobEnv        JobEnv           `toml:"job_env"`
	Retention     Retention        `toml:"retention"`
	Reconcile     Reconcile        `toml:"reconcile"`
	Workflow      Workflow         `toml:"workflow"`
	Sync          Sync             `toml:"sync"`
	Notifications Notifications    `toml:"notifications"`
	Logging       Logging          `toml:"logging"`
	Models        map[string]Model `toml:"models"`
}

// ModelNames returns configured model names in sorted order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/evalpilot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("evalpilot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories evalpilot owns. The results root and
// model checkpoint dirs belong to the training/eval jobs and are never created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StagingDir, c.Paths.StorageDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "evalpilot.lock")
}

// CurrentLogPath returns the pointer to the most recent run log.
func (c *Config) CurrentLogPath() string {
	return filepath.Join(c.Paths.LogDir, "evalpilot.log")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "evalpilot.sock")
}

// HistoryPath returns the pass-history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
