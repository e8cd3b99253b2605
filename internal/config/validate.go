package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateModels()
}

func (c *Config) validatePaths() error {
	if c.Paths.LogsRoot == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/evalpilot/config.toml"
		}
		return fmt.Errorf("paths.logs_root is required. Set LOGS_ROOT env var or edit %s (create with 'evalpilot config init')", defaultPath)
	}
	if c.Paths.StagingDir == c.Paths.StorageDir {
		return errors.New("paths.staging_dir and paths.storage_dir must differ")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.CommandTimeout <= 0 {
		return errors.New("queue.command_timeout must be positive (seconds)")
	}
	if strings.ContainsAny(c.Queue.JobPrefix, "_ \t") {
		return fmt.Errorf("queue.job_prefix %q must not contain underscores or whitespace", c.Queue.JobPrefix)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.interval":             c.Workflow.Interval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"retention.keep_checkpoints":    c.Retention.KeepCheckpoints,
		"reconcile.shard_threshold":     c.Reconcile.ShardThreshold,
	}); err != nil {
		return err
	}
	if c.Workflow.SyncEnabled && len(c.Sync.Command) == 0 {
		return errors.New("sync.command must be set when workflow.sync_enabled is true")
	}
	if c.Workflow.SyncEnabled && c.Sync.Timeout <= 0 {
		return errors.New("sync.timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateModels() error {
	if len(c.Models) == 0 {
		return errors.New("at least one [models.<name>] table is required")
	}
	for _, name := range c.ModelNames() {
		model := c.Models[name]
		if name == "" || strings.ContainsAny(name, " \t/") {
			return fmt.Errorf("model name %q must be non-empty without whitespace or slashes", name)
		}
		if len(model.ModelDirs) == 0 {
			return fmt.Errorf("models.%s.model_dirs must list at least one directory", name)
		}
		if model.Frequency <= 0 {
			return fmt.Errorf("models.%s.frequency must be positive", name)
		}
		if model.StartEvalFrom < 0 {
			return fmt.Errorf("models.%s.start_eval_from must be zero or positive", name)
		}
		if model.Size < 0 {
			return fmt.Errorf("models.%s.size must be zero or positive", name)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
