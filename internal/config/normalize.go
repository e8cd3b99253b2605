package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeSync()
	c.normalizeLogging()
	return c.normalizeModels()
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.LogsRoot) == "" {
		if value, ok := os.LookupEnv("LOGS_ROOT"); ok {
			c.Paths.LogsRoot = strings.TrimSpace(value)
		}
	}

	var err error
	if c.Paths.LogsRoot, err = expandPath(strings.TrimSpace(c.Paths.LogsRoot)); err != nil {
		return fmt.Errorf("paths.logs_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Catalog) == "" {
		c.Paths.Catalog = defaultCatalogPath
	}
	if c.Paths.Catalog, err = expandPath(c.Paths.Catalog); err != nil {
		return fmt.Errorf("paths.catalog: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.ListCommand = strings.TrimSpace(c.Queue.ListCommand)
	if c.Queue.ListCommand == "" {
		c.Queue.ListCommand = defaultListCommand
	}
	c.Queue.SubmitCommand = strings.TrimSpace(c.Queue.SubmitCommand)
	if c.Queue.SubmitCommand == "" {
		c.Queue.SubmitCommand = defaultSubmitCommand
	}
	c.Queue.Script = strings.TrimSpace(c.Queue.Script)
	if c.Queue.Script == "" {
		c.Queue.Script = defaultScript
	}
	c.Queue.Owner = strings.TrimSpace(c.Queue.Owner)
	c.Queue.JobPrefix = strings.TrimSpace(c.Queue.JobPrefix)
	if c.Queue.JobPrefix == "" {
		c.Queue.JobPrefix = defaultJobPrefix
	}
	c.JobEnv.Tokenizer = strings.TrimSpace(c.JobEnv.Tokenizer)
}

func (c *Config) normalizeSync() {
	cleaned := make([]string, 0, len(c.Sync.Command))
	for _, arg := range c.Sync.Command {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	c.Sync.Command = cleaned
	if c.Sync.Entity == "" {
		c.Sync.Entity = strings.TrimSpace(os.Getenv("WANDB_ENTITY"))
	}
	if c.Sync.Project == "" {
		c.Sync.Project = strings.TrimSpace(os.Getenv("WANDB_PROJECT"))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeModels() error {
	if len(c.Models) == 0 {
		return nil
	}
	normalized := make(map[string]Model, len(c.Models))
	for name, model := range c.Models {
		name = strings.TrimSpace(name)
		dirs := make([]string, 0, len(model.ModelDirs))
		for _, dir := range model.ModelDirs {
			if strings.TrimSpace(dir) == "" {
				continue
			}
			expanded, err := expandPath(strings.TrimSpace(dir))
			if err != nil {
				return fmt.Errorf("models.%s.model_dirs: %w", name, err)
			}
			dirs = append(dirs, expanded)
		}
		model.ModelDirs = dirs
		model.TokensPerIter = strings.TrimSpace(model.TokensPerIter)
		if model.Frequency == 0 {
			model.Frequency = defaultModelFrequency
		}
		normalized[name] = model
	}
	c.Models = normalized
	return nil
}
