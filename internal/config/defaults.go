package config

const (
	defaultStagingDir        = "~/.local/share/evalpilot/hf_temp"
	defaultStorageDir        = "~/.local/share/evalpilot/hf_checkpoints"
	defaultLogDir            = "~/.local/share/evalpilot/logs"
	defaultCatalogPath       = "configs/tasks.json"
	defaultListCommand       = "squeue"
	defaultSubmitCommand     = "sbatch"
	defaultScript            = "scripts/evaluate.sbatch"
	defaultCommandTimeout    = 60
	defaultJobPrefix         = "eval"
	defaultTokenizer         = "alehc/swissai-tokenizer"
	defaultKeepCheckpoints   = 2
	defaultShardThreshold    = 70
	defaultWorkflowInterval  = 3600
	defaultSyncTimeout       = 1800
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultModelFrequency    = 1
	defaultSyncCommandPython = "python3"
	defaultSyncCommandScript = "scripts/update_wandb.py"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
			Catalog:    defaultCatalogPath,
		},
		Queue: Queue{
			ListCommand:    defaultListCommand,
			SubmitCommand:  defaultSubmitCommand,
			Script:         defaultScript,
			CommandTimeout: defaultCommandTimeout,
			JobPrefix:      defaultJobPrefix,
		},
		JobEnv: JobEnv{
			Tokenizer: defaultTokenizer,
			BOS:       true,
		},
		Retention: Retention{
			KeepCheckpoints: defaultKeepCheckpoints,
		},
		Reconcile: Reconcile{
			ShardThreshold: defaultShardThreshold,
		},
		Workflow: Workflow{
			Interval:    defaultWorkflowInterval,
			SyncEnabled: true,
		},
		Sync: Sync{
			Command: []string{defaultSyncCommandPython, defaultSyncCommandScript},
			Timeout: defaultSyncTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			OnFailure:      true,
			OnSubmission:   false,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
