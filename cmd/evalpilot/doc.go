// Command evalpilot keeps evaluation coverage of training checkpoints
// complete. It submits missing evaluation jobs to Slurm, promotes finished
// checkpoint exports into durable storage, and retires all but the newest
// exports per model.
//
// Usage:
//
//	evalpilot run [--dry-run]   one pass, then exit
//	evalpilot daemon            a pass every workflow.interval seconds
//	evalpilot status            per-iteration coverage without submitting
//	evalpilot checkpoints       durable and staged exports
//	evalpilot history           recent passes and their events
//	evalpilot deps              preflight and binary checks
//	evalpilot config init       write a sample configuration
package main
