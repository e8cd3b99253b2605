// Package config loads, normalizes, and validates evalpilot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LOGS_ROOT and WANDB_PROJECT. The Config type centralizes the queue backend,
// checkpoint storage locations, retention policy, and the per-model cadence
// table so every component receives the same immutable view of a run.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
