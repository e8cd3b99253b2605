package preflight

import (
	"context"
	"fmt"

	"evalpilot/internal/config"
	"evalpilot/internal/deps"
)

// minStagingFree is the free space below which staging is reported unhealthy.
// A single 8B export is roughly 16 GiB.
const minStagingFree = 32 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory results are reported but never block a pass.
	Advisory bool
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckReadable("Results root", cfg.Paths.LogsRoot))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir))
	results = append(results, CheckCatalog(cfg.Paths.Catalog))

	free := CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, minStagingFree)
	free.Advisory = true
	results = append(results, free)

	for _, name := range cfg.ModelNames() {
		for _, dir := range cfg.Models[name].ModelDirs {
			res := CheckReadable(fmt.Sprintf("Model %s checkpoints", name), dir)
			res.Advisory = true
			results = append(results, res)
		}
	}

	if ctx.Err() != nil {
		return results
	}
	return append(results, FromDeps(CheckSystemDeps(cfg))...)
}

// Blocking returns the failed results that should stop a pass.
func Blocking(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if !res.Passed && !res.Advisory {
			out = append(out, res)
		}
	}
	return out
}

// FromDeps converts dependency statuses into preflight results. Optional
// dependencies become advisory.
func FromDeps(statuses []deps.Status) []Result {
	out := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		detail := status.Path
		if !status.Available {
			detail = status.Detail
		}
		out = append(out, Result{Name: status.Name, Passed: status.Available, Detail: detail, Advisory: status.Optional})
	}
	return out
}
