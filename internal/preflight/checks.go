package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"evalpilot/internal/catalog"
	"evalpilot/internal/config"
	"evalpilot/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadable verifies that a directory exists and can be listed.
func CheckReadable(name, path string) Result {
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %s", detail, formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCatalog verifies the work catalog loads.
func CheckCatalog(path string) Result {
	const name = "Work catalog"
	cat, err := catalog.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d leaf tasks)", path, len(cat.AllLeafTasks()))}
}

// CheckSystemDeps evaluates the queue binaries and, when syncing is enabled,
// the tracker sync command.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "squeue",
			Command:     cfg.Queue.ListCommand,
			Description: "Required to list in-flight jobs",
		},
		{
			Name:        "sbatch",
			Command:     cfg.Queue.SubmitCommand,
			Description: "Required to submit evaluation jobs",
		},
	}
	if len(cfg.Sync.Command) > 0 {
		requirements = append(requirements, deps.Requirement{
			Name:        "sync",
			Command:     cfg.Sync.Command[0],
			Description: "Pushes results to the experiment tracker",
			Optional:    !cfg.Workflow.SyncEnabled,
		})
	}
	return deps.CheckBinaries(requirements)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
