package daemon

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the pass lock.
var ErrAlreadyRunning = errors.New("another evalpilot process is already running passes")

// AcquireLock takes the single-instance lock at path without blocking.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}
	return lock, nil
}
