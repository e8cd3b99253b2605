// Package checkpoints discovers which iterations are available on a model's
// source storage.
package checkpoints

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ErrDuplicateIteration marks an iteration found under more than one source
// directory of the same model.
var ErrDuplicateIteration = errors.New("iteration present in multiple model directories")

var iterPattern = regexp.MustCompile(`^iter_([0-9]+)$`)

// Available maps each available iteration to the source directory holding it.
type Available map[int]string

// Iterations returns the available iterations in ascending order.
func (a Available) Iterations() []int {
	out := make([]int, 0, len(a))
	for it := range a {
		out = append(out, it)
	}
	sort.Ints(out)
	return out
}

// Discover lists iter_<n> entries across modelDirs. Entries with a file
// extension are ignored. A missing directory contributes nothing.
func Discover(modelDirs []string) (Available, error) {
	out := make(Available)
	for _, dir := range modelDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read model dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if filepath.Ext(name) != "" {
				continue
			}
			match := iterPattern.FindStringSubmatch(name)
			if match == nil {
				continue
			}
			it, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if prev, ok := out[it]; ok && prev != dir {
				return nil, fmt.Errorf("%w: iteration %d in %s and %s", ErrDuplicateIteration, it, prev, dir)
			}
			out[it] = dir
		}
	}
	return out, nil
}
