package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"evalpilot/internal/fileutil"
	"evalpilot/internal/jobqueue"
)

var durablePattern = regexp.MustCompile(`^(.*)_it([0-9]+)$`)

// Export is one checkpoint export directory.
type Export struct {
	Name      string
	Path      string
	Model     string
	Iteration int
	ModTime   time.Time
}

// ExportError pairs an export path with the error that stopped processing it.
type ExportError struct {
	Path  string
	Error error
}

// DurableName returns the durable directory name for model at iteration.
func DurableName(model string, iteration int) string {
	return fmt.Sprintf("%s_it%d", model, iteration)
}

// ParseDurableName splits a durable directory name into model and iteration.
func ParseDurableName(name string) (string, int, bool) {
	match := durablePattern.FindStringSubmatch(name)
	if match == nil || match[1] == "" {
		return "", 0, false
	}
	it, err := strconv.Atoi(match[2])
	if err != nil {
		return "", 0, false
	}
	return match[1], it, true
}

// ListDurable returns the durable exports in storageDir grouped by model,
// each sorted by iteration ascending. A missing directory is empty.
func ListDurable(storageDir string) (map[string][]Export, error) {
	storageDir = strings.TrimSpace(storageDir)
	if storageDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(storageDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	out := make(map[string][]Export)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		model, it, ok := ParseDurableName(entry.Name())
		if !ok {
			continue
		}
		export := Export{
			Name:      entry.Name(),
			Path:      filepath.Join(storageDir, entry.Name()),
			Model:     model,
			Iteration: it,
		}
		if info, err := entry.Info(); err == nil {
			export.ModTime = info.ModTime()
		}
		out[model] = append(out[model], export)
	}
	for model := range out {
		sort.Slice(out[model], func(i, j int) bool {
			return out[model][i].Iteration < out[model][j].Iteration
		})
	}
	return out, nil
}

// StagedListing is the decoded content of the staging directory.
type StagedListing struct {
	// Exports decoded as job names under our prefix, in directory order.
	Exports []Export
	// Malformed entries carry our prefix but did not decode.
	Malformed []ExportError
	// Foreign entries belong to other tools and are never touched.
	Foreign []string
}

// ListStaged decodes the staging directory entries as job names. A missing
// directory is empty.
func ListStaged(stagingDir string, codec jobqueue.Codec) (StagedListing, error) {
	var listing StagedListing
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return listing, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return listing, nil
		}
		return listing, fmt.Errorf("read staging dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		id, err := codec.Decode(entry.Name())
		switch {
		case errors.Is(err, jobqueue.ErrForeignJob):
			listing.Foreign = append(listing.Foreign, path)
			continue
		case err != nil:
			listing.Malformed = append(listing.Malformed, ExportError{Path: path, Error: err})
			continue
		}
		export := Export{Name: entry.Name(), Path: path, Model: id.Model, Iteration: id.Iteration}
		if info, err := entry.Info(); err == nil {
			export.ModTime = info.ModTime()
		}
		listing.Exports = append(listing.Exports, export)
	}
	return listing, nil
}

// Size returns the export's on-disk size in bytes.
func (e Export) Size() int64 {
	return fileutil.DirSize(e.Path)
}
