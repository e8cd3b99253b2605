package completion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"evalpilot/internal/catalog"
	"evalpilot/internal/logging"
)

var iterDirPattern = regexp.MustCompile(`^iter_([0-9]+)$`)

const resultTimestampLayout = "2006-01-02T15-04-05.999999"

// ResultFile is one persisted results document.
type ResultFile struct {
	Path      string
	Iteration int
	// Timestamp is parsed from the file name; zero when it does not parse.
	Timestamp time.Time
	// Order is the file's position in discovery order.
	Order int
}

// IterationResults holds everything found for one iteration.
type IterationResults struct {
	Iteration int
	// Keys is the union of raw result keys across every readable file.
	Keys    catalog.TaskSet
	Files   []ResultFile
	Skipped []string
}

type resultsDocument struct {
	Results map[string]json.RawMessage `json:"results"`
}

// Reader scans the completion store.
type Reader struct {
	logsRoot string
	catalog  *catalog.Catalog
	logger   *slog.Logger
}

// NewReader constructs a Reader rooted at logsRoot.
func NewReader(logsRoot string, cat *catalog.Catalog, logger *slog.Logger) *Reader {
	return &Reader{
		logsRoot: logsRoot,
		catalog:  cat,
		logger:   logging.NewComponentLogger(logger, "completion"),
	}
}

// Scan returns the results found for model, keyed by iteration. Iterations
// whose files were all unreadable are omitted.
func (r *Reader) Scan(model string) (map[int]*IterationResults, error) {
	pattern := filepath.Join(r.logsRoot, model, "iter_*", "harness", "eval_*", "*", "results*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("completion: glob %s: %w", pattern, err)
	}

	out := make(map[int]*IterationResults)
	skipped := make(map[int][]string)
	for order, path := range paths {
		iteration, ok := iterationOf(path)
		if !ok {
			continue
		}
		keys, err := readResultKeys(path)
		if err != nil {
			skipped[iteration] = append(skipped[iteration], path)
			logging.WarnWithContext(r.logger, "results file unreadable; skipping", "results_skipped",
				logging.String(logging.FieldModel, model),
				logging.Int(logging.FieldIteration, iteration),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "file may still be written by a running job"),
				logging.String(logging.FieldImpact, "tasks in this file count as not completed"),
			)
			continue
		}
		entry, ok := out[iteration]
		if !ok {
			entry = &IterationResults{Iteration: iteration, Keys: catalog.NewTaskSet()}
			out[iteration] = entry
		}
		entry.Keys.Add(keys...)
		ts, _ := ParseResultTimestamp(filepath.Base(path))
		entry.Files = append(entry.Files, ResultFile{Path: path, Iteration: iteration, Timestamp: ts, Order: order})
	}
	for iteration, paths := range skipped {
		if entry, ok := out[iteration]; ok {
			entry.Skipped = paths
		}
	}
	return out, nil
}

// GetCompleted returns, per iteration, the leaf tasks with a persisted
// result. Aggregate-named leaves are expanded through catalog membership.
func (r *Reader) GetCompleted(model string) (map[int]catalog.TaskSet, error) {
	scanned, err := r.Scan(model)
	if err != nil {
		return nil, err
	}
	out := make(map[int]catalog.TaskSet, len(scanned))
	for iteration, entry := range scanned {
		if r.catalog == nil {
			out[iteration] = entry.Keys
			continue
		}
		out[iteration] = r.catalog.Expand(entry.Keys)
	}
	return out, nil
}

// iterationOf extracts n from .../iter_<n>/harness/eval_*/<sub>/results.json.
func iterationOf(path string) (int, bool) {
	dir := path
	for range 4 {
		dir = filepath.Dir(dir)
	}
	match := iterDirPattern.FindStringSubmatch(filepath.Base(dir))
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func readResultKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc resultsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if doc.Results == nil {
		return nil, fmt.Errorf("parse: missing results object")
	}
	keys := make([]string, 0, len(doc.Results))
	for key := range doc.Results {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ParseResultTimestamp parses the timestamp embedded in a
// results_<ts>.json file name.
func ParseResultTimestamp(name string) (time.Time, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), ".json")
	if !strings.HasPrefix(stem, "results_") {
		return time.Time{}, false
	}
	ts, err := time.Parse(resultTimestampLayout, strings.TrimPrefix(stem, "results_"))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SortResultFiles orders files by parsed timestamp ascending. Files without
// a timestamp sort first; ties keep discovery order.
func SortResultFiles(files []ResultFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Timestamp.Equal(files[j].Timestamp) {
			return files[i].Timestamp.Before(files[j].Timestamp)
		}
		return files[i].Order < files[j].Order
	})
}

// LatestResultFile returns the newest file. Among equal timestamps the one
// discovered last wins.
func LatestResultFile(files []ResultFile) (ResultFile, bool) {
	if len(files) == 0 {
		return ResultFile{}, false
	}
	sorted := append([]ResultFile(nil), files...)
	SortResultFiles(sorted)
	return sorted[len(sorted)-1], true
}
