package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteResults writes a results document for model at iteration under
// logsRoot, reporting a result for each task. stamp is the results file
// timestamp, e.g. "2025-07-26T00-35-42.178646".
func WriteResults(t testing.TB, logsRoot, model string, iteration int, stamp string, tasks ...string) string {
	t.Helper()

	results := make(map[string]map[string]any, len(tasks))
	for _, task := range tasks {
		results[task] = map[string]any{"acc,none": 0.5}
	}
	data, err := json.Marshal(map[string]any{"results": results})
	if err != nil {
		t.Fatalf("marshal results: %v", err)
	}
	return WriteRawResults(t, logsRoot, model, iteration, stamp, data)
}

// WriteRawResults writes data verbatim as a results document.
func WriteRawResults(t testing.TB, logsRoot, model string, iteration int, stamp string, data []byte) string {
	t.Helper()

	dir := filepath.Join(logsRoot, model, fmt.Sprintf("iter_%d", iteration), "harness", "eval_"+stamp, "run")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "results_"+stamp+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// MakeCheckpoint creates an available checkpoint iter_<%07d> under modelDir.
func MakeCheckpoint(t testing.TB, modelDir string, iteration int) string {
	t.Helper()

	path := filepath.Join(modelDir, fmt.Sprintf("iter_%07d", iteration))
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	return path
}

// MakeExport creates a checkpoint export directory name under dir holding a
// small weights file.
func MakeExport(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, filepath.Join(path, "model.safetensors"), 64)
	return path
}
