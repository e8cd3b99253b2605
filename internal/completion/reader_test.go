package completion

import (
	"reflect"
	"testing"
	"time"

	"evalpilot/internal/logging"
	"evalpilot/internal/testsupport"
)

func TestGetCompletedUnionsFilesPerIteration(t *testing.T) {
	root := t.TempDir()
	cat := testsupport.NewCatalog(t, []string{"arc", "mmlu", "xnli"}, map[string][]string{
		"xnli": {"xnli-de", "xnli-fr"},
	})
	testsupport.WriteResults(t, root, "m", 100, "2025-07-26T00-35-42.178646", "arc")
	testsupport.WriteResults(t, root, "m", 100, "2025-07-27T10-00-00.000001", "xnli-de", "xnli-fr")
	testsupport.WriteResults(t, root, "m", 200, "2025-07-28T10-00-00.000001", "mmlu")
	testsupport.WriteResults(t, root, "other", 100, "2025-07-28T10-00-00.000001", "mmlu")

	reader := NewReader(root, cat, logging.NewNop())
	got, err := reader.GetCompleted("m")
	if err != nil {
		t.Fatalf("GetCompleted: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("iterations = %v", got)
	}
	if !reflect.DeepEqual(got[100].Sorted(), []string{"arc", "xnli"}) {
		t.Fatalf("iter 100 = %v", got[100].Sorted())
	}
	if !reflect.DeepEqual(got[200].Sorted(), []string{"mmlu"}) {
		t.Fatalf("iter 200 = %v", got[200].Sorted())
	}
}

func TestGetCompletedSkipsMalformedFiles(t *testing.T) {
	root := t.TempDir()
	cat := testsupport.NewCatalog(t, []string{"arc", "mmlu"}, nil)
	testsupport.WriteResults(t, root, "m", 100, "2025-07-26T00-35-42.178646", "arc")
	testsupport.WriteRawResults(t, root, "m", 100, "2025-07-26T01-00-00.000000", []byte(`{"results": {"mmlu"`))
	testsupport.WriteRawResults(t, root, "m", 300, "2025-07-26T01-00-00.000000", []byte(`{}`))

	reader := NewReader(root, cat, logging.NewNop())
	scanned, err := reader.Scan("m")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := scanned[300]; ok {
		t.Fatal("iteration with only unreadable files must be omitted")
	}
	entry := scanned[100]
	if entry == nil || len(entry.Files) != 1 || len(entry.Skipped) != 1 {
		t.Fatalf("entry = %+v", entry)
	}
	if !reflect.DeepEqual(entry.Keys.Sorted(), []string{"arc"}) {
		t.Fatalf("keys = %v", entry.Keys.Sorted())
	}
}

func TestGetCompletedMissingTreeIsEmpty(t *testing.T) {
	reader := NewReader(t.TempDir(), nil, logging.NewNop())
	got, err := reader.GetCompleted("absent")
	if err != nil {
		t.Fatalf("GetCompleted: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no iterations, got %v", got)
	}
}

func TestParseResultTimestamp(t *testing.T) {
	ts, ok := ParseResultTimestamp("results_2025-07-26T00-35-42.178646.json")
	if !ok {
		t.Fatal("expected timestamp to parse")
	}
	want := time.Date(2025, 7, 26, 0, 35, 42, 178646000, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("ts = %v, want %v", ts, want)
	}
	for _, name := range []string{"results.json", "results_garbage.json", "other_2025-07-26T00-35-42.json"} {
		if _, ok := ParseResultTimestamp(name); ok {
			t.Errorf("%q should not parse", name)
		}
	}
}

func TestLatestResultFileOrdersByTimestamp(t *testing.T) {
	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	files := []ResultFile{
		{Path: "b", Timestamp: late, Order: 0},
		{Path: "a", Timestamp: early, Order: 1},
		{Path: "none", Order: 2},
	}
	got, ok := LatestResultFile(files)
	if !ok || got.Path != "b" {
		t.Fatalf("latest = %+v", got)
	}
	if files[0].Path != "b" {
		t.Fatal("LatestResultFile must not reorder its input")
	}

	tied := []ResultFile{
		{Path: "first", Timestamp: late, Order: 0},
		{Path: "second", Timestamp: late, Order: 1},
	}
	if got, _ := LatestResultFile(tied); got.Path != "second" {
		t.Fatalf("tie should go to last discovered, got %q", got.Path)
	}
	if _, ok := LatestResultFile(nil); ok {
		t.Fatal("empty input has no latest file")
	}
}
