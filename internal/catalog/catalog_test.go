package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleJSON = `{
  "root": "all",
  "groups": {
    "all": ["hellaswag", "arc", "mmlu", "xnli", "all"],
    "reasoning": ["arc", "hellaswag"],
    "xnli": ["xnli-de", "xnli-fr"]
  },
  "show_in_table": ["reasoning"]
}`

func mustParse(t *testing.T, data string) *Catalog {
	t.Helper()
	cat, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cat
}

func TestParseJSONDocument(t *testing.T) {
	cat := mustParse(t, sampleJSON)

	if got := cat.RootAggregate(); got != "all" {
		t.Fatalf("root = %q", got)
	}
	want := []string{"arc", "hellaswag", "mmlu", "xnli"}
	if got := cat.AllLeafTasks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("leaves = %v, want %v", got, want)
	}
	aggs := cat.Aggregates()
	if !reflect.DeepEqual(aggs["all"], want) {
		t.Fatalf("root membership = %v", aggs["all"])
	}
	if !reflect.DeepEqual(aggs["reasoning"], []string{"arc", "hellaswag"}) {
		t.Fatalf("reasoning = %v", aggs["reasoning"])
	}
	if got := cat.ShowInTable(); !reflect.DeepEqual(got, []string{"reasoning"}) {
		t.Fatalf("show_in_table = %v", got)
	}
}

func TestParseYAMLDocument(t *testing.T) {
	cat := mustParse(t, "root: core\ngroups:\n  core: [a, b]\n")
	if !reflect.DeepEqual(cat.AllLeafTasks(), []string{"a", "b"}) {
		t.Fatalf("leaves = %v", cat.AllLeafTasks())
	}
}

func TestAggregatesReturnsCopy(t *testing.T) {
	cat := mustParse(t, sampleJSON)
	aggs := cat.Aggregates()
	aggs["all"][0] = "mutated"
	leaves := cat.AllLeafTasks()
	leaves[0] = "mutated"
	if cat.Aggregates()["all"][0] != "arc" || cat.AllLeafTasks()[0] != "arc" {
		t.Fatal("catalog state leaked through accessor")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "root: [unterminated"},
		{"missing root", `{"groups": {"all": ["a"]}}`},
		{"root not in groups", `{"root": "all", "groups": {"x": ["a"]}}`},
		{"empty root group", `{"root": "all", "groups": {"all": ["all"]}}`},
		{"underscore leaf", `{"root": "all", "groups": {"all": ["a_b"]}}`},
		{"plus leaf", `{"root": "all", "groups": {"all": ["a+b"]}}`},
		{"space leaf", `{"root": "all", "groups": {"all": ["a b"]}}`},
		{"underscore root", `{"root": "all_tasks", "groups": {"all_tasks": ["a"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.RootAggregate() != "all" {
		t.Fatalf("root = %q", cat.RootAggregate())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIsUniverse(t *testing.T) {
	cat := mustParse(t, sampleJSON)
	if !cat.IsUniverse([]string{"xnli", "mmlu", "hellaswag", "arc"}) {
		t.Fatal("full set should be the universe")
	}
	if cat.IsUniverse([]string{"arc", "mmlu"}) {
		t.Fatal("partial set is not the universe")
	}
	if cat.IsUniverse([]string{"arc", "hellaswag", "mmlu", "other"}) {
		t.Fatal("foreign task must not count")
	}
}

func TestExpandAggregateNamedLeaf(t *testing.T) {
	cat := mustParse(t, sampleJSON)

	done := cat.Expand(NewTaskSet("arc", "xnli-de", "xnli-fr", "unknown"))
	if got := done.Sorted(); !reflect.DeepEqual(got, []string{"arc", "xnli"}) {
		t.Fatalf("expanded = %v", got)
	}

	partial := cat.Expand(NewTaskSet("xnli-de"))
	if partial.Has("xnli") {
		t.Fatal("partially reported aggregate leaf must not count as complete")
	}
}

func TestExpandIgnoresAggregateSummaryKey(t *testing.T) {
	cat := mustParse(t, sampleJSON)

	done := cat.Expand(NewTaskSet("xnli", "xnli-de"))
	if done.Has("xnli") {
		t.Fatalf("summary key without every member must not complete xnli: %v", done.Sorted())
	}

	done = cat.Expand(NewTaskSet("xnli", "xnli-de", "xnli-fr", "arc"))
	if got := done.Sorted(); !reflect.DeepEqual(got, []string{"arc", "xnli"}) {
		t.Fatalf("expanded = %v", got)
	}
}

func TestSatisfied(t *testing.T) {
	cat := mustParse(t, sampleJSON)

	got := cat.Satisfied(NewTaskSet("arc", "hellaswag"))
	if !reflect.DeepEqual(got, []string{"reasoning"}) {
		t.Fatalf("satisfied = %v", got)
	}

	got = cat.Satisfied(NewTaskSet("arc", "hellaswag", "mmlu", "xnli"))
	if !reflect.DeepEqual(got, []string{"all", "reasoning", "xnli"}) {
		t.Fatalf("satisfied = %v", got)
	}
}

func TestTaskSetMissing(t *testing.T) {
	set := NewTaskSet("b")
	if got := set.Missing([]string{"c", "a", "b"}); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("missing = %v", got)
	}
	union := set.Union(NewTaskSet("a"))
	if !union.ContainsAll([]string{"a", "b"}) || len(set) != 1 {
		t.Fatalf("union = %v, original = %v", union.Sorted(), set.Sorted())
	}
}
