package jobqueue

import (
	"errors"
	"reflect"
	"testing"

	"evalpilot/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.Document{
		Root:   "all",
		Groups: map[string][]string{"all": {"A", "B", "C"}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestNewJobIDAliasesUniverseToRoot(t *testing.T) {
	cat := testCatalog(t)
	codec := NewCodec("eval", cat.RootAggregate())

	id := NewJobID(cat, "llama", 100, []string{"C", "A", "B"})
	if !id.Root || id.Tasks != nil {
		t.Fatalf("expected root job, got %+v", id)
	}
	name, err := codec.Encode(id)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if name != "eval_llama_all_100" {
		t.Fatalf("name = %q", name)
	}
	if codec.Alias(id) != "all" {
		t.Fatalf("alias = %q", codec.Alias(id))
	}
}

func TestEncodeDecodeTaskList(t *testing.T) {
	cat := testCatalog(t)
	codec := NewCodec("eval", cat.RootAggregate())

	id := NewJobID(cat, "swiss_ai_8b", 2000, []string{"C", "A"})
	name, err := codec.Encode(id)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if name != "eval_swiss_ai_8b_A+C_2000" {
		t.Fatalf("name = %q", name)
	}
	if codec.Alias(id) != "A C" {
		t.Fatalf("alias = %q", codec.Alias(id))
	}

	decoded, err := codec.Decode(name)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, id) {
		t.Fatalf("decoded %+v, want %+v", decoded, id)
	}
}

func TestDecodeRootAlias(t *testing.T) {
	codec := NewCodec("eval", "all")
	id, err := codec.Decode("eval_m_all_50")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !id.Root || id.Model != "m" || id.Iteration != 50 {
		t.Fatalf("decoded %+v", id)
	}
	if got := id.Covers([]string{"A", "B"}); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("covers = %v", got)
	}
}

func TestDecodeClassifiesNames(t *testing.T) {
	codec := NewCodec("eval", "all")
	tests := []struct {
		name string
		want error
	}{
		{"interactive", ErrForeignJob},
		{"evaluation_run", ErrForeignJob},
		{"eval_model_100", ErrMalformedJobName},
		{"eval_model_A_x", ErrMalformedJobName},
		{"eval_model_A++B_10", ErrMalformedJobName},
		{"eval_model_A_99999999999999999999999", ErrMalformedJobName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decode(tt.name); !errors.Is(err, tt.want) {
				t.Fatalf("Decode(%q) err = %v, want %v", tt.name, err, tt.want)
			}
		})
	}
}

func TestEncodeRejectsInvalidIDs(t *testing.T) {
	codec := NewCodec("eval", "all")
	for _, id := range []JobID{
		{Model: "", Iteration: 1, Root: true},
		{Model: "m", Iteration: -1, Root: true},
		{Model: "m", Iteration: 1},
		{Model: "m", Iteration: 1, Tasks: []string{"a_b"}},
		{Model: "has space", Iteration: 1, Root: true},
	} {
		if _, err := codec.Encode(id); err == nil {
			t.Errorf("expected error for %+v", id)
		}
	}
}
