package logs

import (
	"strings"
	"testing"
)

const sampleLine = `{"ts":"2025-07-26T00:35:42Z","level":"warn","msg":"export promotion failed","pass_id":"p1","model":"m","iteration":2}`

func TestParseRecord(t *testing.T) {
	rec, ok := ParseRecord(sampleLine)
	if !ok {
		t.Fatal("expected JSON line to parse")
	}
	if rec.Level != "warn" || rec.Message != "export promotion failed" || rec.Time == "" {
		t.Fatalf("unexpected record %#v", rec)
	}
	if _, ok := rec.Fields["msg"]; ok {
		t.Fatal("standard keys should be lifted out of Fields")
	}
	if _, ok := ParseRecord("INFO plain console line"); ok {
		t.Fatal("console line should not parse")
	}
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		line   string
		want   bool
	}{
		{"inactive passes anything", Filter{}, "not json", true},
		{"active rejects non-json", Filter{Model: "m"}, "not json", false},
		{"pass match", Filter{PassID: "p1"}, sampleLine, true},
		{"pass mismatch", Filter{PassID: "p2"}, sampleLine, false},
		{"model match", Filter{Model: "m"}, sampleLine, true},
		{"model mismatch", Filter{Model: "other"}, sampleLine, false},
		{"level at threshold", Filter{MinLevel: "warn"}, sampleLine, true},
		{"level below threshold", Filter{MinLevel: "error"}, sampleLine, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.line); got != tt.want {
				t.Fatalf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	rec, _ := ParseRecord(sampleLine)
	got := Format(rec)
	if !strings.HasPrefix(got, "2025-07-26T00:35:42Z WARN  export promotion failed") {
		t.Fatalf("unexpected prefix %q", got)
	}
	if !strings.HasSuffix(got, "iteration=2 model=m pass_id=p1") {
		t.Fatalf("fields should be sorted, got %q", got)
	}
}
