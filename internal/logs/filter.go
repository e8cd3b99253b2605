package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"evalpilot/internal/logging"
)

// Record is one decoded line of a JSON run log.
type Record struct {
	Time    string
	Level   string
	Message string
	Fields  map[string]any
}

// ParseRecord decodes a JSON log line. Lines that are not JSON objects, such
// as console-format output, report false.
func ParseRecord(line string) (Record, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{}, false
	}
	rec := Record{Fields: raw}
	rec.Time, _ = raw["ts"].(string)
	rec.Level, _ = raw["level"].(string)
	rec.Message, _ = raw["msg"].(string)
	delete(raw, "ts")
	delete(raw, "level")
	delete(raw, "msg")
	return rec, true
}

// Filter narrows log records. Zero fields match everything.
type Filter struct {
	PassID   string
	Model    string
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Active reports whether f filters anything.
func (f Filter) Active() bool {
	return f.PassID != "" || f.Model != "" || f.MinLevel != ""
}

// Match reports whether line passes the filter. Unparseable lines pass only
// an inactive filter.
func (f Filter) Match(line string) bool {
	if !f.Active() {
		return true
	}
	rec, ok := ParseRecord(line)
	if !ok {
		return false
	}
	return f.MatchRecord(rec)
}

// MatchRecord reports whether rec passes the filter.
func (f Filter) MatchRecord(rec Record) bool {
	if f.PassID != "" && fieldString(rec.Fields, logging.FieldPassID) != f.PassID {
		return false
	}
	if f.Model != "" && fieldString(rec.Fields, logging.FieldModel) != f.Model {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		have, known := levelRank[strings.ToLower(rec.Level)]
		if ok && known && have < want {
			return false
		}
	}
	return true
}

// Format renders rec as one compact human-readable line.
func Format(rec Record) string {
	var b strings.Builder
	if rec.Time != "" {
		b.WriteString(rec.Time)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", strings.ToUpper(rec.Level), rec.Message)
	keys := make([]string, 0, len(rec.Fields))
	for key := range rec.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, rec.Fields[key])
	}
	return b.String()
}

func fieldString(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
