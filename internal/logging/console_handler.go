package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// shortPassID is how much of a pass ID the console shows.
const shortPassID = 8

// consoleHandler renders one line per record:
//
//	<ts> <LEVEL> <component>: [<subject>] <message> key=value ...
//
// The subject is the job name when present, else model@iteration. Warnings
// and errors carry their hint and impact on indented follow-up lines.
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	fields := make([]field, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = appendField(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})
	line := splitFields(fields)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.Grow(128 + len(line.rest)*24)
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if line.component != "" {
		b.WriteString(line.component)
		b.WriteString(": ")
	}
	if subject := line.subject(); subject != "" {
		b.WriteByte('[')
		b.WriteString(subject)
		b.WriteString("] ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range line.rest {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(f.value)
	}
	if record.Level >= slog.LevelWarn {
		if line.hint != "" {
			b.WriteString("\n    hint: ")
			b.WriteString(line.hint)
		}
		if line.impact != "" {
			b.WriteString("\n    impact: ")
			b.WriteString(line.impact)
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	return &consoleHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type field struct {
	key   string
	value string
}

// consoleLine is a record's fields sorted into the parts the console layout
// places specially.
type consoleLine struct {
	component string
	model     string
	iteration string
	jobName   string
	hint      string
	impact    string
	rest      []field
}

func splitFields(fields []field) consoleLine {
	var line consoleLine
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			line.component = firstNonEmpty(line.component, f.value)
		case FieldModel:
			line.model = f.value
		case FieldIteration:
			line.iteration = f.value
		case FieldJobName:
			line.jobName = f.value
		case FieldErrorHint:
			line.hint = f.value
		case FieldImpact:
			line.impact = f.value
		case FieldPassID:
			if len(f.value) > shortPassID {
				f.value = f.value[:shortPassID]
			}
			line.rest = append(line.rest, f)
		default:
			line.rest = append(line.rest, f)
		}
	}
	return line
}

func (l consoleLine) subject() string {
	switch {
	case l.jobName != "":
		return l.jobName
	case l.model != "" && l.iteration != "":
		return l.model + "@" + l.iteration
	case l.model != "":
		return l.model
	case l.iteration != "":
		return "@" + l.iteration
	default:
		return ""
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func appendField(dst []field, prefix []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(prefix[:len(prefix):len(prefix)], attr.Key)
		}
		for _, member := range attr.Value.Group() {
			dst = appendField(dst, prefix, member)
		}
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(prefix[:len(prefix):len(prefix)], key), ".")
	}
	if key == "" {
		return dst
	}
	value := formatValue(attr.Value)
	if key == FieldComponent || key == FieldErrorHint || key == FieldImpact {
		value = plainValue(attr.Value)
	}
	return append(dst, field{key: key, value: value})
}

// plainValue renders v without quoting, for text placed outside key=value
// pairs.
func plainValue(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return formatValue(v)
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n=\"") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
