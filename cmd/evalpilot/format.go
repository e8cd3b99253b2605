package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	numberPrinter = message.NewPrinter(language.English)
	titleCaser    = cases.Title(language.English)
)

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	return numberPrinter.Sprintf("%d", n)
}

// formatBytes renders a byte count in binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return numberPrinter.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatTasks renders a task list, collapsing long lists to a count.
func formatTasks(tasks []string, limit int) string {
	switch {
	case len(tasks) == 0:
		return "-"
	case limit > 0 && len(tasks) > limit:
		return fmt.Sprintf("%s +%d", strings.Join(tasks[:limit], ","), len(tasks)-limit)
	default:
		return strings.Join(tasks, ",")
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatLabel(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}
