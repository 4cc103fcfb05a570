// pattern: Functional Core

package logging

import (
	"fmt"
	"strings"
	"time"
)

// LogEntry is one structured log record, parsed back out of the JSON the
// encoder wrote. The web layer streams these to clients and the CLI renders
// them for `grove logs`, so the field names are part of the API surface.
type LogEntry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Scope     string         `json:"scope"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// String returns a human-readable one-line rendering of the entry.
func (e LogEntry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(e.Level)
	sb.WriteString(" [")
	sb.WriteString(e.Scope)
	sb.WriteString("] ")
	sb.WriteString(e.Message)

	if len(e.Fields) > 0 {
		sb.WriteString(" ")
		first := true
		for k, v := range e.Fields {
			if !first {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, v)
			first = false
		}
	}

	return sb.String()
}

// MatchesScope reports whether the entry's scope starts with prefix. An empty
// prefix matches everything.
func (e LogEntry) MatchesScope(prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(e.Scope, prefix)
}

// ParseLevel normalizes a level string to its canonical uppercase form,
// defaulting to INFO for anything unrecognized.
func ParseLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
