// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ChannelSink implements zapcore.WriteSyncer and routes parsed entries to a
// channel, which the daemon republishes on its event stream. Writes never
// block: when the buffer is full the oldest entry is dropped so logging can
// never stall the writer.
type ChannelSink struct {
	entries chan LogEntry
	mu      sync.Mutex
	closed  bool
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{
		entries: make(chan LogEntry, bufferSize),
	}
}

// Write implements io.Writer. It parses the JSON record zap encoded and
// forwards it as a LogEntry. Unparseable input is acknowledged and dropped.
func (s *ChannelSink) Write(p []byte) (int, error) {
	entry, err := parseZapLine(p)
	if err != nil {
		return len(p), nil
	}
	if err := s.Send(entry); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Send enqueues an already-parsed entry, dropping the oldest buffered entry
// when full. The log tailer uses this to inject entries read from disk.
func (s *ChannelSink) Send(entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("send to closed channel sink")
	}

	select {
	case s.entries <- entry:
	default:
		select {
		case <-s.entries:
		default:
		}
		select {
		case s.entries <- entry:
		default:
		}
	}
	return nil
}

// Sync implements zapcore.WriteSyncer. Nothing to flush.
func (s *ChannelSink) Sync() error {
	return nil
}

// Close closes the entries channel. Safe to call more than once.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	return nil
}

// Entries returns the channel consumers read from.
func (s *ChannelSink) Entries() <-chan LogEntry {
	return s.entries
}

// parseZapLine converts one JSON log line in the production encoder's format
// into a LogEntry. Shared by the sink and the log-file tailer, which read the
// same format from different sources.
func parseZapLine(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Fields:    make(map[string]any),
	}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
		delete(raw, "msg")
	}

	if level, ok := raw["level"].(string); ok {
		entry.Level = ParseLevel(level)
		delete(raw, "level")
	} else {
		entry.Level = "INFO"
	}

	if logger, ok := raw["logger"].(string); ok {
		entry.Scope = logger
		delete(raw, "logger")
	} else {
		entry.Scope = "grove"
	}

	// The encoder writes epoch seconds with fractional nanoseconds.
	if ts, ok := raw["ts"].(float64); ok {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		entry.Timestamp = time.Unix(sec, nsec)
		delete(raw, "ts")
	}

	delete(raw, "caller")
	delete(raw, "stacktrace")

	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, nil
}
