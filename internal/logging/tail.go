// pattern: Imperative Shell

package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tailer follows the daemon's JSONL log file and feeds parsed entries into a
// ChannelSink, for `grove logs --follow` and the web log stream. It watches
// the parent directory with fsnotify and keeps a polling safeguard for
// filesystems with unreliable change events (network mounts, WSL shares).
type Tailer struct {
	filePath string
	sink     *ChannelSink
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	file   *os.File
	offset int64
	closed bool
}

// NewTailer creates a tailer for the given log file. Entries are delivered
// through sink.
func NewTailer(filePath string, sink *ChannelSink) (*Tailer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Tailer{
		filePath: filePath,
		sink:     sink,
		watcher:  watcher,
	}, nil
}

// Start begins following the file and returns when ctx ends. Existing content
// is skipped; only lines appended after the start are emitted.
func (t *Tailer) Start(ctx context.Context) error {
	// Watch the parent directory: the file itself may not exist yet, and
	// rotation replaces it.
	dir := filepath.Dir(t.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := t.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	t.mu.Lock()
	_ = t.openFile(true)
	t.mu.Unlock()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = t.Close()
			return ctx.Err()

		case event, ok := <-t.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(t.filePath) {
				continue
			}

			if event.Has(fsnotify.Create) {
				t.mu.Lock()
				_ = t.openFile(false)
				t.readNewLines()
				t.mu.Unlock()
			}
			if event.Has(fsnotify.Write) {
				t.mu.Lock()
				t.readNewLines()
				t.mu.Unlock()
			}
			// Remove or rename means rotation; reopen on the next create.
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				t.mu.Lock()
				t.closeFile()
				t.mu.Unlock()
			}

		case <-ticker.C:
			t.mu.Lock()
			if t.file == nil {
				_ = t.openFile(false)
			}
			t.readNewLines()
			t.mu.Unlock()

		case _, ok := <-t.watcher.Errors:
			if !ok {
				return nil
			}
			// Transient watcher errors are survivable; the ticker covers us.
		}
	}
}

// openFile opens the log file. seekToEnd skips existing content for
// tail-follow behavior; newly created files are read from the beginning.
func (t *Tailer) openFile(seekToEnd bool) error {
	if t.file != nil {
		return nil
	}

	file, err := os.Open(t.filePath)
	if err != nil {
		return err
	}

	var offset int64
	if seekToEnd {
		offset, err = file.Seek(0, io.SeekEnd)
		if err != nil {
			_ = file.Close()
			return err
		}
	}

	t.file = file
	t.offset = offset
	return nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
		t.offset = 0
	}
}

// readNewLines parses lines appended since the last read and sends them on.
func (t *Tailer) readNewLines() {
	if t.file == nil {
		return
	}

	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return
	}

	scanner := bufio.NewScanner(t.file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entry, err := parseZapLine(line)
		if err != nil {
			continue
		}
		_ = t.sink.Send(entry)
	}

	if pos, err := t.file.Seek(0, io.SeekCurrent); err == nil {
		t.offset = pos
	}
}

// Close stops the tailer and releases its resources.
func (t *Tailer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.closeFile()
	return t.watcher.Close()
}

// ReadRecent returns up to n parsed entries from the end of the log file.
// A missing file yields an empty slice: no log yet is not an error.
func ReadRecent(filePath string, n int) ([]LogEntry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entry, err := parseZapLine(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
