// pattern: Imperative Shell

// Package monitor watches registered worktree roots for filesystem activity
// and publishes debounced events, so clients can see which worktrees are
// being worked in without polling.
package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"grove/internal/events"
	"grove/internal/logging"
)

// target identifies the worktree a watched directory belongs to.
type target struct {
	project string
	name    string
}

// Monitor watches worktree roots (top level, non-recursive) and publishes at
// most one activity event per worktree per debounce window. A polling
// safeguard on the directory mtime catches changes on filesystems with
// unreliable change events (network mounts, WSL shares).
type Monitor struct {
	broker *events.Broker
	log    *logging.ScopedLogger

	window    time.Duration
	pollEvery time.Duration

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	watched   map[string]target    // host-form dir -> worktree identity
	lastFired map[string]time.Time // host-form dir -> last publish
	lastMtime map[string]time.Time // host-form dir -> last seen dir mtime
	closed    bool
}

// New creates a monitor publishing through broker.
func New(broker *events.Broker, log *logging.ScopedLogger) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Monitor{
		broker:    broker,
		log:       log,
		window:    2 * time.Second,
		pollEvery: 30 * time.Second,
		watcher:   watcher,
		watched:   make(map[string]target),
		lastFired: make(map[string]time.Time),
		lastMtime: make(map[string]time.Time),
	}, nil
}

// Watch adds a worktree root. dir must be in host form and exist.
func (m *Monitor) Watch(project, name, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := filepath.Clean(dir)
	if _, ok := m.watched[clean]; ok {
		return nil
	}
	if err := m.watcher.Add(clean); err != nil {
		return fmt.Errorf("failed to watch %s: %w", clean, err)
	}
	m.watched[clean] = target{project: project, name: name}
	if info, err := os.Stat(clean); err == nil {
		m.lastMtime[clean] = info.ModTime()
	}
	m.log.Debug("watching worktree", "project", project, "worktree", name, "dir", clean)
	return nil
}

// Unwatch stops watching the named worktree. Unknown names are ignored.
func (m *Monitor) Unwatch(project, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dir, tgt := range m.watched {
		if tgt.project == project && tgt.name == name {
			_ = m.watcher.Remove(dir)
			delete(m.watched, dir)
			delete(m.lastFired, dir)
			delete(m.lastMtime, dir)
			return
		}
	}
}

// Start runs the watch loop until ctx ends.
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = m.Close()
			return ctx.Err()

		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			// The .git entry churns on grove's own operations; activity
			// means working-tree files.
			if filepath.Base(event.Name) == ".git" {
				continue
			}
			m.noteActivity(event.Name)

		case <-ticker.C:
			m.pollOnce()

		case _, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			// Transient watcher errors are survivable; the ticker covers us.
		}
	}
}

// noteActivity maps an event path to its worktree and publishes if the
// debounce window has passed.
func (m *Monitor) noteActivity(name string) {
	m.mu.Lock()
	dir := filepath.Clean(name)
	tgt, ok := m.watched[dir]
	if !ok {
		dir = filepath.Dir(dir)
		tgt, ok = m.watched[dir]
	}
	if !ok || !m.shouldFire(dir) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.publish(tgt)
}

// shouldFire applies the per-worktree debounce window. Caller holds mu.
func (m *Monitor) shouldFire(dir string) bool {
	now := time.Now()
	if now.Sub(m.lastFired[dir]) < m.window {
		return false
	}
	m.lastFired[dir] = now
	return true
}

// pollOnce compares each watched directory's mtime against the last seen
// value. The mtime only moves on direct entry changes, which is exactly the
// top-level signal the watcher would have delivered.
func (m *Monitor) pollOnce() {
	m.mu.Lock()
	var fire []target
	for dir, tgt := range m.watched {
		info, err := os.Stat(dir)
		if err != nil {
			continue
		}
		mtime := info.ModTime()
		if mtime.After(m.lastMtime[dir]) {
			m.lastMtime[dir] = mtime
			if m.shouldFire(dir) {
				fire = append(fire, tgt)
			}
		}
	}
	m.mu.Unlock()

	for _, tgt := range fire {
		m.publish(tgt)
	}
}

func (m *Monitor) publish(tgt target) {
	m.broker.Publish(events.Event{
		Type:    events.FSActivity,
		Project: tgt.project,
		Name:    tgt.name,
	})
}

// Close stops the monitor and releases its resources.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.watcher.Close()
}
