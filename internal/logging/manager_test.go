// pattern: Imperative Shell

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		FilePath:   filepath.Join(t.TempDir(), "grove.log"),
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 7,
		Level:      "debug",
	}
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager(newTestConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	if mgr.Entries() == nil {
		t.Error("Entries() returned nil")
	}
}

func TestNewManagerRequiresFilePath(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("NewManager() with empty FilePath should fail")
	}
}

func TestManager_For(t *testing.T) {
	mgr, err := NewManager(newTestConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	logger := mgr.For("worktree.feature-a")
	if logger == nil {
		t.Fatal("For() returned nil")
	}

	// Same scope returns the cached logger.
	if logger2 := mgr.For("worktree.feature-a"); logger != logger2 {
		t.Error("For() should return cached logger for same scope")
	}

	if logger3 := mgr.For("worktree.feature-b"); logger == logger3 {
		t.Error("For() should return different logger for different scope")
	}
}

func TestManager_LoggingToChannel(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChannelBufSize = 100

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	logger := mgr.For("worktree")
	logger.Info("created worktree", "name", "feature-a")

	_ = mgr.Sync()

	select {
	case entry := <-mgr.Entries():
		if entry.Message != "created worktree" {
			t.Errorf("Message = %q, want %q", entry.Message, "created worktree")
		}
		if entry.Scope != "worktree" {
			t.Errorf("Scope = %q, want %q", entry.Scope, "worktree")
		}
		if entry.Fields["name"] != "feature-a" {
			t.Errorf("Fields = %v, want name=feature-a", entry.Fields)
		}
	default:
		t.Fatal("entry not received on channel after Sync()")
	}
}

func TestManager_LoggingToFile(t *testing.T) {
	cfg := newTestConfig(t)

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	logger := mgr.For("web")
	logger.Info("listening", "addr", "127.0.0.1:7667")

	_ = mgr.Close()

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "listening") {
		t.Errorf("log file should contain message, got: %s", content)
	}
	if !strings.Contains(content, "web") {
		t.Errorf("log file should contain scope, got: %s", content)
	}
}

func TestManager_With(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChannelBufSize = 10

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	logger := mgr.For("runner").With("run_id", "r-1")
	logger.Info("started")
	_ = mgr.Sync()

	select {
	case entry := <-mgr.Entries():
		if entry.Fields["run_id"] != "r-1" {
			t.Errorf("Fields = %v, want run_id=r-1", entry.Fields)
		}
	default:
		t.Fatal("entry not received on channel")
	}
}

func TestManager_Cleanup(t *testing.T) {
	mgr, err := NewManager(newTestConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	mgr.For("runner.r-1")
	mgr.For("runner.r-2")
	mgr.For("worktree.feature-a")

	mgr.Cleanup("runner.r-1")

	// A fresh logger for the same scope must still work after cleanup.
	logger := mgr.For("runner.r-1")
	logger.Info("after cleanup")
}

func TestManager_Sink(t *testing.T) {
	mgr, err := NewManager(newTestConfig(t))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	sink := mgr.Sink()
	if sink == nil {
		t.Fatal("Sink() returned nil")
	}

	entry := LogEntry{
		Level:   "INFO",
		Scope:   "tail",
		Message: "injected entry",
		Fields:  make(map[string]any),
	}
	if err := sink.Send(entry); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-mgr.Entries():
		if got.Message != "injected entry" {
			t.Errorf("Message = %q, want %q", got.Message, "injected entry")
		}
	default:
		t.Fatal("entry not received on channel")
	}
}
