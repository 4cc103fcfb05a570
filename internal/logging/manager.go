// pattern: Imperative Shell

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds configuration for the log manager.
type Config struct {
	FilePath       string // Path to the JSONL log file
	MaxSizeMB      int    // Max size in MB before rotation
	MaxBackups     int    // Max number of rotated files to keep
	MaxAgeDays     int    // Max days to keep rotated files
	Level          string // Minimum level (debug, info, warn, error)
	ChannelBufSize int    // Buffer size for the event-stream channel (default 1000)
}

// LoggerProvider is the interface components depend on to obtain scoped
// loggers. Manager and TestLogManager both implement it.
type LoggerProvider interface {
	For(scope string) *ScopedLogger
}

// ScopedLogger is the handle handed to components. Logging calls take a
// message plus alternating key/value pairs. A zero-value or NopLogger
// discards everything, so callers never nil-check.
type ScopedLogger struct {
	sugar *zap.SugaredLogger
	scope string
}

// Info logs at INFO level.
func (l *ScopedLogger) Info(msg string, args ...any) {
	if l.sugar != nil {
		l.sugar.Infow(msg, args...)
	}
}

// Debug logs at DEBUG level.
func (l *ScopedLogger) Debug(msg string, args ...any) {
	if l.sugar != nil {
		l.sugar.Debugw(msg, args...)
	}
}

// Warn logs at WARN level.
func (l *ScopedLogger) Warn(msg string, args ...any) {
	if l.sugar != nil {
		l.sugar.Warnw(msg, args...)
	}
}

// Error logs at ERROR level.
func (l *ScopedLogger) Error(msg string, args ...any) {
	if l.sugar != nil {
		l.sugar.Errorw(msg, args...)
	}
}

// With returns a logger that adds the given key/value pairs to every entry.
func (l *ScopedLogger) With(args ...any) *ScopedLogger {
	if l.sugar == nil {
		return l
	}
	return &ScopedLogger{
		sugar: l.sugar.With(args...),
		scope: l.scope,
	}
}

// Scope returns the logger's hierarchical scope.
func (l *ScopedLogger) Scope() string {
	return l.scope
}

// Manager writes every entry to a rotated file and mirrors it onto an
// in-process channel so the running daemon can stream its own log.
type Manager struct {
	base        *zap.Logger
	channelSink *ChannelSink
	fileWriter  *lumberjack.Logger
	loggers     map[string]*ScopedLogger
	mu          sync.RWMutex
	level       zapcore.Level
}

// NewManager creates a log manager with the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath is required")
	}

	if cfg.ChannelBufSize == 0 {
		cfg.ChannelBufSize = 1000
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 7
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	channelSink := NewChannelSink(cfg.ChannelBufSize)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.EpochTimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(fileWriter),
		level,
	)
	channelCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(channelSink),
		level,
	)

	return &Manager{
		base:        zap.New(zapcore.NewTee(fileCore, channelCore)),
		channelSink: channelSink,
		fileWriter:  fileWriter,
		loggers:     make(map[string]*ScopedLogger),
		level:       level,
	}, nil
}

// For returns a logger for the given scope. Scopes are hierarchical, e.g.
// "worktree" or "runner.feature-a". Loggers are cached per scope.
func (m *Manager) For(scope string) *ScopedLogger {
	m.mu.RLock()
	if logger, ok := m.loggers[scope]; ok {
		m.mu.RUnlock()
		return logger
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}

	named := m.base.Named(scope)
	logger := &ScopedLogger{
		sugar: named.Sugar(),
		scope: scope,
	}
	m.loggers[scope] = logger
	return logger
}

// Entries returns the channel carrying the daemon's own log entries.
func (m *Manager) Entries() <-chan LogEntry {
	return m.channelSink.Entries()
}

// Sink exposes the channel sink so external sources (the log tailer) can
// inject entries into the same stream.
func (m *Manager) Sink() *ChannelSink {
	return m.channelSink
}

// Sync flushes buffered output.
func (m *Manager) Sync() error {
	return m.base.Sync()
}

// Cleanup drops cached loggers whose scope starts with scopePrefix. Called
// when a worktree or run session goes away.
func (m *Manager) Cleanup(scopePrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for scope := range m.loggers {
		if strings.HasPrefix(scope, scopePrefix) {
			delete(m.loggers, scope)
		}
	}
}

// Close syncs and releases all resources.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.channelSink.Close()
	return m.fileWriter.Close()
}
