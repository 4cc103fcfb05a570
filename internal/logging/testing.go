// pattern: Imperative Shell

package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output. Use in tests or before
// logging is configured.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager is a LoggerProvider for tests. It writes to a channel only,
// no file, so assertions can consume entries directly.
type TestLogManager struct {
	channelSink *ChannelSink
	base        *zap.Logger
	loggers     map[string]*ScopedLogger
	mu          sync.RWMutex
}

// NewTestLogManager creates a channel-only log manager at debug level.
func NewTestLogManager(bufferSize int) *TestLogManager {
	channelSink := NewChannelSink(bufferSize)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.EpochTimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(channelSink),
		zapcore.DebugLevel,
	)

	return &TestLogManager{
		channelSink: channelSink,
		base:        zap.New(core),
		loggers:     make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger, mirroring the production Manager API.
func (m *TestLogManager) For(scope string) *ScopedLogger {
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

	logger := &ScopedLogger{
		sugar: m.base.Named(scope).Sugar(),
		scope: scope,
	}
	m.loggers[scope] = logger
	return logger
}

// Channel returns the channel receiving log entries.
func (m *TestLogManager) Channel() <-chan LogEntry {
	return m.channelSink.Entries()
}

// Close closes the test log manager.
func (m *TestLogManager) Close() error {
	return m.channelSink.Close()
}
