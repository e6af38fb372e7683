// logging.go: pluggable logging system with automatic adapter detection
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"log/slog"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger defines the pluggable logging interface for the go-pluginhost library.
//
// This interface enables users to integrate any logging framework (logrus,
// zap, zerolog, custom loggers) without forcing a dependency on one of them
// inside their own code.
//
// Design principles:
//   - Performance friendly: structured logging with minimal allocations
//   - Contextual logging: With() method for adding persistent context
//   - Level-based: standard log levels (Debug, Info, Warn, Error)
//   - Structured args: key-value pairs for structured logging
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NewLogger creates a Logger from supported logger types.
//
// Supported types:
//   - Logger interface: used directly
//   - *logrus.Logger: wrapped in a LogrusAdapter
//   - *slog.Logger: wrapped in a SlogAdapter
//   - nil: returns NoOpLogger for silent operation
//   - unsupported types: panic with a descriptive message
func NewLogger(logger any) Logger {
	switch l := logger.(type) {
	case Logger:
		return l
	case *logrus.Logger:
		return NewLogrusAdapter(l)
	case *slog.Logger:
		return NewSlogAdapter(l)
	case nil:
		return NewNoOpLogger()
	default:
		panic("unsupported logger type: expected Logger interface, *logrus.Logger, *slog.Logger, or nil")
	}
}

// NoOpLogger provides a silent logger implementation for testing and minimal setups.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// LogrusAdapter wraps a *logrus.Logger behind the Logger interface.
//
// Key-value args are converted to logrus fields; a dangling key with no
// value is logged under the "EXTRA" field rather than dropped.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter creates a Logger backed by the given logrus logger.
func NewLogrusAdapter(l *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{entry: logrus.NewEntry(l)}
}

func argsToFields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	if len(args)%2 != 0 {
		fields["EXTRA"] = args[len(args)-1]
	}
	return fields
}

// Debug implements Logger interface
func (a *LogrusAdapter) Debug(msg string, args ...any) {
	a.entry.WithFields(argsToFields(args)).Debug(msg)
}

// Info implements Logger interface
func (a *LogrusAdapter) Info(msg string, args ...any) {
	a.entry.WithFields(argsToFields(args)).Info(msg)
}

// Warn implements Logger interface
func (a *LogrusAdapter) Warn(msg string, args ...any) {
	a.entry.WithFields(argsToFields(args)).Warn(msg)
}

// Error implements Logger interface
func (a *LogrusAdapter) Error(msg string, args ...any) {
	a.entry.WithFields(argsToFields(args)).Error(msg)
}

// With implements Logger interface
func (a *LogrusAdapter) With(args ...any) Logger {
	return &LogrusAdapter{entry: a.entry.WithFields(argsToFields(args))}
}

// SlogAdapter wraps a *slog.Logger behind the Logger interface. The
// key-value argument convention is shared, so args pass through.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a Logger backed by the given slog logger.
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: l}
}

// Debug implements Logger interface
func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }

// Info implements Logger interface
func (a *SlogAdapter) Info(msg string, args ...any) { a.logger.Info(msg, args...) }

// Warn implements Logger interface
func (a *SlogAdapter) Warn(msg string, args ...any) { a.logger.Warn(msg, args...) }

// Error implements Logger interface
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// With implements Logger interface
func (a *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// TestLogger for testing - captures log messages
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		Messages: make([]TestLogMessage, 0),
	}
}

func (t *TestLogger) capture(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) { t.capture("DEBUG", msg, args) }

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) { t.capture("INFO", msg, args) }

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) { t.capture("WARN", msg, args) }

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) { t.capture("ERROR", msg, args) }

// With implements Logger interface (returns new logger with copied state)
func (t *TestLogger) With(args ...any) Logger {
	t.mu.RLock()
	messages := make([]TestLogMessage, len(t.Messages))
	copy(messages, t.Messages)
	t.mu.RUnlock()

	return &TestLogger{Messages: messages}
}

// HasMessage checks if the logger captured a message with the given level and text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = t.Messages[:0]
}

// DefaultLogger creates a reasonable default logger for the library.
//
// Returns NoOpLogger; users should provide their own Logger implementation.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}
