// Package logging provides implementations of the ports.Logger interface:
// a logrus-backed ConsoleLogger for text or JSON output and a NopLogger
// for tests and quiet runs.
package logging

import (
	"context"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// NopLogger discards every message. It still tracks a level so callers that
// branch on Level() behave the same as with a real logger.
type NopLogger struct {
	level ports.Level
}

// NewNopLogger creates a new no-op logger.
func NewNopLogger() *NopLogger {
	return &NopLogger{level: ports.LevelInfo}
}

// Debug does nothing.
func (l *NopLogger) Debug(_ context.Context, _ string, _ ...ports.Field) {}

// Info does nothing.
func (l *NopLogger) Info(_ context.Context, _ string, _ ...ports.Field) {}

// Warn does nothing.
func (l *NopLogger) Warn(_ context.Context, _ string, _ ...ports.Field) {}

// Error does nothing.
func (l *NopLogger) Error(_ context.Context, _ string, _ ...ports.Field) {}

// With returns the logger itself.
func (l *NopLogger) With(_ ...ports.Field) ports.Logger {
	return l
}

// Level returns the log level.
func (l *NopLogger) Level() ports.Level {
	return l.level
}

// SetLevel sets the log level.
func (l *NopLogger) SetLevel(level ports.Level) {
	l.level = level
}

var _ ports.Logger = (*NopLogger)(nil)
