package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// ConsoleLogger logs structured messages to the console through logrus.
// Loggers derived with With share the underlying logrus logger, so SetLevel
// on any of them changes the level for all.
type ConsoleLogger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

type consoleOptions struct {
	out         io.Writer
	level       ports.Level
	jsonFormat  bool
	includeTime bool
}

// ConsoleLoggerOption configures the console logger.
type ConsoleLoggerOption func(*consoleOptions)

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) ConsoleLoggerOption {
	return func(o *consoleOptions) {
		o.out = w
	}
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) ConsoleLoggerOption {
	return func(o *consoleOptions) {
		o.level = level
	}
}

// WithJSONFormat enables JSON output format.
func WithJSONFormat(enabled bool) ConsoleLoggerOption {
	return func(o *consoleOptions) {
		o.jsonFormat = enabled
	}
}

// WithTimestamp includes timestamp in log entries.
func WithTimestamp(enabled bool) ConsoleLoggerOption {
	return func(o *consoleOptions) {
		o.includeTime = enabled
	}
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger(opts ...ConsoleLoggerOption) *ConsoleLogger {
	o := consoleOptions{
		out:         os.Stderr,
		level:       ports.LevelInfo,
		includeTime: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := logrus.New()
	base.SetOutput(o.out)
	base.SetLevel(toLogrus(o.level))
	if o.jsonFormat {
		base.SetFormatter(&logrus.JSONFormatter{
			DisableTimestamp: !o.includeTime,
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			DisableColors:    true,
			DisableTimestamp: !o.includeTime,
			FullTimestamp:    true,
		})
	}

	return &ConsoleLogger{base: base, entry: logrus.NewEntry(base)}
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, logrus.DebugLevel, msg, fields)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, logrus.InfoLevel, msg, fields)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, logrus.WarnLevel, msg, fields)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, logrus.ErrorLevel, msg, fields)
}

// With returns a new logger with additional fields.
func (l *ConsoleLogger) With(fields ...ports.Field) ports.Logger {
	return &ConsoleLogger{base: l.base, entry: l.entry.WithFields(toFields(fields))}
}

// Level returns the minimum log level.
func (l *ConsoleLogger) Level() ports.Level {
	return fromLogrus(l.base.GetLevel())
}

// SetLevel sets the minimum log level.
func (l *ConsoleLogger) SetLevel(level ports.Level) {
	l.base.SetLevel(toLogrus(level))
}

func (l *ConsoleLogger) log(ctx context.Context, level logrus.Level, msg string, fields []ports.Field) {
	if !l.base.IsLevelEnabled(level) {
		return
	}
	entry := l.entry
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	if len(fields) > 0 {
		entry = entry.WithFields(toFields(fields))
	}
	entry.Log(level, msg)
}

func toFields(fields []ports.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

func toLogrus(level ports.Level) logrus.Level {
	switch level {
	case ports.LevelDebug:
		return logrus.DebugLevel
	case ports.LevelWarn:
		return logrus.WarnLevel
	case ports.LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrus(level logrus.Level) ports.Level {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return ports.LevelDebug
	case logrus.WarnLevel:
		return ports.LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return ports.LevelError
	default:
		return ports.LevelInfo
	}
}

// Ensure ConsoleLogger implements Logger.
var _ ports.Logger = (*ConsoleLogger)(nil)
