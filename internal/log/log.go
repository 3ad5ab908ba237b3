// Package log implements structured, leveled logging.
package log

import (
	"fmt"
	"io"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Level is the minimum severity a logger emits.
type Level int

// Log levels
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a config string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("log: unsupported level %q", s)
	}
}

// Logger is a leveled keyval logger tagged with a module name.
type Logger struct {
	logger kitlog.Logger
	level  Level
	module string
}

// NewLogger creates a logfmt logger writing to w.
func NewLogger(module string, w io.Writer, lvl Level) *Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	logger = kitlog.WithPrefix(logger, "ts", kitlog.DefaultTimestampUTC)
	return &Logger{logger: logger, level: lvl, module: module}
}

// NewDefaultLogger creates an info-level logger on stdout.
func NewDefaultLogger(module string) *Logger {
	return NewLogger(module, os.Stdout, LevelInfo)
}

// NewNopLogger creates a logger that discards everything. For tests.
func NewNopLogger() *Logger {
	return &Logger{logger: kitlog.NewNopLogger(), level: LevelError + 1}
}

// With returns a logger for a submodule.
func (l *Logger) With(module string) *Logger {
	name := module
	if l.module != "" {
		name = l.module + "/" + module
	}
	return &Logger{logger: l.logger, level: l.level, module: name}
}

// Debug logs at the Debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	_ = level.Debug(l.logger).Log(l.prefix(msg, keyvals)...)
}

// Info logs at the Info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	_ = level.Info(l.logger).Log(l.prefix(msg, keyvals)...)
}

// Warn logs at the Warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	_ = level.Warn(l.logger).Log(l.prefix(msg, keyvals)...)
}

// Error logs at the Error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	if l.level > LevelError {
		return
	}
	_ = level.Error(l.logger).Log(l.prefix(msg, keyvals)...)
}

func (l *Logger) prefix(msg string, keyvals []interface{}) []interface{} {
	return append([]interface{}{"module", l.module, "msg", msg}, keyvals...)
}
