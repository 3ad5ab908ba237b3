package log

import (
	"fmt"
	"io"
	"strings"

	kitlog "github.com/go-kit/log"
)

// Format is a logging output format.
type Format uint

const (
	// FmtLogfmt is the "logfmt" logging format.
	FmtLogfmt Format = iota
	// FmtJSON is the JSON logging format.
	FmtJSON
)

// String returns the string representation of a Format.
func (f *Format) String() string {
	switch *f {
	case FmtLogfmt:
		return "logfmt"
	case FmtJSON:
		return "JSON"
	default:
		panic("log: unsupported format")
	}
}

// Set sets the Format to the value specified by the provided string.
// The empty string selects logfmt.
func (f *Format) Set(s string) error {
	switch strings.ToUpper(s) {
	case "LOGFMT", "":
		*f = FmtLogfmt
	case "JSON":
		*f = FmtJSON
	default:
		return fmt.Errorf("log: invalid log format: '%s'", s)
	}
	return nil
}

// Set sets the Level to the value specified by the provided string.
func (l *Level) Set(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// NewFormattedLogger creates a logger writing to w in the given format.
func NewFormattedLogger(module string, w io.Writer, format Format, lvl Level) *Logger {
	var logger kitlog.Logger
	switch format {
	case FmtJSON:
		logger = kitlog.NewJSONLogger(kitlog.NewSyncWriter(w))
	default:
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	}
	logger = kitlog.WithPrefix(logger, "ts", kitlog.DefaultTimestampUTC)
	return &Logger{logger: logger, level: lvl, module: module}
}
