// Package logging provides the charmbracelet/log logger used by the engine,
// the controller and the toolchain invoker. It is configured from the
// environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps a level name to a log level. Unknown names are info.
func ParseLevel(name string) log.Level {
	switch name {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	lg.SetLevel(ParseLevel(os.Getenv("SHELLSYNC_LOG_LEVEL")))

	prefix := os.Getenv("SHELLSYNC_LOG_PREFIX")
	if prefix == "" {
		prefix = "shellsync"
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// SHELLSYNC_LOG_LEVEL: debug, info, warn, error (default: info)
// SHELLSYNC_LOG_PREFIX: prefix for log messages (default: "shellsync")
// SHELLSYNC_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
//
// With interactive set, stderr belongs to the terminal UI, so output is
// discarded unless a log file is in use.
func NewLogger(interactive bool) *LoggerCloser {
	var output io.Writer = os.Stderr
	if interactive {
		output = io.Discard
	}

	if ToFile() {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("shellsync-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
	}

	return NewLoggerWithWriter(output)
}

// NewFileLogger appends to the named file.
func NewFileLogger(path string) (*LoggerCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLoggerWithWriter(f), nil
}

// ToFile reports whether logs go to a file.
func ToFile() bool {
	return os.Getenv("SHELLSYNC_LOG_TO_FILE") == "1"
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv("SHELLSYNC_LOG_LEVEL") == "debug"
}
