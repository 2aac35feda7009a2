// Package log sets up the process-wide slog handler and recovers panics so
// the terminal is restored before the process dies.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	logCloser   io.Closer
)

// Setup installs the default slog handler. With logFile empty, records go to
// stderr; otherwise they are appended to logFile. Only the first call has
// any effect.
func Setup(logFile string, debug bool) error {
	var err error
	initOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		var w io.Writer = os.Stderr
		if logFile != "" {
			f, ferr := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if ferr != nil {
				err = fmt.Errorf("open log file: %w", ferr)
				return
			}
			w = f
			logCloser = f
		}

		handler := slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: debug,
		})
		slog.SetDefault(slog.New(handler))
		initialized.Store(true)
	})
	return err
}

func Initialized() bool {
	return initialized.Load()
}

// Close releases the log file opened by Setup, if any.
func Close() error {
	if logCloser == nil {
		return nil
	}
	return logCloser.Close()
}

// RecoverPanic logs a panic with its stack and runs cleanup. It must be
// deferred directly.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		} else {
			fmt.Fprintf(os.Stderr, "panic in %s: %v\n%s", name, r, debug.Stack())
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
