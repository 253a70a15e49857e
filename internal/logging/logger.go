// Package logging sets up structured logging and renders terminal tables and
// the end-of-session report.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DebugLogFile receives log output while the live monitor owns the terminal.
const DebugLogFile = "wizsync-debug.log"

// Options selects the log destination and level.
type Options struct {
	Level string // zerolog level name; empty means info
	// File, when set, receives JSON lines instead of the console writer.
	File string
	// Console is the console writer's destination; defaults to stderr.
	Console io.Writer
}

// New builds the root logger. The returned closer releases the log file, if
// one was opened, and is always non-nil.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	} else {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
