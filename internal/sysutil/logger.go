package sysutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOptions configures SetupLogger.
type LogOptions struct {
	Level  string
	Pretty bool   // human-readable console output instead of JSON
	File   string // when set, every line is also appended to this file as JSON
}

// SetupLogger installs the global logger: stderr (JSON or console) teed to an
// optional append-only file. It also makes zerolog.Ctx fall back to the
// global logger for contexts without one. The returned func closes the file.
func SetupLogger(opts LogOptions) (func() error, error) {
	SetLogLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stderr
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	closeFn := func() error { return nil }
	out := console
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("log dir: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, f)
		closeFn = f.Close
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return closeFn, nil
}
