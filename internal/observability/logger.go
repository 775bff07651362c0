// Package observability builds the module's structured logger.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Unrecognised or empty values fall back to info.
	Level string
	// Pretty enables human-friendly console output. Leave false in
	// production to emit pure JSON.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

func NewLogger(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
