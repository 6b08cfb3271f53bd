// Package activity builds the console activity log. Log lines go to stderr
// so stdout stays reserved for command output.
package activity

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the console log.
type Options struct {
	Level   string
	Quiet   bool
	NoColor bool
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", raw)
	}
}

// New returns a console logger writing to w. Quiet disables it entirely.
func New(w io.Writer, opts Options) (zerolog.Logger, error) {
	if opts.Quiet {
		return zerolog.Nop(), nil
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opts.NoColor}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
