// Package logging builds the agent's zerolog logger and bridges log/slog
// onto it, so the session library and the agent write one stream.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Writer formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w in the given format ("console" or
// "json") at the given level ("debug", "info", ...).
func New(w io.Writer, format, level string) (zerolog.Logger, error) {
	var out io.Writer
	switch format {
	case FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339Nano,
		}
	case FormatJSON:
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatConsole, FormatJSON)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().
		Str("service", "mqttagent").
		Logger(), nil
}
