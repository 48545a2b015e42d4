// Package logging builds the zerolog logger shared by grdload commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Setup returns the process logger on stderr. format "text" selects the
// console layout; anything else writes JSON lines.
func Setup(format, level string) zerolog.Logger {
	return New(os.Stderr, format, level)
}

// New builds the logger on w. An empty or unknown level means info.
func New(w io.Writer, format, level string) zerolog.Logger {
	out := w
	if format == "text" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names in any case. Empty is info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
