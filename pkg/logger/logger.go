// Package logger builds component-scoped zerolog loggers.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup sets the global level. Unknown levels fall back to info.
func Setup(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// New returns a logger tagged with component. APP_ENV=dev selects
// human-readable console output, anything else JSON.
func New(component string) zerolog.Logger {
	return NewWithWriter(component, os.Stdout, strings.ToLower(os.Getenv("APP_ENV")) == "dev")
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(component string, w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}
