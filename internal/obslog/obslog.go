// Package obslog builds the single zerolog.Logger every long-running
// component (scheduler, worker, watcher, reconcile) threads through its
// node.Context and task loops.
package obslog

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures the process-wide base logger.
type Options struct {
	Service string
	Level   string // zerolog level name: debug, info, warn, error
	Pretty  bool   // console-pretty output instead of JSON, for local dev
	Writer  io.Writer
}

// New builds a base logger with a service name and timestamp attached to
// every entry, matching the teacher pack's zerolog setup convention (JSON
// by default, a ConsoleWriter under a pretty flag).
func New(opts Options) zerolog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	if opts.Pretty {
		writer = zerolog.ConsoleWriter{Out: writer}
	}

	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	service := opts.Service
	if service == "" {
		service = "sentinel"
	}

	return zerolog.New(writer).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// NewFromEnv builds a logger from LOG_LEVEL and LOG_PRETTY environment
// variables (spec §6 ambient app config inputs), defaulting to info/JSON.
func NewFromEnv(service string) zerolog.Logger {
	return New(Options{
		Service: service,
		Level:   os.Getenv("LOG_LEVEL"),
		Pretty:  strings.TrimSpace(os.Getenv("LOG_PRETTY")) == "1",
	})
}

func parseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
