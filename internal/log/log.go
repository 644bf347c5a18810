// Package log provides the logging infrastructure shared by all quizforge components.
//
// Loggers are injected through constructors rather than accessed as globals.
// Components that need scoped context derive a child with logger.With():
//
//	builder := index.NewBuilder(store, meta, logger.With("component", "index"))
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so constructors can declare the dependency
// without a project-specific interface.
type Logger = *slog.Logger

// Config controls logger output.
type Config struct {
	// Level is the minimum level emitted. Zero value means slog.LevelInfo.
	Level slog.Level

	// JSON switches output from text to JSON records.
	JSON bool

	// AddSource annotates records with file:line of the call site.
	AddSource bool
}

// New returns a logger writing to stderr with the given configuration.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w. Tests use this to capture output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test-only; production code
// should always configure a real destination.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
