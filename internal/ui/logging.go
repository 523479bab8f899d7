package ui

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Interactive commands get text on
// stderr so progress bars on stdout stay intact; serve uses JSON.
func NewLogger(debug, json bool) *slog.Logger {
	return newLogger(os.Stderr, debug, json)
}

func newLogger(w io.Writer, debug, json bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: debug && json}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With("app", "mangamirror")
}
