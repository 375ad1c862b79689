package cmd

import (
	"io"
	"log/slog"
)

// newLogger builds the tap logger. stdout belongs to Singer messages, so
// callers pass stderr.
func newLogger(verbose bool, format string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler).With("tap", "tap-mssql")
}
