package testutil

import (
	"io"
	"log/slog"
)

// QuietLogger returns a logger that discards everything below Warn. Keeps
// test output readable while still surfacing real problems.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
