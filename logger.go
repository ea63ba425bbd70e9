package bidsgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bidsgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output. The core is
// silent by default; pass WithLogger to opt into diagnostics.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRoot adds a dataset root field to the logger.
func (l *Logger) WithRoot(root string) *Logger {
	return &Logger{
		Logger: l.Logger.With("root", root),
	}
}

// WithEntity adds an entity name field to the logger.
func (l *Logger) WithEntity(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("entity", name),
	}
}

// LogWalk logs the outcome of a dataset walk.
func (l *Logger) LogWalk(ctx context.Context, datasets, files int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "walk failed",
			"datasets", datasets,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "walk completed",
			"datasets", datasets,
			"files", files,
		)
	}
}

// LogMetadataIndex logs the outcome of metadata indexing.
func (l *Logger) LogMetadataIndex(ctx context.Context, sidecars int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "metadata indexing failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "metadata indexing completed",
			"sidecars", sidecars,
		)
	}
}
