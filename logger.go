package semindex

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with semindex-specific context.
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

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithSourceDoc adds a source document field to the logger.
func (l *Logger) WithSourceDoc(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source_doc", id),
	}
}

// WithK adds a k (result count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// LogAdd logs a batched add operation.
func (l *Logger) LogAdd(ctx context.Context, documents, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"documents", documents,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"documents", documents,
			"chunks", chunks,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogSave logs a snapshot save operation.
func (l *Logger) LogSave(ctx context.Context, basePath string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"base_path", basePath,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"base_path", basePath,
			"entries", entries,
		)
	}
}

// LogLoad logs a snapshot load operation.
func (l *Logger) LogLoad(ctx context.Context, basePath string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"base_path", basePath,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"base_path", basePath,
			"entries", entries,
		)
	}
}
