package kpagg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/engine"
)

// Logger wraps slog.Logger with kpagg-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithImage adds an image field to the logger.
func (l *Logger) WithImage(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("image", name),
	}
}

// WithPair adds a pair field to the logger.
func (l *Logger) WithPair(p core.Pair) *Logger {
	return &Logger{
		Logger: l.Logger.With("pair", p.Key()),
	}
}

// LogPair logs an aggregated pair.
func (l *Logger) LogPair(ctx context.Context, duration time.Duration, matches int, missing bool) {
	if missing {
		l.DebugContext(ctx, "pair skipped",
			"duration", duration,
		)
		return
	}
	l.DebugContext(ctx, "pair aggregated",
		"matches", matches,
		"duration", duration,
	)
}

// LogReassign logs a re-derived pair.
func (l *Logger) LogReassign(ctx context.Context, duration time.Duration, matches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reassignment failed",
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "pair reassigned",
		"matches", matches,
		"duration", duration,
	)
}

// LogMissingPair logs a pair without correspondences in either orientation.
func (l *Logger) LogMissingPair(ctx context.Context, p core.Pair) {
	l.WarnContext(ctx, "missing correspondences",
		"pair", p.Key(),
	)
}

// LogRun logs the outcome of an aggregation run.
func (l *Logger) LogRun(ctx context.Context, r *engine.Report, err error) {
	if r == nil {
		l.ErrorContext(ctx, "aggregation failed",
			"error", err,
		)
		return
	}
	attrs := []any{
		"pairs", r.Pairs,
		"processed", r.Processed,
		"resumed", r.Resumed,
		"missing_pairs", len(r.MissingPairs),
		"finalized", r.Finalized,
		"truncated", len(r.Truncated),
		"reassigned", r.Reassigned,
		"duration", r.Duration,
	}
	switch {
	case r.Canceled:
		l.WarnContext(ctx, "aggregation canceled", attrs...)
	case err != nil:
		l.ErrorContext(ctx, "aggregation failed", append(attrs, "error", err)...)
	default:
		l.InfoContext(ctx, "aggregation completed", attrs...)
	}
}
