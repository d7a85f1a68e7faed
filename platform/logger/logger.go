// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// OwnerIDKey is the context key for the authenticated listing owner
	OwnerIDKey contextKey = "owner_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger writing to w. Tests use it to capture output.
func NewWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext returns a logger carrying request and owner ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	next := l
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		next = next.With(slog.String("request_id", requestID))
	}
	if ownerID, ok := ctx.Value(OwnerIDKey).(string); ok && ownerID != "" {
		next = next.With(slog.String("owner_id", ownerID))
	}
	return next
}

// With returns a child logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events for public endpoints.
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}

// ChannelDispatch logs the outcome of one notification channel attempt.
func (l *Logger) ChannelDispatch(trigger, channel, ownerID string, success bool, err error) {
	if success {
		l.Info("channel_dispatch",
			slog.String("trigger", trigger),
			slog.String("channel", channel),
			slog.String("owner_id", ownerID),
			slog.Bool("success", true),
		)
		return
	}

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	l.Warn("channel_dispatch",
		slog.String("trigger", trigger),
		slog.String("channel", channel),
		slog.String("owner_id", ownerID),
		slog.Bool("success", false),
		slog.String("reason", reason),
	)
}

// SideEffectFailed logs a best-effort task that failed without affecting the caller.
func (l *Logger) SideEffectFailed(task string, err error) {
	l.Warn("side_effect_failed",
		slog.String("task", task),
		slog.String("error", err.Error()),
	)
}
