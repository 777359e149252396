package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// New returns the process logger: JSON on stdout, text when running locally.
// level overrides the environment default ("debug", "info", "warn", "error").
func New(appEnv, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(appEnv, level)}

	var h slog.Handler
	if appEnv == "local" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", "voice-platform")
}

func parseLevel(appEnv, level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Component tags a logger with the subsystem emitting it (gateway, dialer, router).
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
