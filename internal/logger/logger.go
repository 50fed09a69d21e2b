package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Setup installs the process-wide slog logger. Development gets readable text
// output, everything else JSON.
func Setup(development bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if development {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// LogSystem logs lifecycle events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}

// LogRequest logs one served HTTP request
func LogRequest(method, route string, status int, duration time.Duration) {
	level := slog.LevelDebug
	if status >= 500 {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "Request served",
		slog.String("type", "http"),
		slog.String("method", method),
		slog.String("route", route),
		slog.Int("status", status),
		slog.Duration("took", duration),
	)
}

// LogJob logs one background job run
func LogJob(name string, duration time.Duration, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "job"),
		slog.String("name", name),
		slog.Duration("took", duration),
	}
	if err != nil {
		slog.Error("Job failed", append(append(baseAttrs, slog.Any("error", err)), attrs...)...)
		return
	}
	slog.Debug("Job finished", append(baseAttrs, attrs...)...)
}
