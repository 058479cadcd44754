package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	instance *slog.Logger
	once     sync.Once
)

// Instance returns the process logger. LOG_LEVEL picks the level and LOG_FILE
// adds a rotating file next to stdout.
func Instance() *slog.Logger {
	once.Do(func() {
		var out io.Writer = os.Stdout
		if path := os.Getenv("LOG_FILE"); path != "" {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    50, // megabytes
				MaxBackups: 5,
				MaxAge:     14, // days
				Compress:   true,
			})
		}

		instance = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: parseLevel(os.Getenv("LOG_LEVEL")),
		}))
	})

	return instance
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	Instance().LogAttrs(ctx, slog.LevelDebug, msg, enrich(ctx, attrs...)...)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	enriched := enrich(ctx, attrs...)
	Instance().LogAttrs(ctx, slog.LevelInfo, msg, enriched...)
	sendLog("info", msg, enriched)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	enriched := enrich(ctx, attrs...)
	Instance().LogAttrs(ctx, slog.LevelWarn, msg, enriched...)
	sendLog("warn", msg, enriched)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	enriched := enrich(ctx, attrs...)
	Instance().LogAttrs(ctx, slog.LevelError, msg, enriched...)
	sendLog("error", msg, enriched)
}

// Err is shorthand for the error attribute used across the codebase.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func enrich(ctx context.Context, attrs ...slog.Attr) []slog.Attr {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
			slog.String("hostname", Hostname()),
		)
	}

	return attrs
}

// Op tags a record with the operation that emitted it.
func Op(name string) slog.Attr {
	return slog.String("op", name)
}
