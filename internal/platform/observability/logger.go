package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger wraps slog.Logger. The Log* helpers attach the trace and span ids
// of the active span.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger writing to stdout
func NewLogger(level, format string) *Logger {
	return NewLoggerTo(os.Stdout, level, format)
}

// NewLoggerTo creates a Logger writing to w. format is "json" (default) or
// "text".
func NewLoggerTo(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))}
}

// Service tags every record with the deployed service name and version
func (l *Logger) Service(name, version string) *Logger {
	return &Logger{Logger: l.With(slog.Group("service", slog.String("name", name), slog.String("version", version)))}
}

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", name))}
}

// WithTrace returns a logger carrying the trace and span ids of ctx's span,
// or l itself when ctx has none
func (l *Logger) WithTrace(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l.Logger
	}
	return l.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// LogError logs msg at error level. A nil err is omitted.
func (l *Logger) LogError(ctx context.Context, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields[:len(fields):len(fields)], slog.String("error", err.Error()))
	}
	l.WithTrace(ctx).ErrorContext(ctx, msg, fields...)
}

func (l *Logger) LogInfo(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).InfoContext(ctx, msg, fields...)
}

func (l *Logger) LogDebug(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).DebugContext(ctx, msg, fields...)
}

func (l *Logger) LogWarn(ctx context.Context, msg string, fields ...any) {
	l.WithTrace(ctx).WarnContext(ctx, msg, fields...)
}
