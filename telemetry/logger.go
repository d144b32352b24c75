package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for the scan pipeline

func (l *Logger) LogScanStart(ctx context.Context, path string, subfolders int) {
	l.WithContext(ctx).Info().
		Str("path", path).
		Int("subfolders", subfolders).
		Str("operation", "scan").
		Msg("starting permission scan")
}

func (l *Logger) LogScanComplete(ctx context.Context, path string, records int, durationMs float64) {
	l.WithContext(ctx).Info().
		Str("path", path).
		Int("records", records).
		Float64("duration_ms", durationMs).
		Str("operation", "scan").
		Msg("permission scan completed")
}

func (l *Logger) LogScanError(ctx context.Context, path string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("path", path).
		Str("operation", "scan").
		Msg("permission scan failed")
}

func (l *Logger) LogReportWritten(ctx context.Context, filename string, records int) {
	l.WithContext(ctx).Info().
		Str("filename", filename).
		Int("records", records).
		Str("operation", "report").
		Msg("report written")
}

func (l *Logger) LogReportError(ctx context.Context, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", "report").
		Msg("report write failed")
}

func (l *Logger) LogStorageError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("storage operation failed")
}
