package observe

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: the context is used to correlate log lines with the active span.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// zapLogger is a JSON structured logger backed by zap.
type zapLogger struct {
	z *zap.Logger
}

// NewLogger creates a new structured logger with the given level writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
// Each entry is a single JSON line with timestamp, level and msg keys.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		ParseLogLevel(level).zapLevel(),
	)
	return &zapLogger{z: zap.New(core)}
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(toZap(context.Background(), fields)...)}
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.z.Info(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.z.Warn(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.z.Error(msg, toZap(ctx, fields)...)
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.z.Debug(msg, toZap(ctx, fields)...)
}

// toZap converts fields, redacting sensitive keys and adding trace
// correlation when ctx carries a sampled span.
func toZap(ctx context.Context, fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	for _, f := range fields {
		if isRedactedField(f.Key) {
			out = append(out, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func isRedactedField(key string) bool {
	for _, k := range RedactedFields {
		if k == key {
			return true
		}
	}
	return false
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (l nopLogger) With(...Field) Logger                  { return l }

var (
	_ Logger = (*zapLogger)(nil)
	_ Logger = nopLogger{}
)
