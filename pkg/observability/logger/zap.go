package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nimburion/searchrepo/pkg/config"
)

// ZapLogger writes structured entries through zap.
type ZapLogger struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFormat selects JSON lines or zap's console encoding.
type LogFormat string

const (
	JSONFormat LogFormat = "json"
	TextFormat LogFormat = "text"
)

// Config selects level, format and destination of a ZapLogger.
type Config struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to stderr so command output on stdout stays parseable.
	Output io.Writer
	// Fields are attached to every entry.
	Fields []any
}

// DefaultConfig logs JSON at info level.
func DefaultConfig() Config {
	return Config{
		Level:  InfoLevel,
		Format: JSONFormat,
	}
}

// ConfigFrom maps the observability section onto a logger Config.
func ConfigFrom(obs config.ObservabilityConfig) (Config, error) {
	cfg := DefaultConfig()
	if obs.LogLevel != "" {
		level, err := ParseLogLevel(obs.LogLevel)
		if err != nil {
			return Config{}, err
		}
		cfg.Level = level
	}
	if obs.LogFormat != "" {
		format, err := ParseLogFormat(obs.LogFormat)
		if err != nil {
			return Config{}, err
		}
		cfg.Format = format
	}
	if obs.ServiceName != "" {
		cfg.Fields = append(cfg.Fields, "service", obs.ServiceName)
	}
	return cfg, nil
}

var zapLevels = map[LogLevel]zapcore.Level{
	DebugLevel: zapcore.DebugLevel,
	InfoLevel:  zapcore.InfoLevel,
	WarnLevel:  zapcore.WarnLevel,
	ErrorLevel: zapcore.ErrorLevel,
}

// levelNames and formatNames hold the accepted spellings, aliases included.
var (
	levelNames = map[string]LogLevel{
		"debug": DebugLevel, "info": InfoLevel, "warn": WarnLevel, "warning": WarnLevel, "error": ErrorLevel,
	}
	formatNames = map[string]LogFormat{
		"json": JSONFormat, "text": TextFormat, "console": TextFormat,
	}
)

func encoderFor(format LogFormat) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.FunctionKey = zapcore.OmitKey
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.SecondsDurationEncoder

	switch format {
	case JSONFormat, "":
		return zapcore.NewJSONEncoder(ec), nil
	case TextFormat:
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("invalid log format: %s", format)
}

// NewZapLogger builds a logger writing to cfg.Output, or stderr. Unknown levels log at info.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	encoder, err := encoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}
	level, ok := zapLevels[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	base := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level), zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{logger: base, sugar: base.Sugar().With(cfg.Fields...)}, nil
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{logger: l.logger, sugar: l.sugar.With(args...)}
}

// WithContext tags entries with trace_id and span_id of the active span and with the
// correlation id, when ctx carries them.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	var fields []any
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		fields = append(fields, "correlation_id", id)
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// ParseLogLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLogLevel(level string) (LogLevel, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("invalid log level: %s", level)
}

// ParseLogFormat accepts json and text (or console) in any case.
func ParseLogFormat(format string) (LogFormat, error) {
	if f, ok := formatNames[strings.ToLower(strings.TrimSpace(format))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("invalid log format: %s", format)
}
