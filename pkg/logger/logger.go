package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"boingbox-backend/pkg/env"
)

var (
	// base is handed out by FromContext and With. It discards everything
	// until Init is called, so packages can log freely from tests.
	base = zap.NewNop()
	// pkgLog backs the package level helpers and skips their frame
	pkgLog = base
)

// Config holds logger configuration
type Config struct {
	Level    string // debug, info, warn, error
	Format   string // json, console
	Output   string // stdout, file
	FilePath string
	Service  string
}

// Build creates a zap logger for cfg. An unknown level falls back to info.
func Build(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if cfg.Output == "file" && cfg.FilePath != "" {
		zc.OutputPaths = []string{cfg.FilePath}
		zc.ErrorOutputPaths = []string{cfg.FilePath}
	}

	if cfg.Service != "" {
		zc.InitialFields = map[string]interface{}{"service": cfg.Service}
	}

	return zc.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Init replaces the global logger
func Init(cfg Config) error {
	l, err := Build(cfg)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set installs l as the global logger
func Set(l *zap.Logger) {
	base = l
	pkgLog = l.WithOptions(zap.AddCallerSkip(1))
}

// InitDefault initializes the logger for service from LOG_* variables,
// falling back to a production logger on stdout.
func InitDefault(service string) {
	cfg := Config{
		Level:    env.GetString("LOG_LEVEL", "info"),
		Format:   env.GetString("LOG_FORMAT", "json"),
		Output:   env.GetString("LOG_OUTPUT", "stdout"),
		FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		Service:  service,
	}
	if err := Init(cfg); err != nil {
		l, _ := zap.NewProduction()
		Set(l.With(zap.String("service", service)))
		Warn("Falling back to stdout logging", zap.Error(err))
	}
}

type contextKey struct{}

// WithRequestID stores the request id in ctx for FromContext
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request id stored in ctx, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromContext returns the global logger annotated with the request id carried by ctx, if any.
func FromContext(ctx context.Context) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

func Debug(msg string, fields ...zap.Field) { pkgLog.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { pkgLog.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { pkgLog.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { pkgLog.Error(msg, fields...) }

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) { pkgLog.Fatal(msg, fields...) }

// With creates a child logger with additional fields
func With(fields ...zap.Field) *zap.Logger {
	return base.With(fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	return base.Sync()
}
