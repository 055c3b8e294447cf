package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/adapters/config" // To access KeyLogLevel
	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

// Define context keys for fields carried through test execution.
type contextKey string

const (
	runIDKey contextKey = "runID"
	// LogKeyTestName is the context key for test_name used in structured logging.
	LogKeyTestName contextKey = "testName"
	// LogKeyAccountID is the context key for account_id used in structured logging.
	// This key is exported so the refresher can set the account ID in the context.
	LogKeyAccountID contextKey = "accountID"
)

// ZapAdapter implements the domain.Logger interface using Zap.
type ZapAdapter struct {
	baseLogger *zap.Logger
}

// NewZapAdapter creates and initializes a new domain.Logger using Zap.
// It configures the logger based on the provided ConfigProvider (for log level)
// and adds a static serviceName field to all logs.
func NewZapAdapter(cfgProvider domain.ConfigProvider, serviceName string) (domain.Logger, error) {
	logLevelStr := cfgProvider.GetString(config.KeyLogLevel)

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(logLevelStr)); err != nil {
		// Default to InfoLevel if parsing fails; the main logger isn't fully up yet.
		zapLevel = zap.InfoLevel
	}

	// Custom time encoder for UTC timestamps in RFC3339 format.
	customTimeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339Nano))
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(zapLevel),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Sampling:          nil,
		Encoding:          "json",
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		InitialFields: map[string]interface{}{
			"service": serviceName,
		},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1), // Adjust caller skip to account for our wrapper
	)
	if err != nil {
		return nil, err
	}

	return &ZapAdapter{baseLogger: logger}, nil
}

// ContextWithRunID injects a run ID into the provided context.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// getLoggerWithContextFields prepares a logger with fields derived from context.
func (z *ZapAdapter) getLoggerWithContextFields(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return z.baseLogger
	}

	fields := make([]zap.Field, 0, 3) // Pre-allocate for run_id, test_name, and account_id

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if testName, ok := ctx.Value(LogKeyTestName).(string); ok && testName != "" {
		fields = append(fields, zap.String(string(LogKeyTestName), testName))
	}
	if accountID, ok := ctx.Value(LogKeyAccountID).(string); ok && accountID != "" {
		fields = append(fields, zap.String(string(LogKeyAccountID), accountID))
	}

	if len(fields) > 0 {
		return z.baseLogger.With(fields...)
	}
	return z.baseLogger
}

// Info logs an informational message.
func (z *ZapAdapter) Info(ctx context.Context, msg string, fields ...zap.Field) {
	z.getLoggerWithContextFields(ctx).Info(msg, fields...)
}

// Warn logs a warning message.
func (z *ZapAdapter) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	z.getLoggerWithContextFields(ctx).Warn(msg, fields...)
}

// Error logs an error message.
func (z *ZapAdapter) Error(ctx context.Context, msg string, fields ...zap.Field) {
	z.getLoggerWithContextFields(ctx).Error(msg, fields...)
}

// Debug logs a debug message.
func (z *ZapAdapter) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	z.getLoggerWithContextFields(ctx).Debug(msg, fields...)
}

// With returns a new Logger instance with the provided static fields.
// Contextual fields like run_id are handled per log call.
func (z *ZapAdapter) With(fields ...zap.Field) domain.Logger {
	return &ZapAdapter{
		baseLogger: z.baseLogger.With(fields...),
	}
}

// Sync flushes any buffered log entries.
// This can be called during shutdown.
func (z *ZapAdapter) Sync() error {
	return z.baseLogger.Sync()
}
