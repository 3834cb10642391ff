package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	keySessionID ctxKey = "session_id"
	keyRequestID ctxKey = "request_id"
	keyFrontEnd  ctxKey = "front_end"
)

// Logger интерфейс логгера с полями из контекста
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
	Sync() error
}

// ZapLogger реализация на zap
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger создаёт JSON-логгер с указанным уровнем; по умолчанию пишет в stderr
func NewZapLogger(level string, outputs ...string) (Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger}, nil
}

// NewFromZap оборачивает готовый *zap.Logger (например zaptest или zap.NewNop)
func NewFromZap(l *zap.Logger) Logger {
	return &ZapLogger{logger: l}
}

// Nop логгер, который ничего не пишет
func Nop() Logger {
	return &ZapLogger{logger: zap.NewNop()}
}

// WithSessionID кладёт ID сессии в контекст
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keySessionID, id)
}

// WithRequestID кладёт ID запроса в контекст
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// WithFrontEnd помечает, через какой интерфейс пришло событие
func WithFrontEnd(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyFrontEnd, name)
}

func (l *ZapLogger) extractFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if ctx == nil {
		return fields
	}

	if v, ok := ctx.Value(keySessionID).(string); ok && v != "" {
		fields = append(fields, zap.String(string(keySessionID), v))
	}
	if v, ok := ctx.Value(keyRequestID).(string); ok && v != "" {
		fields = append(fields, zap.String(string(keyRequestID), v))
	}
	if v, ok := ctx.Value(keyFrontEnd).(string); ok && v != "" {
		fields = append(fields, zap.String(string(keyFrontEnd), v))
	}

	return fields
}

// Debugf пишет debug-сообщение
func (l *ZapLogger) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Infof пишет info-сообщение
func (l *ZapLogger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Warnf пишет предупреждение
func (l *ZapLogger) Warnf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Errorf пишет ошибку
func (l *ZapLogger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Sync сбрасывает буфер
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
