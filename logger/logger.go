package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

func init() {
	l, err := newLogger(zapcore.InfoLevel)
	if err != nil {
		l = zap.NewNop()
	}
	log = l
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	conf := zap.NewProductionConfig()
	conf.Level = zap.NewAtomicLevelAt(level)
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	conf.EncoderConfig.StacktraceKey = ""
	return conf.Build(zap.AddCallerSkip(1))
}

// Init replaces the process logger with one at the given level ("debug", "info", ...).
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	l, err := newLogger(lvl)
	if err != nil {
		return err
	}
	log = l
	return nil
}

func L() *zap.Logger {
	return log
}

func Debug(msg string, fields ...zap.Field) {
	log.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

func Sync() error {
	return log.Sync()
}
