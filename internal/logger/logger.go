package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the root logger. Debug switches to a human readable console encoder.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// OrNop returns log, or a no-op logger when log is nil.
func OrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}

// CronAdapter satisfies cron.Logger on top of a sugared zap logger.
type CronAdapter struct {
	Log *zap.SugaredLogger
}

// Info logs routine scheduler events at debug level; they fire every tick.
func (a CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	OrNop(a.Log).Debugw(msg, keysAndValues...)
}

// Error logs scheduler failures.
func (a CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	OrNop(a.Log).Errorw(msg, append(keysAndValues, "error", err)...)
}
