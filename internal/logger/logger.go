package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the production logger used by the ingest binaries: JSON
// encoding, ISO8601 timestamps, debug level when debugMode is set.
func New(debugMode bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	if debugMode {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder

	return cfg.Build()
}

// NewDevelopment creates a console-encoded logger for local runs.
func NewDevelopment(debugMode bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if debugMode {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Sync flushes buffered log entries. Safe on a nil logger and safe to call
// more than once.
func Sync(l *zap.Logger) error {
	if l == nil {
		return nil
	}
	return l.Sync()
}
