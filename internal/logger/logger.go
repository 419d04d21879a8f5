package logger

import (
	"signal-relay-go/internal/config"
	"signal-relay-go/internal/id"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap.Logger instance based on the provided configuration.
func NewLogger(cfg config.Logger) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(logLevel)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zcfg.Build()
}

// ForInvocation returns a child logger tagged with the venue and a fresh
// invocation ID, plus the ID itself so it can be echoed to the caller.
func ForInvocation(base *zap.Logger, venue string) (*zap.Logger, string) {
	invocationID := id.New()
	return base.With(zap.String("venue", venue), zap.String("invocation_id", invocationID)), invocationID
}
