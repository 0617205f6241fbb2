// Package logging builds the logr.Logger handed to every bridge
// component, backed by zap in production and by zap's development
// config (human-readable, synchronous) under tests.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production logr.Logger at the given level name
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func New(level string) logr.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panic: logging setup
		// must never prevent the bridge from starting.
		zl = zap.NewNop()
	}
	return zapr.NewLogger(zl)
}

// NewDevelopment builds a development logger (console-encoded, caller
// info, debug-and-above) for use in tests and local runs.
func NewDevelopment() logr.Logger {
	zl, err := zap.NewDevelopment()
	if err != nil {
		zl = zap.NewNop()
	}
	return zapr.NewLogger(zl)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
