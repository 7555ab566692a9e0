// Package logger builds the zap logger shared by the binaries.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a sugared logger. env "production" selects JSON output;
// anything else uses the colored development encoder.
// An unparseable level falls back to info.
func New(level, env string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Must is New for main packages: it falls back to a development logger on error.
func Must(level, env string) *zap.SugaredLogger {
	l, err := New(level, env)
	if err != nil {
		dev, _ := zap.NewDevelopment()
		dev.Sugar().Warnw("logger config rejected, using development logger", "error", err)
		return dev.Sugar()
	}
	return l
}
