// Package logger builds the application's zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger for development environments and a JSON
// production logger otherwise.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "dev", "development", "local":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	default:
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build(zap.Fields(zap.String("service", "seat-inventory"), zap.String("env", env)))
	}
}
