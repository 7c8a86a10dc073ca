package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/gpu-runtime/device"
	"github.com/wippyai/gpu-runtime/driver/cuda"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/kernel"
)

func newLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// installLogger hands l to every package that logs.
func installLogger(l *zap.Logger) {
	device.SetLogger(l.Named("device"))
	kernel.SetLogger(l.Named("kernel"))
	cuda.SetLogger(l.Named("cuda"))
}
