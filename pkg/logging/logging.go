// Package logging builds the service logger: zap underneath, ectologger on
// top.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	AppName string
	Level   string
	Pretty  bool
}

// NewZap builds the zap logger. Pretty selects the development console
// encoder, otherwise output is JSON.
func NewZap(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
	}

	cfg := zap.NewProductionConfig()
	if opts.Pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	if opts.AppName != "" {
		logger = logger.With(zap.String("app", opts.AppName))
	}
	return logger, nil
}

// New returns an ectologger backed by zap and the zap logger to sync on exit.
func New(opts Options) (ectologger.Logger, *zap.Logger, error) {
	zl, err := NewZap(opts)
	if err != nil {
		return nil, nil, err
	}
	return zapadapter.NewZapEctoLogger(zl, nil), zl, nil
}

// Discard returns a logger that drops every message.
func Discard() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
