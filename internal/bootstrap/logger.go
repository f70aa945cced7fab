package bootstrap

import (
	"context"

	"BranchLMS/internal/config"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewLogger returns a JSON production logger in production and a console
// development logger otherwise.
func NewLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("env", cfg.Env))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stderr sync fails on some terminals
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

// FxLogger routes fx's own lifecycle events through zap.
func FxLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
}

var Module = fx.Module("bootstrap",
	fx.Provide(NewLogger),
)
