package scheduler

import (
	"context"

	"github.com/smallbiznis/clubpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func NewScheduler(lc fx.Lifecycle, cfg config.Config, sched *Scheduler, log *zap.Logger) {
	if !cfg.Jobs.Enabled {
		log.Info("scheduler disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start()
		},
		OnStop: func(context.Context) error {
			return sched.Stop()
		},
	})
}
