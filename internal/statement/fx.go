package statement

import (
	"github.com/smallbiznis/clubpay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("statement.renderer",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Renderer {
		return New(log, cfg.Stripe.Currency)
	}),
)
