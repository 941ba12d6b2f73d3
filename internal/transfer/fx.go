package transfer

import (
	"github.com/smallbiznis/clubpay/internal/transfer/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("transfer.stripe",
	fx.Provide(stripe.Provide),
)
