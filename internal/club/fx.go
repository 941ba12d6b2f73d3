package club

import (
	"github.com/smallbiznis/clubpay/internal/club/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("club.repository",
	fx.Provide(repository.Provide),
)
