package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clubpay/internal/authorization"
	"github.com/smallbiznis/clubpay/internal/clock"
	"github.com/smallbiznis/clubpay/internal/club"
	"github.com/smallbiznis/clubpay/internal/config"
	"github.com/smallbiznis/clubpay/internal/lock"
	"github.com/smallbiznis/clubpay/internal/observability"
	"github.com/smallbiznis/clubpay/internal/payout"
	"github.com/smallbiznis/clubpay/internal/scheduler"
	"github.com/smallbiznis/clubpay/internal/transfer"
	"github.com/smallbiznis/clubpay/internal/usage"
	"github.com/smallbiznis/clubpay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Domain services required by scheduler
		club.Module,
		usage.Module,
		transfer.Module,
		payout.Module,
		authorization.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
