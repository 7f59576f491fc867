package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/cache"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/logger"
	"github.com/soloware/dealdesk/internal/migration"
	"github.com/soloware/dealdesk/internal/scheduler"
	"github.com/soloware/dealdesk/internal/server"
	"github.com/soloware/dealdesk/internal/vault"
	"github.com/soloware/dealdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		cache.Module,
		vault.Module,

		migration.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
