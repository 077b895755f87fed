package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pawprintlabs/pawprint/internal/clock"
	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/pawprintlabs/pawprint/internal/observability"
	"github.com/pawprintlabs/pawprint/internal/server"
	"github.com/pawprintlabs/pawprint/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
