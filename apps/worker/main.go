package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pawprintlabs/pawprint/internal/clock"
	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/pawprintlabs/pawprint/internal/fulfillment"
	"github.com/pawprintlabs/pawprint/internal/migration"
	"github.com/pawprintlabs/pawprint/internal/notification"
	"github.com/pawprintlabs/pawprint/internal/observability"
	"github.com/pawprintlabs/pawprint/internal/order"
	"github.com/pawprintlabs/pawprint/internal/providers"
	"github.com/pawprintlabs/pawprint/pkg/db"
	"go.uber.org/fx"
)

// Standalone retry dispatcher. Runs the recovery sweep and due-retry
// dispatch loop without serving HTTP, for deployments that separate the
// API from fulfillment.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		providers.Module,
		notification.Module,
		order.Module,
		fulfillment.Module,
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
