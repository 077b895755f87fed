package fulfillment

import (
	"github.com/pawprintlabs/pawprint/internal/fulfillment/dispatcher"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment",
	fx.Provide(NewCoordinator),
	fx.Provide(NewOrchestrator),
	dispatcher.Module,
)
