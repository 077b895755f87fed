package order

import (
	"github.com/pawprintlabs/pawprint/internal/order/repository"
	"github.com/pawprintlabs/pawprint/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
