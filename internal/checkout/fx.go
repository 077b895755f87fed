package checkout

import (
	"fmt"

	"github.com/pawprintlabs/pawprint/internal/checkout/adapters/stripe"
	"github.com/pawprintlabs/pawprint/internal/checkout/domain"
	"github.com/pawprintlabs/pawprint/internal/checkout/service"
	"github.com/pawprintlabs/pawprint/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(newProcessorClient),
	fx.Provide(service.New),
)

func newProcessorClient(cfg config.Config) (domain.ProcessorClient, error) {
	switch cfg.Checkout.Provider {
	case "", "stripe":
		return stripe.NewClient(cfg.Checkout.APIBase, cfg.Checkout.SecretKey), nil
	default:
		return nil, fmt.Errorf("unsupported checkout provider %q", cfg.Checkout.Provider)
	}
}
