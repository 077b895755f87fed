package generator

import (
	"github.com/pawprintlabs/pawprint/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.generator",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	return NewHTTP(cfg.Reports.Endpoint, cfg.Reports.APIKey)
}
