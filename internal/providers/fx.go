package providers

import (
	"github.com/pawprintlabs/pawprint/internal/providers/email"
	"github.com/pawprintlabs/pawprint/internal/providers/generator"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	generator.Module,
)
