package copilot

import (
	"github.com/soloware/dealdesk/internal/copilot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("copilot.service",
	fx.Provide(service.New),
)
