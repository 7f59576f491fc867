package subscription

import (
	"github.com/soloware/dealdesk/internal/subscription/repository"
	"github.com/soloware/dealdesk/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
