package merchant

import (
	"github.com/soloware/dealdesk/internal/merchant/repository"
	"github.com/soloware/dealdesk/internal/merchant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("merchant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
