package proposal

import (
	"github.com/soloware/dealdesk/internal/proposal/repository"
	"github.com/soloware/dealdesk/internal/proposal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("proposal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
