package payment

import (
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/payment/adapters"
	"github.com/soloware/dealdesk/internal/payment/adapters/mercadopago"
	"github.com/soloware/dealdesk/internal/payment/adapters/stripe"
	"github.com/soloware/dealdesk/internal/payment/domain"
	"github.com/soloware/dealdesk/internal/payment/repository"
	"github.com/soloware/dealdesk/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Unconfigured providers are skipped at startup rather than failing
// the app; routes for them answer provider-not-found.
var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideStripe),
	fx.Provide(provideRegistry),
	fx.Provide(service.NewCheckout),
	fx.Provide(service.NewReconcile),
)

func provideStripe(cfg config.Config, log *zap.Logger) *stripe.Adapter {
	adapter, err := stripe.New(cfg.Stripe)
	if err != nil {
		log.Named("payment").Warn("stripe adapter disabled", zap.Error(err))
		return nil
	}
	return adapter
}

func provideRegistry(cfg config.Config, log *zap.Logger, stripeAdapter *stripe.Adapter) *adapters.Registry {
	list := []domain.Adapter{}
	if stripeAdapter != nil {
		list = append(list, stripeAdapter)
	}
	mp, err := mercadopago.New(cfg.MercadoPago)
	if err != nil {
		log.Named("payment").Warn("mercadopago adapter disabled", zap.Error(err))
	} else {
		list = append(list, mp)
	}
	return adapters.NewRegistry(list...)
}
