package migration

import (
	"github.com/soloware/dealdesk/internal/config"
	merchantdomain "github.com/soloware/dealdesk/internal/merchant/domain"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/internal/seed"
	subscriptiondomain "github.com/soloware/dealdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Versioned SQL is postgres-only; sqlite and mysql dev
			// setups sync the schema from the models instead.
			if err := conn.AutoMigrate(
				&proposaldomain.Proposal{},
				&paymentdomain.Payment{},
				&paymentdomain.PaymentSession{},
				&subscriptiondomain.UserSubscription{},
				&merchantdomain.MerchantAccount{},
			); err != nil {
				return err
			}
		}

		if !cfg.IsProduction() {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
