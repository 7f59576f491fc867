// Package scheduler runs periodic maintenance: abandoned checkout
// sessions are expired and delegated OAuth tokens are refreshed
// before they lapse, so payment links keep working without a request
// having to eat the refresh latency.
package scheduler

import (
	"context"
	"time"

	"github.com/soloware/dealdesk/internal/clock"
	merchantdomain "github.com/soloware/dealdesk/internal/merchant/domain"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	tickInterval = 10 * time.Minute

	// sessionTTL is how long a pending checkout session stays open
	// before it is considered abandoned.
	sessionTTL = 24 * time.Hour

	// refreshAhead triggers a token refresh this far before expiry.
	refreshAhead = 12 * time.Hour
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Payments  paymentdomain.Repository
	Merchants merchantdomain.Service
	Accounts  merchantdomain.Repository
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	payments  paymentdomain.Repository
	merchants merchantdomain.Service
	accounts  merchantdomain.Repository
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler"),
		clock:     p.Clock,
		payments:  p.Payments,
		merchants: p.Merchants,
		accounts:  p.Accounts,
	}
}

// RunOnce executes one maintenance pass. Job failures are logged and
// do not stop the remaining jobs.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.expireStaleSessions(ctx); err != nil {
		s.log.Error("expire stale sessions", zap.Error(err))
	}
	if err := s.refreshExpiringTokens(ctx); err != nil {
		s.log.Error("refresh merchant tokens", zap.Error(err))
	}
}

func (s *Scheduler) expireStaleSessions(ctx context.Context) error {
	now := s.clock.Now()
	expired, err := s.payments.ExpirePendingSessions(ctx, s.db, now.Add(-sessionTTL), now)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.log.Info("expired stale checkout sessions", zap.Int64("count", expired))
	}
	return nil
}

func (s *Scheduler) refreshExpiringTokens(ctx context.Context) error {
	accounts, err := s.accounts.ListExpiringOAuth(ctx, s.db, s.clock.Now().Add(refreshAhead))
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if err := s.merchants.RefreshNow(ctx, account.UserID); err != nil {
			s.log.Warn("token refresh failed",
				zap.String("user_id", account.UserID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func register(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.loop(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(register),
)
