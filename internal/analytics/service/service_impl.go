package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/analytics/domain"
	"github.com/soloware/dealdesk/internal/clock"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Proposals proposaldomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	proposals proposaldomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("analytics.service"),
		clock:     p.Clock,
		proposals: p.Proposals,
	}
}

func (s *Service) Dashboard(ctx context.Context, ownerID snowflake.ID, period domain.Period) (*domain.Dashboard, error) {
	proposals, err := s.proposals.ListByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	return domain.Compute(proposals, period, s.clock.Now()), nil
}

func (s *Service) KPIs(ctx context.Context, ownerID snowflake.ID, period domain.Period) (*domain.KPIs, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, period)
	if err != nil {
		return nil, err
	}
	return &dashboard.KPIs, nil
}

func (s *Service) Charts(ctx context.Context, ownerID snowflake.ID, period domain.Period) ([]domain.Bucket, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, period)
	if err != nil {
		return nil, err
	}
	return dashboard.Series, nil
}

func (s *Service) Health(ctx context.Context, ownerID snowflake.ID) (*domain.Health, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, domain.PeriodMonthly)
	if err != nil {
		return nil, err
	}
	return &dashboard.Health, nil
}

func (s *Service) Insights(ctx context.Context, ownerID snowflake.ID, period domain.Period) ([]domain.Insight, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, period)
	if err != nil {
		return nil, err
	}
	return dashboard.Insights, nil
}

func (s *Service) Actions(ctx context.Context, ownerID snowflake.ID) ([]domain.Action, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, domain.PeriodMonthly)
	if err != nil {
		return nil, err
	}
	return dashboard.Actions, nil
}

func (s *Service) PendingRanked(ctx context.Context, ownerID snowflake.ID, limit int) ([]domain.PendingItem, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, domain.PeriodMonthly)
	if err != nil {
		return nil, err
	}
	limit = domain.ClampLimit(limit)
	if len(dashboard.Pending) > limit {
		return dashboard.Pending[:limit], nil
	}
	return dashboard.Pending, nil
}

func (s *Service) Summary(ctx context.Context, ownerID snowflake.ID, period domain.Period) (string, error) {
	dashboard, err := s.Dashboard(ctx, ownerID, period)
	if err != nil {
		return "", err
	}
	return dashboard.Summary, nil
}
