package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, ownerID snowflake.ID, externalID, customerID, plan, priceID string) (*domain.UserSubscription, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrUnroutable
	}

	now := s.clock.Now()
	sub := &domain.UserSubscription{
		ID:         s.genID.Generate(),
		OwnerID:    ownerID,
		ExternalID: externalID,
		CustomerID: strings.TrimSpace(customerID),
		Plan:       strings.ToLower(strings.TrimSpace(plan)),
		PriceID:    priceID,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription registered",
		zap.String("owner_id", ownerID.String()),
		zap.String("external_id", externalID),
	)
	return sub, nil
}

// ApplyChange is webhook-driven and must tolerate out-of-order
// deliveries: unknown external ids are reported, not created, since
// only a completed checkout session carries the owner binding.
func (s *Service) ApplyChange(ctx context.Context, change domain.Change) (*domain.UserSubscription, error) {
	sub, err := s.repo.FindByExternalID(ctx, s.db, strings.TrimSpace(change.ExternalID))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrUnroutable
	}

	if change.Status != "" {
		sub.Status = change.Status
	}
	if change.Plan != "" {
		sub.Plan = strings.ToLower(change.Plan)
	}
	if change.PriceID != "" {
		sub.PriceID = change.PriceID
	}
	if change.CustomerID != "" {
		sub.CustomerID = change.CustomerID
	}
	if change.PeriodEnd > 0 {
		end := time.Unix(change.PeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}
	sub.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetForOwner(ctx context.Context, ownerID snowflake.ID) (*domain.UserSubscription, error) {
	sub, err := s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}
