package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, sub *domain.UserSubscription) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"plan",
			"price_id",
			"status",
			"current_period_end",
			"updated_at",
		}),
	}).Create(sub).Error
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.UserSubscription, error) {
	if externalID == "" {
		return nil, nil
	}
	var sub domain.UserSubscription
	err := db.WithContext(ctx).Where("external_id = ?", externalID).Take(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*domain.UserSubscription, error) {
	var sub domain.UserSubscription
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at desc").
		Take(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.UserSubscription) error {
	return db.WithContext(ctx).Save(sub).Error
}
