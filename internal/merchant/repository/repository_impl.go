package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/merchant/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, account *domain.MerchantAccount) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"auth_method",
			"access_token_enc",
			"refresh_token_enc",
			"provider_user_id",
			"expires_at",
			"updated_at",
		}),
	}).Create(account).Error
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.MerchantAccount, error) {
	var account domain.MerchantAccount
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&account).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) ListExpiringOAuth(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.MerchantAccount, error) {
	var accounts []domain.MerchantAccount
	err := db.WithContext(ctx).
		Where("auth_method = ? AND expires_at <= ?", domain.AuthMethodOAuth, before).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.MerchantAccount{}).Error
}
