package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/proposal/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, proposal *domain.Proposal) error {
	return db.WithContext(ctx).Create(proposal).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Proposal, error) {
	return r.findOne(ctx, db, "owner_id = ? AND id = ?", ownerID, id)
}

func (r *repo) FindByIDAny(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Proposal, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByShareTokenHash(ctx context.Context, db *gorm.DB, hash string) (*domain.Proposal, error) {
	if hash == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, "share_token_hash = ?", hash)
}

func (r *repo) FindByPublicHash(ctx context.Context, db *gorm.DB, hash string) (*domain.Proposal, error) {
	if hash == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, "public_hash = ?", hash)
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]domain.Proposal, error) {
	var proposals []domain.Proposal
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc, id desc").
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, proposal *domain.Proposal) error {
	return db.WithContext(ctx).Save(proposal).Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Proposal, error) {
	var proposal domain.Proposal
	err := db.WithContext(ctx).Where(query, args...).Take(&proposal).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}
