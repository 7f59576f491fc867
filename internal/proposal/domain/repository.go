package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, proposal *Proposal) error
	FindByID(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*Proposal, error)
	// FindByIDAny resolves a proposal without an ownership filter. The
	// reconciliation engine uses it after decoding an external
	// reference; the reference is never trusted on its own.
	FindByIDAny(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Proposal, error)
	FindByShareTokenHash(ctx context.Context, db *gorm.DB, hash string) (*Proposal, error)
	FindByPublicHash(ctx context.Context, db *gorm.DB, hash string) (*Proposal, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]Proposal, error)
	Update(ctx context.Context, db *gorm.DB, proposal *Proposal) error
}
