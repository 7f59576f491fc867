package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("subscription: not found")
	ErrUnroutable = errors.New("subscription: no account for external id")
)

// UserSubscription mirrors the provider's subscription object for one
// freelancer account. ExternalID is the provider-side id and the
// upsert key; provider webhooks are the only writer after creation.
type UserSubscription struct {
	ID      snowflake.ID `json:"id" gorm:"primaryKey"`
	OwnerID snowflake.ID `json:"owner_id" gorm:"not null;index"`

	ExternalID string `json:"external_id" gorm:"type:text;not null;uniqueIndex"`
	CustomerID string `json:"customer_id" gorm:"type:text;index"`

	Plan    string `json:"plan" gorm:"type:text;not null"`
	PriceID string `json:"price_id" gorm:"type:text"`
	Status  string `json:"status" gorm:"type:text;not null"`

	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (UserSubscription) TableName() string { return "user_subscriptions" }

// Active reports whether the subscription currently grants access.
func (s *UserSubscription) Active() bool {
	return s.Status == "active" || s.Status == "trialing"
}

// Change is a provider-neutral subscription update.
type Change struct {
	ExternalID string
	CustomerID string
	Status     string
	Plan       string
	PriceID    string
	PeriodEnd  int64
}

type Service interface {
	// Register binds a provider subscription to an owner; called when
	// a checkout session completes and carries the owner context.
	Register(ctx context.Context, ownerID snowflake.ID, externalID, customerID, plan, priceID string) (*UserSubscription, error)
	// ApplyChange updates a known subscription from a webhook. Unknown
	// external ids return ErrUnroutable.
	ApplyChange(ctx context.Context, change Change) (*UserSubscription, error)
	GetForOwner(ctx context.Context, ownerID snowflake.ID) (*UserSubscription, error)
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, sub *UserSubscription) error
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*UserSubscription, error)
	FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*UserSubscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *UserSubscription) error
}
