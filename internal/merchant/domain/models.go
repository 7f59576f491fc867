package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AuthMethod is how a freelancer connected their Mercado Pago account.
type AuthMethod string

const (
	AuthMethodOAuth  AuthMethod = "oauth"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// MerchantAccount holds the delegated merchant credentials for one
// user. Token material is stored as vault envelopes; plaintext exists
// only transiently in memory.
type MerchantAccount struct {
	ID     snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex"`

	AuthMethod      AuthMethod `json:"auth_method" gorm:"type:text;not null"`
	AccessTokenEnc  string     `json:"-" gorm:"type:text;not null"`
	RefreshTokenEnc string     `json:"-" gorm:"type:text;not null"`

	// ProviderUserID is the merchant's id on the provider side.
	ProviderUserID string `json:"provider_user_id" gorm:"type:text"`

	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (MerchantAccount) TableName() string { return "merchant_accounts" }

type Status struct {
	Connected  bool       `json:"connected"`
	AuthMethod AuthMethod `json:"auth_method,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

var (
	ErrNotConnected  = errors.New("merchant_not_connected")
	ErrInvalidToken  = errors.New("merchant_invalid_token")
	ErrOAuthFailed   = errors.New("merchant_oauth_failed")
	ErrRefreshFailed = errors.New("merchant_refresh_failed")
	ErrInvalidCode   = errors.New("merchant_invalid_code")
	ErrInvalidAPIKey = errors.New("merchant_invalid_api_key")
	ErrNotConfigured = errors.New("merchant_oauth_not_configured")
)

type Service interface {
	// ConnectOAuth exchanges an authorization code for a token pair and
	// stores both encrypted.
	ConnectOAuth(ctx context.Context, userID snowflake.ID, code string) (*Status, error)
	// RegisterAPIKey stores a long-lived key; the refresh slot holds
	// the same value and expiry is set far in the future.
	RegisterAPIKey(ctx context.Context, userID snowflake.ID, apiKey string) (*Status, error)
	// AccessToken returns a usable plaintext token, transparently
	// refreshing OAuth tokens that expire within the safety margin.
	AccessToken(ctx context.Context, userID snowflake.ID) (string, error)
	// RefreshNow rotates an OAuth token pair regardless of how close
	// it is to expiry. API-key accounts are left untouched.
	RefreshNow(ctx context.Context, userID snowflake.ID) error
	Disconnect(ctx context.Context, userID snowflake.ID) error
	GetStatus(ctx context.Context, userID snowflake.ID) (*Status, error)
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, account *MerchantAccount) error
	FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*MerchantAccount, error)
	// ListExpiringOAuth returns OAuth accounts whose token expires at
	// or before the given instant. API-key accounts never expire.
	ListExpiringOAuth(ctx context.Context, db *gorm.DB, before time.Time) ([]MerchantAccount, error)
	Delete(ctx context.Context, db *gorm.DB, userID snowflake.ID) error
}
