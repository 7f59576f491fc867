package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentStatus tracks the delegated-merchant payment attached to a
// proposal. CONFIRMED is terminal and is never overwritten by a later
// FAILED result.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment is one-to-one with a proposal (delegated-merchant flow).
// The amount is always derived from the proposal's value at
// link-creation time, never accepted from the payer.
type Payment struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	ProposalID snowflake.ID `json:"proposal_id" gorm:"not null;uniqueIndex"`
	OwnerID    snowflake.ID `json:"owner_id" gorm:"not null;index"`

	Status            PaymentStatus `json:"status" gorm:"type:text;not null"`
	PreferenceID      string        `json:"preference_id" gorm:"type:text"`
	ExternalPaymentID string        `json:"external_payment_id" gorm:"type:text"`
	PaymentURL        string        `json:"payment_url" gorm:"type:text"`
	AmountCents       int64         `json:"amount_cents" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// SessionMode distinguishes one-off checkouts from subscription
// checkouts on the platform-merchant provider.
type SessionMode string

const (
	SessionModePayment      SessionMode = "payment"
	SessionModeSubscription SessionMode = "subscription"
)

type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionPaid    SessionStatus = "paid"
	SessionFailed  SessionStatus = "failed"
	SessionExpired SessionStatus = "expired"
)

// PaymentSession is one row per checkout attempt on the
// platform-merchant provider. New attempts supersede old rows; only
// webhook-driven status updates mutate a row in place.
type PaymentSession struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	OwnerID    snowflake.ID  `json:"owner_id" gorm:"not null;index"`
	ProposalID *snowflake.ID `json:"proposal_id,omitempty" gorm:"index"`

	Mode   SessionMode   `json:"mode" gorm:"type:text;not null"`
	Status SessionStatus `json:"status" gorm:"type:text;not null"`

	SessionID       string `json:"session_id" gorm:"type:text;not null;uniqueIndex"`
	PaymentIntentID string `json:"payment_intent_id" gorm:"type:text"`
	SubscriptionID  string `json:"subscription_id" gorm:"type:text"`

	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency" gorm:"type:text"`
	Metadata    datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }
