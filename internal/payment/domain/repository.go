package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists payments and checkout sessions. The db handle
// is passed per call so reconciliation can run lookups and writes
// inside one transaction.
type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, p *Payment) error
	FindPaymentByProposal(ctx context.Context, db *gorm.DB, proposalID snowflake.ID) (*Payment, error)
	FindPaymentByExternalID(ctx context.Context, db *gorm.DB, externalPaymentID string) (*Payment, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, p *Payment) error

	InsertSession(ctx context.Context, db *gorm.DB, s *PaymentSession) error
	FindSessionByExternalID(ctx context.Context, db *gorm.DB, sessionID string) (*PaymentSession, error)
	UpdateSession(ctx context.Context, db *gorm.DB, s *PaymentSession) error
	// ExpirePendingSessions marks pending sessions created before the
	// cutoff as expired and returns how many rows changed.
	ExpirePendingSessions(ctx context.Context, db *gorm.DB, cutoff time.Time, now time.Time) (int64, error)
}
