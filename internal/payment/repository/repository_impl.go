package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindPaymentByProposal(ctx context.Context, db *gorm.DB, proposalID snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Where("proposal_id = ?", proposalID).Take(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) FindPaymentByExternalID(ctx context.Context, db *gorm.DB, externalPaymentID string) (*domain.Payment, error) {
	if externalPaymentID == "" {
		return nil, nil
	}
	var payment domain.Payment
	err := db.WithContext(ctx).Where("external_payment_id = ?", externalPaymentID).Take(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Save(payment).Error
}

func (r *repo) InsertSession(ctx context.Context, db *gorm.DB, session *domain.PaymentSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindSessionByExternalID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.PaymentSession, error) {
	if sessionID == "" {
		return nil, nil
	}
	var session domain.PaymentSession
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) UpdateSession(ctx context.Context, db *gorm.DB, session *domain.PaymentSession) error {
	return db.WithContext(ctx).Save(session).Error
}

func (r *repo) ExpirePendingSessions(ctx context.Context, db *gorm.DB, cutoff time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.PaymentSession{}).
		Where("status = ? AND created_at < ?", domain.SessionPending, cutoff).
		Updates(map[string]any{"status": domain.SessionExpired, "updated_at": now})
	return result.RowsAffected, result.Error
}
