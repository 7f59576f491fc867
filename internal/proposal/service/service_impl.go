package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/config"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	"github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultShareTTLHours = 72
	maxShareTTLHours     = 24 * 30
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Payments paymentdomain.Repository
	Cfg      config.Config
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	payments paymentdomain.Repository
	baseURL  string
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("proposal.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		payments: p.Payments,
		baseURL:  p.Cfg.PublicBaseURL,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Proposal, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	client := strings.TrimSpace(req.ClientName)
	if client == "" {
		return nil, domain.ErrInvalidClient
	}
	cents, err := money.ParseCents(req.Value)
	if err != nil || cents <= 0 {
		return nil, domain.ErrInvalidValue
	}

	now := s.clock.Now()
	proposal := &domain.Proposal{
		ID:          s.genID.Generate(),
		OwnerID:     req.OwnerID,
		Title:       title,
		ClientName:  client,
		Description: strings.TrimSpace(req.Description),
		ValueCents:  cents,
		Lifecycle:   domain.LifecycleDraft,
		Display:     domain.LifecycleDraft.Display(),
		PublicHash:  uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func (s *Service) List(ctx context.Context, ownerID snowflake.ID) ([]domain.Proposal, error) {
	return s.repo.ListByOwner(ctx, s.db, ownerID)
}

func (s *Service) Get(ctx context.Context, ownerID, id snowflake.ID) (*domain.Proposal, error) {
	return s.loadOwned(ctx, s.db, ownerID, id)
}

func (s *Service) UpdateStatus(ctx context.Context, ownerID, id snowflake.ID, status domain.DisplayStatus) (*domain.Proposal, error) {
	var target domain.Lifecycle
	switch status {
	case domain.DisplaySold:
		target = domain.LifecyclePaid
	case domain.DisplayCancelled:
		target = domain.LifecycleCancelled
	case domain.DisplayPending:
		target = domain.LifecycleSent
	default:
		return nil, domain.ErrInvalidStatus
	}

	var out *domain.Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		proposal, err := s.loadOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if proposal.Lifecycle == target {
			out = proposal
			return nil
		}
		if proposal.Lifecycle.Terminal() {
			return domain.ErrLifecycleTerminal
		}

		now := s.clock.Now()
		switch target {
		case domain.LifecyclePaid:
			proposal.AcceptedAt = &now
			proposal.CancelledAt = nil
			proposal.PaidAt = &now
		case domain.LifecycleCancelled:
			proposal.CancelledAt = &now
			proposal.AcceptedAt = nil
		case domain.LifecycleSent:
			proposal.AcceptedAt = nil
			proposal.CancelledAt = nil
		}
		s.applyLifecycle(proposal, target, now)
		out = proposal
		return s.repo.Update(ctx, tx, proposal)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) IssueShareLink(ctx context.Context, ownerID, id snowflake.ID, ttlHours int) (*domain.ShareLink, error) {
	if ttlHours == 0 {
		ttlHours = defaultShareTTLHours
	}
	if ttlHours < 1 || ttlHours > maxShareTTLHours {
		return nil, domain.ErrInvalidTTL
	}

	raw, err := generateToken()
	if err != nil {
		return nil, err
	}

	var link *domain.ShareLink
	err = s.db.Transaction(func(tx *gorm.DB) error {
		proposal, err := s.loadOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if proposal.Lifecycle.Terminal() {
			return domain.ErrLifecycleTerminal
		}

		now := s.clock.Now()
		expires := now.Add(time.Duration(ttlHours) * time.Hour)
		proposal.ShareTokenHash = domain.HashShareToken(raw)
		proposal.ShareTokenExpiresAt = &expires
		if proposal.Lifecycle == domain.LifecycleDraft {
			s.applyLifecycle(proposal, domain.LifecycleSent, now)
		} else {
			proposal.UpdatedAt = now
		}
		if err := s.repo.Update(ctx, tx, proposal); err != nil {
			return err
		}

		link = &domain.ShareLink{
			ProposalID: proposal.ID,
			Token:      raw,
			URL:        fmt.Sprintf("%s/public/contracts/%s", s.baseURL, raw),
			ExpiresAt:  expires,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) ViewByShareToken(ctx context.Context, rawToken string) (*domain.PublicContract, error) {
	proposal, err := s.loadByToken(ctx, s.db, rawToken)
	if err != nil {
		return nil, err
	}
	return publicView(proposal), nil
}

func (s *Service) SignContract(ctx context.Context, req domain.SignRequest) (*domain.PublicContract, error) {
	signer := strings.TrimSpace(req.SignerName)
	document := strings.TrimSpace(req.SignerDocument)
	if signer == "" || document == "" {
		return nil, domain.ErrInvalidSigner
	}

	var out *domain.PublicContract
	err := s.db.Transaction(func(tx *gorm.DB) error {
		proposal, err := s.loadByToken(ctx, tx, req.Token)
		if err != nil {
			return err
		}
		if proposal.Signed() {
			return domain.ErrAlreadySigned
		}

		now := s.clock.Now()
		proposal.SignerName = signer
		proposal.SignatureHash = domain.SignatureCommitment(
			proposal.ID.String(), signer, document, req.RequesterIP, req.UserAgent,
		)
		proposal.SignedAt = &now
		proposal.PaymentReleasedAt = &now
		if proposal.Lifecycle == domain.LifecycleSent || proposal.Lifecycle == domain.LifecycleDraft {
			proposal.AcceptedAt = &now
			s.applyLifecycle(proposal, domain.LifecycleAccepted, now)
		} else {
			proposal.UpdatedAt = now
		}
		if err := s.repo.Update(ctx, tx, proposal); err != nil {
			return err
		}
		out = publicView(proposal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) MarkPaidManually(ctx context.Context, ownerID, id snowflake.ID, note string) (*domain.Proposal, error) {
	var out *domain.Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		proposal, err := s.loadOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if proposal.Lifecycle == domain.LifecyclePaid {
			out = proposal
			return nil
		}
		if proposal.Lifecycle == domain.LifecycleCancelled {
			return domain.ErrLifecycleTerminal
		}
		if !proposal.Signed() {
			return domain.ErrNotSigned
		}

		now := s.clock.Now()
		proposal.PaidAt = &now
		if proposal.AcceptedAt == nil {
			proposal.AcceptedAt = &now
		}
		s.applyLifecycle(proposal, domain.LifecyclePaid, now)
		if err := s.repo.Update(ctx, tx, proposal); err != nil {
			return err
		}
		if err := s.settleManualPayment(ctx, tx, proposal, now); err != nil {
			return err
		}

		s.log.Info("proposal marked paid manually",
			zap.String("proposal_id", proposal.ID.String()),
			zap.String("note", strings.TrimSpace(note)),
		)
		out = proposal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// settleManualPayment records the off-platform settlement against the
// payment row, so a pending payment link stops being served. A payment
// already confirmed by a provider event is left untouched.
func (s *Service) settleManualPayment(ctx context.Context, tx *gorm.DB, p *domain.Proposal, now time.Time) error {
	payment, err := s.payments.FindPaymentByProposal(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	if payment != nil && payment.Status == paymentdomain.PaymentConfirmed {
		return nil
	}

	externalID := "manual-" + p.ID.String()
	if payment == nil {
		payment = &paymentdomain.Payment{
			ID:          s.genID.Generate(),
			ProposalID:  p.ID,
			OwnerID:     p.OwnerID,
			AmountCents: p.ValueCents,
			CreatedAt:   now,
		}
		payment.Status = paymentdomain.PaymentConfirmed
		payment.ExternalPaymentID = externalID
		payment.UpdatedAt = now
		return s.payments.InsertPayment(ctx, tx, payment)
	}

	payment.Status = paymentdomain.PaymentConfirmed
	payment.ExternalPaymentID = externalID
	payment.UpdatedAt = now
	return s.payments.UpdatePayment(ctx, tx, payment)
}

// applyLifecycle writes the lifecycle and its display projection
// together. Every lifecycle mutation in this package goes through here.
func (s *Service) applyLifecycle(p *domain.Proposal, target domain.Lifecycle, now time.Time) {
	p.Lifecycle = target
	p.Display = target.Display()
	p.UpdatedAt = now
}

func (s *Service) loadOwned(ctx context.Context, db *gorm.DB, ownerID, id snowflake.ID) (*domain.Proposal, error) {
	proposal, err := s.repo.FindByID(ctx, db, ownerID, id)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, domain.ErrNotFound
	}
	return proposal, nil
}

// loadByToken returns the same error for unknown and expired tokens.
func (s *Service) loadByToken(ctx context.Context, db *gorm.DB, rawToken string) (*domain.Proposal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrShareTokenInvalid
	}
	proposal, err := s.repo.FindByShareTokenHash(ctx, db, domain.HashShareToken(rawToken))
	if err != nil {
		return nil, err
	}
	if proposal == nil || proposal.ShareTokenExpiresAt == nil {
		return nil, domain.ErrShareTokenInvalid
	}
	if s.clock.Now().After(*proposal.ShareTokenExpiresAt) {
		return nil, domain.ErrShareTokenInvalid
	}
	return proposal, nil
}

func publicView(p *domain.Proposal) *domain.PublicContract {
	return &domain.PublicContract{
		ProposalID:  p.ID,
		Title:       p.Title,
		ClientName:  p.ClientName,
		Description: p.Description,
		Value:       money.FormatCents(p.ValueCents),
		Lifecycle:   p.Lifecycle,
		Display:     p.Display,
		Signed:      p.Signed(),
		SignedAt:    p.SignedAt,
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
