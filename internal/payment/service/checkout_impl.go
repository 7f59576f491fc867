package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/config"
	"github.com/soloware/dealdesk/internal/merchant/domain"
	"github.com/soloware/dealdesk/internal/payment/adapters"
	stripeadapter "github.com/soloware/dealdesk/internal/payment/adapters/stripe"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const checkoutCurrency = "BRL"

type CheckoutParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Cfg       config.Config
	Registry  *adapters.Registry
	Repo      paymentdomain.Repository
	Proposals proposaldomain.Repository
	Merchants domain.Service
	Stripe    *stripeadapter.Adapter `optional:"true"`
}

type CheckoutService struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	baseURL   string
	registry  *adapters.Registry
	repo      paymentdomain.Repository
	proposals proposaldomain.Repository
	merchants domain.Service
	stripe    *stripeadapter.Adapter
}

func NewCheckout(p CheckoutParams) paymentdomain.CheckoutService {
	return &CheckoutService{
		db:        p.DB,
		log:       p.Log.Named("payment.checkout"),
		genID:     p.GenID,
		clock:     p.Clock,
		baseURL:   p.Cfg.PublicBaseURL,
		registry:  p.Registry,
		repo:      p.Repo,
		proposals: p.Proposals,
		merchants: p.Merchants,
		stripe:    p.Stripe,
	}
}

// RequestPaymentLink creates a delegated-merchant payment link. While
// a pending payment exists the stored link is returned unchanged, so
// retries never create a second preference. The charged amount always
// comes from the proposal row, never from the caller.
func (s *CheckoutService) RequestPaymentLink(ctx context.Context, ownerID, proposalID snowflake.ID, payerEmail string) (*paymentdomain.PaymentLink, error) {
	proposal, err := s.loadPayable(ctx, ownerID, proposalID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindPaymentByProposal(ctx, s.db, proposalID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == paymentdomain.PaymentPending && existing.PaymentURL != "" {
		return link(existing), nil
	}
	if existing != nil && existing.Status == paymentdomain.PaymentConfirmed {
		return link(existing), nil
	}

	ownerToken, err := s.merchants.AccessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.registry.Adapter("mercadopago")
	if err != nil {
		return nil, err
	}

	reference := paymentdomain.EncodeReference(ownerID, proposalID, proposal.PublicHash)
	checkout, err := adapter.CreateCheckout(ctx, paymentdomain.CheckoutRequest{
		OwnerID:     ownerID,
		ProposalID:  proposalID,
		Reference:   reference,
		Title:       proposal.Title,
		AmountCents: proposal.ValueCents,
		Currency:    checkoutCurrency,
		PayerEmail:  strings.TrimSpace(payerEmail),
		SuccessURL:  fmt.Sprintf("%s/public/contracts/paid", s.baseURL),
		CancelURL:   fmt.Sprintf("%s/public/contracts/cancelled", s.baseURL),
		NotifyURL:   fmt.Sprintf("%s/webhooks/payments/mercadopago?owner_id=%d", s.baseURL, ownerID),
		OwnerToken:  ownerToken,
		Mode:        paymentdomain.SessionModePayment,
	})
	if err != nil {
		return nil, err
	}

	// Persist only after the provider accepted the preference, so a
	// failed upstream call leaves no dangling PENDING row.
	now := s.clock.Now()
	var payment *paymentdomain.Payment
	if existing != nil {
		payment = existing
		payment.Status = paymentdomain.PaymentPending
		payment.PreferenceID = checkout.PreferenceID
		payment.PaymentURL = checkout.URL
		payment.AmountCents = proposal.ValueCents
		payment.UpdatedAt = now
		err = s.repo.UpdatePayment(ctx, s.db, payment)
	} else {
		payment = &paymentdomain.Payment{
			ID:           s.genID.Generate(),
			ProposalID:   proposalID,
			OwnerID:      ownerID,
			Status:       paymentdomain.PaymentPending,
			PreferenceID: checkout.PreferenceID,
			PaymentURL:   checkout.URL,
			AmountCents:  proposal.ValueCents,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.repo.InsertPayment(ctx, s.db, payment)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("payment link created",
		zap.String("proposal_id", proposalID.String()),
		zap.String("preference_id", checkout.PreferenceID),
	)
	return link(payment), nil
}

// CreateProposalSession is the platform-merchant checkout for a
// proposal; funds settle on the platform account.
func (s *CheckoutService) CreateProposalSession(ctx context.Context, ownerID, proposalID snowflake.ID, payerEmail string) (*paymentdomain.SessionLink, error) {
	if s.stripe == nil {
		return nil, paymentdomain.ErrProviderNotFound
	}
	proposal, err := s.loadPayable(ctx, ownerID, proposalID)
	if err != nil {
		return nil, err
	}

	reference := paymentdomain.EncodeReference(ownerID, proposalID, proposal.PublicHash)
	checkout, err := s.stripe.CreateCheckout(ctx, paymentdomain.CheckoutRequest{
		OwnerID:     ownerID,
		ProposalID:  proposalID,
		Reference:   reference,
		Title:       proposal.Title,
		AmountCents: proposal.ValueCents,
		Currency:    checkoutCurrency,
		PayerEmail:  strings.TrimSpace(payerEmail),
		SuccessURL:  fmt.Sprintf("%s/public/contracts/paid", s.baseURL),
		CancelURL:   fmt.Sprintf("%s/public/contracts/cancelled", s.baseURL),
		Mode:        paymentdomain.SessionModePayment,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &paymentdomain.PaymentSession{
		ID:          s.genID.Generate(),
		OwnerID:     ownerID,
		ProposalID:  &proposalID,
		Mode:        paymentdomain.SessionModePayment,
		Status:      paymentdomain.SessionPending,
		SessionID:   checkout.SessionID,
		AmountCents: proposal.ValueCents,
		Currency:    checkoutCurrency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		return nil, err
	}
	return &paymentdomain.SessionLink{SessionID: checkout.SessionID, URL: checkout.URL}, nil
}

// CreateSubscriptionSession starts a platform subscription checkout
// for the freelancer's own plan.
func (s *CheckoutService) CreateSubscriptionSession(ctx context.Context, ownerID snowflake.ID, plan, email string) (*paymentdomain.SessionLink, error) {
	if s.stripe == nil {
		return nil, paymentdomain.ErrProviderNotFound
	}
	priceID, ok := s.stripe.PriceForPlan(plan)
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}

	checkout, err := s.stripe.CreateCheckout(ctx, paymentdomain.CheckoutRequest{
		OwnerID:    ownerID,
		Reference:  ownerID.String(),
		SuccessURL: fmt.Sprintf("%s/settings/billing?status=success", s.baseURL),
		CancelURL:  fmt.Sprintf("%s/settings/billing?status=cancelled", s.baseURL),
		PayerEmail: strings.TrimSpace(email),
		Mode:       paymentdomain.SessionModeSubscription,
		PriceID:    priceID,
		Metadata:   map[string]string{"owner_id": ownerID.String(), "plan": strings.ToLower(plan)},
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &paymentdomain.PaymentSession{
		ID:        s.genID.Generate(),
		OwnerID:   ownerID,
		Mode:      paymentdomain.SessionModeSubscription,
		Status:    paymentdomain.SessionPending,
		SessionID: checkout.SessionID,
		Currency:  checkoutCurrency,
		Metadata:  datatypes.JSONMap{"plan": strings.ToLower(plan)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		return nil, err
	}
	return &paymentdomain.SessionLink{SessionID: checkout.SessionID, URL: checkout.URL}, nil
}

// PaymentPage backs the public /pay/:hash redirect. The hash is the
// proposal's stable public identifier, safe to embed in links.
func (s *CheckoutService) PaymentPage(ctx context.Context, publicHash string) (*paymentdomain.PaymentPage, error) {
	hash := strings.TrimSpace(publicHash)
	if hash == "" {
		return nil, proposaldomain.ErrNotFound
	}
	proposal, err := s.proposals.FindByPublicHash(ctx, s.db, hash)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, proposaldomain.ErrNotFound
	}

	page := &paymentdomain.PaymentPage{
		ProposalID: proposal.ID,
		Title:      proposal.Title,
		ClientName: proposal.ClientName,
		Value:      money.FormatCents(proposal.ValueCents),
	}
	payment, err := s.repo.FindPaymentByProposal(ctx, s.db, proposal.ID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		page.Status = payment.Status
		if payment.Status == paymentdomain.PaymentPending {
			page.PaymentURL = payment.PaymentURL
		}
	}
	return page, nil
}

func (s *CheckoutService) loadPayable(ctx context.Context, ownerID, proposalID snowflake.ID) (*proposaldomain.Proposal, error) {
	proposal, err := s.proposals.FindByID(ctx, s.db, ownerID, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, proposaldomain.ErrNotFound
	}
	switch proposal.Lifecycle {
	case proposaldomain.LifecycleSent, proposaldomain.LifecycleAccepted:
		return proposal, nil
	default:
		return nil, paymentdomain.ErrProposalNotPayable
	}
}

func link(p *paymentdomain.Payment) *paymentdomain.PaymentLink {
	return &paymentdomain.PaymentLink{
		PaymentID:  p.ID,
		ProposalID: p.ProposalID,
		URL:        p.PaymentURL,
		Status:     p.Status,
	}
}
