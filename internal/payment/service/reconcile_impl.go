package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/cache"
	"github.com/soloware/dealdesk/internal/clock"
	merchantdomain "github.com/soloware/dealdesk/internal/merchant/domain"
	"github.com/soloware/dealdesk/internal/observability/metrics"
	"github.com/soloware/dealdesk/internal/payment/adapters"
	stripeadapter "github.com/soloware/dealdesk/internal/payment/adapters/stripe"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	subscriptiondomain "github.com/soloware/dealdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Replayed deliveries inside this window are acked without effect.
const dedupTTL = 10 * time.Minute

type ReconcileParams struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cache         cache.Cache
	Registry      *adapters.Registry
	Repo          paymentdomain.Repository
	Proposals     proposaldomain.Repository
	Merchants     merchantdomain.Service
	Subscriptions subscriptiondomain.Service
	Stripe        *stripeadapter.Adapter `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
}

type ReconcileService struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	cache         cache.Cache
	registry      *adapters.Registry
	repo          paymentdomain.Repository
	proposals     proposaldomain.Repository
	merchants     merchantdomain.Service
	subscriptions subscriptiondomain.Service
	stripe        *stripeadapter.Adapter
	metrics       *metrics.Metrics
}

func NewReconcile(p ReconcileParams) paymentdomain.ReconcileService {
	return &ReconcileService{
		db:            p.DB,
		log:           p.Log.Named("payment.reconcile"),
		genID:         p.GenID,
		clock:         p.Clock,
		cache:         p.Cache,
		registry:      p.Registry,
		repo:          p.Repo,
		proposals:     p.Proposals,
		merchants:     p.Merchants,
		subscriptions: p.Subscriptions,
		stripe:        p.Stripe,
		metrics:       p.Metrics,
	}
}

// IngestWebhook settles one provider delivery. Signature failures are
// the only hard rejections; everything routable is acked so providers
// stop retrying, with unroutable or mismatched deliveries recorded as
// ignored rather than errored.
func (s *ReconcileService) IngestWebhook(ctx context.Context, provider string, headers http.Header, query url.Values, body []byte) (*paymentdomain.WebhookResult, error) {
	adapter, err := s.registry.Adapter(provider)
	if err != nil {
		return nil, err
	}
	if err := adapter.VerifyWebhook(headers, query, body); err != nil {
		return nil, err
	}

	event, err := adapter.ParseEvent(headers, query, body)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return &paymentdomain.WebhookResult{Ignored: true, Reason: "event_type"}, nil
		}
		return nil, err
	}

	dedupKey := fmt.Sprintf("webhook:%s:%s", event.Provider, event.RequestID)
	fresh, err := s.cache.Add(ctx, dedupKey, "1", dedupTTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &paymentdomain.WebhookResult{Duplicate: true}, nil
	}

	switch event.Kind {
	case paymentdomain.EventSubscriptionChange:
		return s.applySubscriptionChange(ctx, event)
	case paymentdomain.EventPaymentFailed:
		return s.applyFailure(ctx, event)
	case paymentdomain.EventSessionExpired:
		return s.applySessionExpiry(ctx, event)
	case paymentdomain.EventPaymentConfirmed:
		if event.NeedsFetch {
			return s.confirmFetched(ctx, event, adapter)
		}
		return s.confirmSession(ctx, event)
	default:
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "event_type"}, nil
	}
}

// confirmFetched handles delegated-merchant notifications: the
// delivery only names a payment id, so the settled state is fetched
// under the owner's credential and verified against a fresh row.
func (s *ReconcileService) confirmFetched(ctx context.Context, event *paymentdomain.WebhookEvent, adapter paymentdomain.Adapter) (*paymentdomain.WebhookResult, error) {
	if event.OwnerHint == 0 {
		s.log.Warn("notification without owner routing", zap.String("provider", event.Provider))
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}

	ownerToken, err := s.merchants.AccessToken(ctx, event.OwnerHint)
	if err != nil {
		if errors.Is(err, merchantdomain.ErrNotConnected) {
			return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
		}
		return nil, err
	}

	fetched, err := adapter.FetchPaymentStatus(ctx, event.ExternalPaymentID, ownerToken)
	if err != nil {
		return nil, err
	}

	ownerID, proposalID, _, err := paymentdomain.ParseReference(fetched.Reference)
	if err != nil || ownerID != event.OwnerHint {
		s.log.Warn("unroutable payment reference",
			zap.String("provider", event.Provider),
			zap.String("reference", fetched.Reference),
		)
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}

	switch fetched.Status {
	case paymentdomain.PaymentConfirmed:
		return s.settleConfirmed(ctx, event.Provider, ownerID, proposalID, fetched.ExternalPaymentID, fetched.AmountCents)
	case paymentdomain.PaymentFailed:
		return s.settleFailed(ctx, proposalID, fetched.ExternalPaymentID)
	default:
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "still_pending"}, nil
	}
}

// confirmSession handles platform-merchant checkout completions.
func (s *ReconcileService) confirmSession(ctx context.Context, event *paymentdomain.WebhookEvent) (*paymentdomain.WebhookResult, error) {
	session, err := s.repo.FindSessionByExternalID(ctx, s.db, event.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.log.Warn("completed session not found", zap.String("session_id", event.SessionID))
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}

	now := s.clock.Now()
	session.Status = paymentdomain.SessionPaid
	session.PaymentIntentID = event.ExternalPaymentID
	session.SubscriptionID = event.SubscriptionID
	session.UpdatedAt = now
	if err := s.repo.UpdateSession(ctx, s.db, session); err != nil {
		return nil, err
	}

	if session.Mode == paymentdomain.SessionModeSubscription && event.SubscriptionID != "" {
		plan := ""
		if raw, ok := session.Metadata["plan"]; ok {
			plan, _ = raw.(string)
		}
		if _, err := s.subscriptions.Register(ctx, session.OwnerID, event.SubscriptionID, event.CustomerID, plan, ""); err != nil {
			return nil, err
		}
		return &paymentdomain.WebhookResult{Handled: true}, nil
	}

	if session.ProposalID == nil {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}
	return s.settleConfirmed(ctx, event.Provider, session.OwnerID, *session.ProposalID, event.ExternalPaymentID, event.AmountCents)
}

// settleConfirmed is the single path that marks a proposal paid from
// a provider event. The proposal is re-read inside the transaction;
// amount mismatches are non-matches, not errors, and CONFIRMED is
// never downgraded.
func (s *ReconcileService) settleConfirmed(ctx context.Context, provider string, ownerID, proposalID snowflake.ID, externalPaymentID string, amountCents int64) (*paymentdomain.WebhookResult, error) {
	var result paymentdomain.WebhookResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		proposal, err := s.proposals.FindByIDAny(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if proposal == nil || proposal.OwnerID != ownerID {
			result = paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}
			return nil
		}
		if amountCents > 0 && amountCents != proposal.ValueCents {
			s.log.Warn("payment amount mismatch",
				zap.String("proposal_id", proposalID.String()),
				zap.Int64("expected_cents", proposal.ValueCents),
				zap.Int64("received_cents", amountCents),
			)
			result = paymentdomain.WebhookResult{Ignored: true, Reason: "amount_mismatch"}
			return nil
		}

		now := s.clock.Now()
		payment, err := s.repo.FindPaymentByProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if payment != nil && payment.Status == paymentdomain.PaymentConfirmed {
			result = paymentdomain.WebhookResult{Handled: true, Duplicate: true}
			return nil
		}
		if payment == nil {
			payment = &paymentdomain.Payment{
				ID:          s.genID.Generate(),
				ProposalID:  proposalID,
				OwnerID:     ownerID,
				AmountCents: proposal.ValueCents,
				CreatedAt:   now,
			}
			payment.Status = paymentdomain.PaymentConfirmed
			payment.ExternalPaymentID = externalPaymentID
			payment.UpdatedAt = now
			if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
				return err
			}
		} else {
			payment.Status = paymentdomain.PaymentConfirmed
			payment.ExternalPaymentID = externalPaymentID
			payment.UpdatedAt = now
			if err := s.repo.UpdatePayment(ctx, tx, payment); err != nil {
				return err
			}
		}

		if proposal.Lifecycle == proposaldomain.LifecycleCancelled {
			// Money arrived for a cancelled proposal; keep the payment
			// record but leave the lifecycle alone for manual review.
			s.log.Warn("payment confirmed for cancelled proposal",
				zap.String("proposal_id", proposalID.String()),
			)
			result = paymentdomain.WebhookResult{Handled: true, Reason: "proposal_cancelled"}
			return nil
		}
		if proposal.Lifecycle != proposaldomain.LifecyclePaid {
			proposal.Lifecycle = proposaldomain.LifecyclePaid
			proposal.Display = proposaldomain.LifecyclePaid.Display()
			proposal.PaidAt = &now
			if proposal.AcceptedAt == nil {
				proposal.AcceptedAt = &now
			}
			proposal.UpdatedAt = now
			if err := s.proposals.Update(ctx, tx, proposal); err != nil {
				return err
			}
		}
		result = paymentdomain.WebhookResult{Handled: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Handled && !result.Duplicate {
		if s.metrics != nil {
			s.metrics.PaymentsConfirmed.WithLabelValues(provider).Inc()
		}
		s.log.Info("payment reconciled",
			zap.String("proposal_id", proposalID.String()),
			zap.String("external_payment_id", externalPaymentID),
		)
	}
	return &result, nil
}

// settleFailed records a failure without ever downgrading a
// confirmation that won an earlier race.
func (s *ReconcileService) settleFailed(ctx context.Context, proposalID snowflake.ID, externalPaymentID string) (*paymentdomain.WebhookResult, error) {
	payment, err := s.repo.FindPaymentByProposal(ctx, s.db, proposalID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}
	if payment.Status == paymentdomain.PaymentConfirmed {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "already_confirmed"}, nil
	}

	payment.Status = paymentdomain.PaymentFailed
	payment.ExternalPaymentID = externalPaymentID
	payment.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdatePayment(ctx, s.db, payment); err != nil {
		return nil, err
	}
	return &paymentdomain.WebhookResult{Handled: true}, nil
}

func (s *ReconcileService) applyFailure(ctx context.Context, event *paymentdomain.WebhookEvent) (*paymentdomain.WebhookResult, error) {
	payment, err := s.repo.FindPaymentByExternalID(ctx, s.db, event.ExternalPaymentID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		return s.settleFailed(ctx, payment.ProposalID, event.ExternalPaymentID)
	}

	session, err := s.repo.FindSessionByExternalID(ctx, s.db, event.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}
	if session.Status == paymentdomain.SessionPaid {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "already_confirmed"}, nil
	}
	session.Status = paymentdomain.SessionFailed
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateSession(ctx, s.db, session); err != nil {
		return nil, err
	}
	return &paymentdomain.WebhookResult{Handled: true}, nil
}

func (s *ReconcileService) applySessionExpiry(ctx context.Context, event *paymentdomain.WebhookEvent) (*paymentdomain.WebhookResult, error) {
	session, err := s.repo.FindSessionByExternalID(ctx, s.db, event.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
	}
	if session.Status == paymentdomain.SessionPaid {
		return &paymentdomain.WebhookResult{Ignored: true, Reason: "already_confirmed"}, nil
	}
	session.Status = paymentdomain.SessionExpired
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateSession(ctx, s.db, session); err != nil {
		return nil, err
	}
	return &paymentdomain.WebhookResult{Handled: true}, nil
}

func (s *ReconcileService) applySubscriptionChange(ctx context.Context, event *paymentdomain.WebhookEvent) (*paymentdomain.WebhookResult, error) {
	plan := ""
	if s.stripe != nil && event.PriceID != "" {
		plan = s.stripe.PlanForPrice(event.PriceID)
	}
	_, err := s.subscriptions.ApplyChange(ctx, subscriptiondomain.Change{
		ExternalID: event.SubscriptionID,
		CustomerID: event.CustomerID,
		Status:     event.SubscriptionStatus,
		Plan:       plan,
		PriceID:    event.PriceID,
		PeriodEnd:  event.PeriodEnd,
	})
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrUnroutable) {
			return &paymentdomain.WebhookResult{Ignored: true, Reason: "unroutable"}, nil
		}
		return nil, err
	}
	return &paymentdomain.WebhookResult{Handled: true}, nil
}
