package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/payment/adapters"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	paymentrepo "github.com/soloware/dealdesk/internal/payment/repository"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	proposalrepo "github.com/soloware/dealdesk/internal/proposal/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bwmarrin/snowflake"
)

// checkoutAdapter counts preference creations.
type checkoutAdapter struct {
	fakeAdapter
	created int
}

func (c *checkoutAdapter) CreateCheckout(context.Context, paymentdomain.CheckoutRequest) (*paymentdomain.Checkout, error) {
	c.created++
	return &paymentdomain.Checkout{
		PreferenceID: "pref-1",
		URL:          "https://mp.test/checkout/pref-1",
	}, nil
}

func newCheckoutFixture(t *testing.T, adapter paymentdomain.Adapter) (*CheckoutService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&proposaldomain.Proposal{},
		&paymentdomain.Payment{},
		&paymentdomain.PaymentSession{},
	))

	node, err := snowflake.NewNode(3)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC))

	return &CheckoutService{
		db:        db,
		log:       zap.NewNop(),
		genID:     node,
		clock:     fake,
		baseURL:   "https://app.test",
		registry:  adapters.NewRegistry(adapter),
		repo:      paymentrepo.Provide(),
		proposals: proposalrepo.Provide(),
		merchants: &fakeMerchants{token: "APP_USR-token"},
	}, db
}

func TestRequestPaymentLinkIsIdempotentWhilePending(t *testing.T) {
	adapter := &checkoutAdapter{fakeAdapter: fakeAdapter{name: "mercadopago"}}
	svc, db := newCheckoutFixture(t, adapter)
	proposal := seedProposal(t, db, svc.genID, proposaldomain.LifecycleSent, 250000)

	ctx := context.Background()
	first, err := svc.RequestPaymentLink(ctx, proposal.OwnerID, proposal.ID, "client@acme.test")
	assert.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentPending, first.Status)
	assert.Equal(t, "https://mp.test/checkout/pref-1", first.URL)

	second, err := svc.RequestPaymentLink(ctx, proposal.OwnerID, proposal.ID, "client@acme.test")
	assert.NoError(t, err)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, 1, adapter.created)

	var payment paymentdomain.Payment
	assert.NoError(t, db.Take(&payment, "proposal_id = ?", proposal.ID).Error)
	assert.Equal(t, int64(250000), payment.AmountCents)
}

func TestRequestPaymentLinkGatesLifecycle(t *testing.T) {
	adapter := &checkoutAdapter{fakeAdapter: fakeAdapter{name: "mercadopago"}}
	svc, db := newCheckoutFixture(t, adapter)

	draft := seedProposal(t, db, svc.genID, proposaldomain.LifecycleDraft, 50000)
	_, err := svc.RequestPaymentLink(context.Background(), draft.OwnerID, draft.ID, "")
	assert.ErrorIs(t, err, paymentdomain.ErrProposalNotPayable)

	paid := seedProposal(t, db, svc.genID, proposaldomain.LifecyclePaid, 50000)
	_, err = svc.RequestPaymentLink(context.Background(), paid.OwnerID, paid.ID, "")
	assert.ErrorIs(t, err, paymentdomain.ErrProposalNotPayable)
	assert.Equal(t, 0, adapter.created)
}

func TestRequestPaymentLinkRetriesAfterFailure(t *testing.T) {
	adapter := &checkoutAdapter{fakeAdapter: fakeAdapter{name: "mercadopago"}}
	svc, db := newCheckoutFixture(t, adapter)
	proposal := seedProposal(t, db, svc.genID, proposaldomain.LifecycleSent, 250000)

	ctx := context.Background()
	first, err := svc.RequestPaymentLink(ctx, proposal.OwnerID, proposal.ID, "")
	assert.NoError(t, err)

	var payment paymentdomain.Payment
	assert.NoError(t, db.Take(&payment, "proposal_id = ?", proposal.ID).Error)
	payment.Status = paymentdomain.PaymentFailed
	assert.NoError(t, db.Save(&payment).Error)

	// A failed payment gets a fresh preference on the same row.
	second, err := svc.RequestPaymentLink(ctx, proposal.OwnerID, proposal.ID, "")
	assert.NoError(t, err)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, paymentdomain.PaymentPending, second.Status)
	assert.Equal(t, 2, adapter.created)
}
