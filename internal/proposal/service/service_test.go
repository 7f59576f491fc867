package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/soloware/dealdesk/internal/clock"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	paymentrepo "github.com/soloware/dealdesk/internal/payment/repository"
	"github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/internal/proposal/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newProposalFixture(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.Proposal{}, &paymentdomain.Payment{}))

	node, err := snowflake.NewNode(3)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))

	svc := &Service{
		db:       db,
		log:      zap.NewNop(),
		genID:    node,
		clock:    fake,
		repo:     repository.Provide(),
		payments: paymentrepo.Provide(),
		baseURL:  "https://app.test",
	}
	return svc, db, fake
}

func createProposal(t *testing.T, svc *Service, owner snowflake.ID) *domain.Proposal {
	t.Helper()
	proposal, err := svc.Create(context.Background(), domain.CreateRequest{
		OwnerID:    owner,
		Title:      "Site institucional",
		ClientName: "Padaria Silva",
		Value:      "2.500,00",
	})
	assert.NoError(t, err)
	return proposal
}

func signProposal(t *testing.T, svc *Service, owner snowflake.ID, proposal *domain.Proposal) string {
	t.Helper()
	link, err := svc.IssueShareLink(context.Background(), owner, proposal.ID, 0)
	assert.NoError(t, err)
	_, err = svc.SignContract(context.Background(), domain.SignRequest{
		Token:          link.Token,
		SignerName:     "Maria Silva",
		SignerDocument: "123.456.789-00",
	})
	assert.NoError(t, err)
	return link.Token
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{OwnerID: owner, ClientName: "ACME", Value: "100,00"})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = svc.Create(ctx, domain.CreateRequest{OwnerID: owner, Title: "Logo", Value: "100,00"})
	assert.ErrorIs(t, err, domain.ErrInvalidClient)

	_, err = svc.Create(ctx, domain.CreateRequest{OwnerID: owner, Title: "Logo", ClientName: "ACME", Value: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestSignContractOnlyOnce(t *testing.T) {
	svc, _, _ := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()
	proposal := createProposal(t, svc, owner)

	link, err := svc.IssueShareLink(ctx, owner, proposal.ID, 0)
	assert.NoError(t, err)

	contract, err := svc.SignContract(ctx, domain.SignRequest{
		Token:          link.Token,
		SignerName:     "Maria Silva",
		SignerDocument: "123.456.789-00",
	})
	assert.NoError(t, err)
	assert.True(t, contract.Signed)
	assert.Equal(t, domain.LifecycleAccepted, contract.Lifecycle)

	_, err = svc.SignContract(ctx, domain.SignRequest{
		Token:          link.Token,
		SignerName:     "Outra Pessoa",
		SignerDocument: "987.654.321-00",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadySigned)
}

func TestShareTokenExpiryLooksLikeMiss(t *testing.T) {
	svc, _, fake := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()
	proposal := createProposal(t, svc, owner)

	link, err := svc.IssueShareLink(ctx, owner, proposal.ID, 1)
	assert.NoError(t, err)

	_, err = svc.ViewByShareToken(ctx, link.Token)
	assert.NoError(t, err)

	// Expired and unknown tokens surface the same error.
	fake.Advance(2 * time.Hour)
	_, expiredErr := svc.ViewByShareToken(ctx, link.Token)
	assert.ErrorIs(t, expiredErr, domain.ErrShareTokenInvalid)

	_, missErr := svc.ViewByShareToken(ctx, "no-such-token")
	assert.ErrorIs(t, missErr, domain.ErrShareTokenInvalid)
	assert.Equal(t, expiredErr, missErr)
}

func TestUpdateStatusTerminalIsFrozen(t *testing.T) {
	svc, _, _ := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()
	proposal := createProposal(t, svc, owner)

	_, err := svc.UpdateStatus(ctx, owner, proposal.ID, domain.DisplayCancelled)
	assert.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, owner, proposal.ID, domain.DisplayPending)
	assert.ErrorIs(t, err, domain.ErrLifecycleTerminal)

	_, err = svc.UpdateStatus(ctx, owner, proposal.ID, domain.DisplaySold)
	assert.ErrorIs(t, err, domain.ErrLifecycleTerminal)

	// Repeating the terminal status stays idempotent.
	repeated, err := svc.UpdateStatus(ctx, owner, proposal.ID, domain.DisplayCancelled)
	assert.NoError(t, err)
	assert.Equal(t, domain.LifecycleCancelled, repeated.Lifecycle)
}

func TestMarkPaidManuallyRequiresSignature(t *testing.T) {
	svc, _, _ := newProposalFixture(t)
	owner := svc.genID.Generate()
	proposal := createProposal(t, svc, owner)

	_, err := svc.MarkPaidManually(context.Background(), owner, proposal.ID, "pix")
	assert.ErrorIs(t, err, domain.ErrNotSigned)
}

func TestMarkPaidManuallyRejectedWhenCancelled(t *testing.T) {
	svc, _, _ := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()
	proposal := createProposal(t, svc, owner)

	_, err := svc.UpdateStatus(ctx, owner, proposal.ID, domain.DisplayCancelled)
	assert.NoError(t, err)

	_, err = svc.MarkPaidManually(ctx, owner, proposal.ID, "pix")
	assert.ErrorIs(t, err, domain.ErrLifecycleTerminal)
}

func TestMarkPaidManuallyConfirmsPendingPayment(t *testing.T) {
	svc, db, fake := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()
	proposal := createProposal(t, svc, owner)
	signProposal(t, svc, owner, proposal)

	// A payment link was issued before the client paid off-platform.
	now := fake.Now()
	pending := &paymentdomain.Payment{
		ID:          svc.genID.Generate(),
		ProposalID:  proposal.ID,
		OwnerID:     owner,
		Status:      paymentdomain.PaymentPending,
		PaymentURL:  "https://mp.test/checkout/pref-1",
		AmountCents: proposal.ValueCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	assert.NoError(t, db.Create(pending).Error)

	updated, err := svc.MarkPaidManually(ctx, owner, proposal.ID, "pix direto")
	assert.NoError(t, err)
	assert.Equal(t, domain.LifecyclePaid, updated.Lifecycle)
	assert.NotNil(t, updated.PaidAt)

	var payment paymentdomain.Payment
	assert.NoError(t, db.Take(&payment, "proposal_id = ?", proposal.ID).Error)
	assert.Equal(t, paymentdomain.PaymentConfirmed, payment.Status)
	assert.Equal(t, "manual-"+proposal.ID.String(), payment.ExternalPaymentID)
}

func TestMarkPaidManuallyWithoutPaymentRowCreatesOne(t *testing.T) {
	svc, db, _ := newProposalFixture(t)
	owner := svc.genID.Generate()
	ctx := context.Background()
	proposal := createProposal(t, svc, owner)
	signProposal(t, svc, owner, proposal)

	_, err := svc.MarkPaidManually(ctx, owner, proposal.ID, "transferência")
	assert.NoError(t, err)

	var payment paymentdomain.Payment
	assert.NoError(t, db.Take(&payment, "proposal_id = ?", proposal.ID).Error)
	assert.Equal(t, paymentdomain.PaymentConfirmed, payment.Status)
	assert.Equal(t, "manual-"+proposal.ID.String(), payment.ExternalPaymentID)
	assert.Equal(t, proposal.ValueCents, payment.AmountCents)

	// The second call is idempotent and does not mint a second row.
	_, err = svc.MarkPaidManually(ctx, owner, proposal.ID, "transferência")
	assert.NoError(t, err)
	var count int64
	assert.NoError(t, db.Model(&paymentdomain.Payment{}).Where("proposal_id = ?", proposal.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
