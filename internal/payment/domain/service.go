package domain

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bwmarrin/snowflake"
)

// PaymentLink is what the checkout service hands back to the caller.
type PaymentLink struct {
	PaymentID  snowflake.ID  `json:"payment_id"`
	ProposalID snowflake.ID  `json:"proposal_id"`
	URL        string        `json:"url"`
	Status     PaymentStatus `json:"status"`
}

// SessionLink is the platform-merchant counterpart of PaymentLink.
type SessionLink struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PaymentPage is the unauthenticated payment view resolved from a
// proposal's public hash.
type PaymentPage struct {
	ProposalID snowflake.ID  `json:"proposal_id"`
	Title      string        `json:"title"`
	ClientName string        `json:"client_name"`
	Value      string        `json:"value"`
	Status     PaymentStatus `json:"status"`
	PaymentURL string        `json:"payment_url,omitempty"`
}

// CheckoutService creates payment links. RequestPaymentLink is
// idempotent while a pending payment exists for the proposal.
type CheckoutService interface {
	RequestPaymentLink(ctx context.Context, ownerID, proposalID snowflake.ID, payerEmail string) (*PaymentLink, error)
	CreateProposalSession(ctx context.Context, ownerID, proposalID snowflake.ID, payerEmail string) (*SessionLink, error)
	CreateSubscriptionSession(ctx context.Context, ownerID snowflake.ID, plan, email string) (*SessionLink, error)
	// PaymentPage resolves a proposal by its public hash for the
	// hosted payment page redirect.
	PaymentPage(ctx context.Context, publicHash string) (*PaymentPage, error)
}

// WebhookResult reports how a delivery was handled.
type WebhookResult struct {
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate"`
	Ignored   bool   `json:"ignored"`
	Reason    string `json:"reason,omitempty"`
}

// ReconcileService ingests provider webhooks and settles proposal
// lifecycles from them.
type ReconcileService interface {
	IngestWebhook(ctx context.Context, provider string, headers http.Header, query url.Values, body []byte) (*WebhookResult, error)
}
