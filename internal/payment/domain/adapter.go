package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidSignature   = errors.New("payment: invalid webhook signature")
	ErrInvalidPayload     = errors.New("payment: malformed webhook payload")
	ErrEventIgnored       = errors.New("payment: event type not handled")
	ErrProviderNotFound   = errors.New("payment: provider not registered")
	ErrInvalidConfig      = errors.New("payment: invalid provider config")
	ErrUpstream           = errors.New("payment: provider request failed")
	ErrInvalidReference   = errors.New("payment: invalid external reference")
	ErrDuplicateDelivery  = errors.New("payment: duplicate webhook delivery")
	ErrPaymentNotFound    = errors.New("payment: not found")
	ErrProposalNotPayable = errors.New("payment: proposal not in a payable state")
)

// EventKind is the provider-neutral classification of an incoming
// webhook delivery after parsing.
type EventKind string

const (
	EventPaymentConfirmed   EventKind = "payment.confirmed"
	EventPaymentFailed      EventKind = "payment.failed"
	EventSessionExpired     EventKind = "session.expired"
	EventSubscriptionChange EventKind = "subscription.change"
)

// WebhookEvent is the canonical form every adapter normalizes its
// deliveries into. RequestID identifies a single delivery attempt for
// replay dedup. When NeedsFetch is set the delivery only carries a
// payment id and the current status must be fetched from the provider.
type WebhookEvent struct {
	Provider  string
	RequestID string
	Kind      EventKind

	ExternalPaymentID string
	SessionID         string
	SubscriptionID    string
	Reference         string
	AmountCents       int64
	Currency          string
	NeedsFetch        bool

	// OwnerHint is routing metadata carried on the notification URL
	// for providers whose deliveries need an owner-scoped fetch. It is
	// never trusted for authorization, only for credential lookup; the
	// fetched reference is still verified against a fresh row.
	OwnerHint snowflake.ID

	// Subscription change details, when Kind is EventSubscriptionChange.
	SubscriptionStatus string
	PriceID            string
	CustomerID         string
	PeriodEnd          int64
}

// CheckoutRequest describes the payment link to create. OwnerToken is
// the delegated credential for providers that charge on the
// freelancer's own account; platform-merchant providers ignore it.
type CheckoutRequest struct {
	OwnerID     snowflake.ID
	ProposalID  snowflake.ID
	Reference   string
	Title       string
	AmountCents int64
	Currency    string
	PayerEmail  string
	SuccessURL  string
	CancelURL   string
	NotifyURL   string
	OwnerToken  string
	Mode        SessionMode
	PriceID     string
	Metadata    map[string]string
}

// Checkout is the provider's answer to CheckoutRequest.
type Checkout struct {
	PreferenceID string
	SessionID    string
	URL          string
}

// FetchedPayment is the provider's authoritative view of a payment,
// used when a webhook delivery requires a follow-up fetch.
type FetchedPayment struct {
	ExternalPaymentID string
	Status            PaymentStatus
	Reference         string
	AmountCents       int64
	Currency          string
}

// Adapter is the per-provider payment integration. VerifyWebhook must
// reject before ParseEvent runs; both receive headers and query so
// providers that sign over query parameters can be supported.
type Adapter interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	VerifyWebhook(headers http.Header, query url.Values, body []byte) error
	ParseEvent(headers http.Header, query url.Values, body []byte) (*WebhookEvent, error)
	FetchPaymentStatus(ctx context.Context, externalPaymentID, ownerToken string) (*FetchedPayment, error)
}

// EncodeReference builds the external reference attached to every
// checkout. The trailing fragment of the public hash is a routing
// hint only; reconciliation always re-verifies against a fresh lookup.
func EncodeReference(ownerID, proposalID snowflake.ID, publicHash string) string {
	frag := publicHash
	if len(frag) > 8 {
		frag = frag[:8]
	}
	return fmt.Sprintf("%d:%d:%s", ownerID, proposalID, frag)
}

// ParseReference splits an external reference back into its parts.
func ParseReference(ref string) (ownerID, proposalID snowflake.ID, frag string, err error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return 0, 0, "", ErrInvalidReference
	}
	o, err := snowflake.ParseString(parts[0])
	if err != nil {
		return 0, 0, "", ErrInvalidReference
	}
	p, err := snowflake.ParseString(parts[1])
	if err != nil {
		return 0, 0, "", ErrInvalidReference
	}
	if parts[2] == "" {
		return 0, 0, "", ErrInvalidReference
	}
	return o, p, parts[2], nil
}
