package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound = errors.New("proposal_not_found")

	ErrInvalidTitle  = errors.New("invalid_title")
	ErrInvalidClient = errors.New("invalid_client")
	ErrInvalidValue  = errors.New("invalid_value")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidTTL    = errors.New("invalid_ttl")
	ErrInvalidSigner = errors.New("invalid_signer")

	// ErrShareTokenInvalid covers both unknown and expired tokens so a
	// caller cannot distinguish which secret failed.
	ErrShareTokenInvalid = errors.New("share_token_invalid")

	ErrAlreadySigned     = errors.New("contract_already_signed")
	ErrNotSigned         = errors.New("contract_not_signed")
	ErrLifecycleTerminal = errors.New("lifecycle_terminal")
)

type CreateRequest struct {
	OwnerID     snowflake.ID
	Title       string
	ClientName  string
	Description string
	// Value is the comma-decimal monetary string, e.g. "1.234,56".
	Value string
}

// ShareLink carries the raw token exactly once. Only its hash persists.
type ShareLink struct {
	ProposalID snowflake.ID `json:"proposal_id"`
	Token      string       `json:"token"`
	URL        string       `json:"url"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// PublicContract is the unauthenticated contract view resolved from a
// share token.
type PublicContract struct {
	ProposalID  snowflake.ID  `json:"proposal_id"`
	Title       string        `json:"title"`
	ClientName  string        `json:"client_name"`
	Description string        `json:"description"`
	Value       string        `json:"value"`
	Lifecycle   Lifecycle     `json:"lifecycle"`
	Display     DisplayStatus `json:"display_status"`
	Signed      bool          `json:"signed"`
	SignedAt    *time.Time    `json:"signed_at,omitempty"`
}

type SignRequest struct {
	Token          string
	SignerName     string
	SignerDocument string
	RequesterIP    string
	UserAgent      string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Proposal, error)
	List(ctx context.Context, ownerID snowflake.ID) ([]Proposal, error)
	Get(ctx context.Context, ownerID, id snowflake.ID) (*Proposal, error)

	// UpdateStatus is the legacy display-status transition. It maps the
	// requested display status onto a lifecycle transition and rejects
	// the request once the lifecycle is terminal.
	UpdateStatus(ctx context.Context, ownerID, id snowflake.ID, status DisplayStatus) (*Proposal, error)

	// IssueShareLink generates a fresh share token, stores its hash and
	// expiry, and advances a DRAFT proposal to SENT.
	IssueShareLink(ctx context.Context, ownerID, id snowflake.ID, ttlHours int) (*ShareLink, error)

	ViewByShareToken(ctx context.Context, rawToken string) (*PublicContract, error)

	// SignContract signs at most once and sets payment_released_at,
	// which gates payment initiation.
	SignContract(ctx context.Context, req SignRequest) (*PublicContract, error)

	// MarkPaidManually confirms an out-of-band payment. Requires a
	// signed contract; the amount is always the proposal's own value.
	MarkPaidManually(ctx context.Context, ownerID, id snowflake.ID, note string) (*Proposal, error)
}
