package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Lifecycle is the authoritative proposal stage. PAID and CANCELLED are
// absorbing; no operation moves a proposal out of them.
type Lifecycle string

const (
	LifecycleDraft     Lifecycle = "DRAFT"
	LifecycleSent      Lifecycle = "SENT"
	LifecycleAccepted  Lifecycle = "ACCEPTED"
	LifecyclePaid      Lifecycle = "PAID"
	LifecycleCancelled Lifecycle = "CANCELLED"
)

// DisplayStatus is the coarse status the dashboard and BI exports show.
// It is a projection of Lifecycle, never written independently.
type DisplayStatus string

const (
	DisplayPending   DisplayStatus = "pending"
	DisplaySold      DisplayStatus = "sold"
	DisplayCancelled DisplayStatus = "cancelled"
)

// Display projects a lifecycle onto its display status. The stored
// display column is always written through this function, which removes
// the historical possibility of the two fields diverging.
func (l Lifecycle) Display() DisplayStatus {
	switch l {
	case LifecyclePaid:
		return DisplaySold
	case LifecycleCancelled:
		return DisplayCancelled
	default:
		return DisplayPending
	}
}

// Terminal reports whether no further lifecycle transition is allowed.
func (l Lifecycle) Terminal() bool {
	return l == LifecyclePaid || l == LifecycleCancelled
}

type Proposal struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OwnerID     snowflake.ID `json:"owner_id" gorm:"not null;index"`
	Title       string       `json:"title" gorm:"type:text;not null"`
	ClientName  string       `json:"client_name" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`

	// ValueCents is the monetary value in integer minor units. The
	// comma-decimal wire format is parsed at the boundary.
	ValueCents int64 `json:"value_cents" gorm:"not null"`

	Lifecycle Lifecycle     `json:"lifecycle" gorm:"type:text;not null"`
	Display   DisplayStatus `json:"display_status" gorm:"column:display_status;type:text;not null"`

	// ShareTokenHash stores only the SHA-256 of the share token; the
	// raw token is returned once at issuance and never retrievable.
	ShareTokenHash      string     `json:"-" gorm:"type:text;index"`
	ShareTokenExpiresAt *time.Time `json:"-"`

	// PublicHash is the stable identifier embedded in payment-page
	// URLs. It is not a secret grant like the share token and the two
	// must never be interchanged.
	PublicHash string `json:"public_hash" gorm:"type:text;uniqueIndex"`

	SignerName        string     `json:"signer_name,omitempty" gorm:"type:text"`
	SignatureHash     string     `json:"-" gorm:"type:text"`
	SignedAt          *time.Time `json:"signed_at,omitempty"`
	PaymentReleasedAt *time.Time `json:"payment_released_at,omitempty"`

	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Proposal) TableName() string { return "proposals" }

// Signed reports whether the contract has been signed. Signature fields
// are set at most once.
func (p *Proposal) Signed() bool {
	return p.SignedAt != nil
}
