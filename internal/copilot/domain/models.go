package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Trigger is the per-proposal event that motivates a recommendation.
type Trigger string

const (
	TriggerStale          Trigger = "stale"
	TriggerNoReply        Trigger = "no_reply"
	TriggerGhosted        Trigger = "ghosted"
	TriggerPriceObjection Trigger = "price_objection"
	TriggerHighTicket     Trigger = "high_ticket"
)

// Intent is the coaching goal mapped from a trigger.
type Intent string

const (
	IntentFollowUp       Intent = "follow-up"
	IntentPriceObjection Intent = "price-objection-handling"
	IntentAnchorHigher   Intent = "anchor-higher-plan"
	IntentClose          Intent = "close"
	IntentBreakup        Intent = "relationship-breakup"
)

// Angle is the persuasion frame applied to an intent.
type Angle string

const (
	AngleUrgency     Angle = "urgency"
	AngleSocialProof Angle = "social-proof"
	AngleAuthority   Angle = "authority"
	AngleReciprocity Angle = "reciprocity"
	AngleScarcity    Angle = "scarcity"
	AngleCommitment  Angle = "commitment"
)

// AllAngles is the deterministic fallback pool when every preferred
// angle is cooling down.
var AllAngles = []Angle{
	AngleUrgency, AngleSocialProof, AngleAuthority,
	AngleReciprocity, AngleScarcity, AngleCommitment,
}

// AnglePreferences orders angles per intent, best first.
var AnglePreferences = map[Intent][]Angle{
	IntentFollowUp:       {AngleReciprocity, AngleSocialProof, AngleUrgency},
	IntentPriceObjection: {AngleAuthority, AngleSocialProof, AngleReciprocity},
	IntentAnchorHigher:   {AngleScarcity, AngleAuthority, AngleSocialProof},
	IntentClose:          {AngleUrgency, AngleScarcity, AngleCommitment},
	IntentBreakup:        {AngleCommitment, AngleUrgency},
}

// Recommendation is one scored coaching suggestion.
type Recommendation struct {
	ProposalID snowflake.ID `json:"proposal_id"`
	Title      string       `json:"title"`
	ClientName string       `json:"client_name"`
	ValueCents int64        `json:"value_cents"`
	DaysOpen   int          `json:"days_open"`

	Trigger Trigger `json:"trigger"`
	Intent  Intent  `json:"intent"`
	Angle   Angle   `json:"angle"`
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

// Plan is the ranked output: one primary move, up to two secondary.
type Plan struct {
	Primary   *Recommendation  `json:"primary,omitempty"`
	Secondary []Recommendation `json:"secondary"`
	Shortlist []Recommendation `json:"shortlist"`
}

type Service interface {
	Plan(ctx context.Context, ownerID snowflake.ID) (*Plan, error)
}

// Fingerprint identifies a near-identical recommendation for the
// 14-day dedup window. The angle is excluded: rotation must not make
// the same proposal re-surface inside the window.
func Fingerprint(intent Intent, client, title string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.Join([]string{
		string(intent), strings.TrimSpace(client), strings.TrimSpace(title),
	}, "|"))))
	return hex.EncodeToString(h[:])
}
