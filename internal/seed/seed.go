// Package seed bootstraps a demo workspace for local development so
// the dashboard and copilot have data to work with on first run.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"gorm.io/gorm"
)

// DemoOwnerID is the freelancer account the demo data belongs to.
// Mint a dev token for this id to browse the seeded workspace.
const DemoOwnerID = snowflake.ID(1)

// EnsureDemoData inserts sample proposals for the demo owner. It is a
// no-op when the owner already has any proposal.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&proposaldomain.Proposal{}).
			Where("owner_id = ?", DemoOwnerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(demoProposals(node, time.Now().UTC())).Error
	})
}

func demoProposals(node *snowflake.Node, now time.Time) []proposaldomain.Proposal {
	paidAt := now.AddDate(0, 0, -12)
	signedAt := now.AddDate(0, 0, -13)
	acceptedAt := now.AddDate(0, 0, -4)
	cancelledAt := now.AddDate(0, 0, -20)

	build := func(daysAgo int, title, client string, cents int64, lifecycle proposaldomain.Lifecycle) proposaldomain.Proposal {
		created := now.AddDate(0, 0, -daysAgo)
		return proposaldomain.Proposal{
			ID:         node.Generate(),
			OwnerID:    DemoOwnerID,
			Title:      title,
			ClientName: client,
			ValueCents: cents,
			Lifecycle:  lifecycle,
			Display:    lifecycle.Display(),
			PublicHash: uuid.NewString(),
			CreatedAt:  created,
			UpdatedAt:  created,
		}
	}

	draft := build(1, "Identidade visual completa", "Café Aurora", 320000, proposaldomain.LifecycleDraft)

	sent := build(8, "Site institucional", "Padaria Silva", 250000, proposaldomain.LifecycleSent)

	accepted := build(15, "Loja virtual", "Ateliê Flor", 780000, proposaldomain.LifecycleAccepted)
	accepted.SignerName = "Mariana Flor"
	accepted.SignedAt = &signedAt
	accepted.PaymentReleasedAt = &signedAt
	accepted.AcceptedAt = &acceptedAt

	paid := build(30, "Gestão de redes sociais", "Academia Corpo Livre", 180000, proposaldomain.LifecyclePaid)
	paid.SignerName = "Carlos Nunes"
	paid.SignedAt = &signedAt
	paid.PaymentReleasedAt = &signedAt
	paid.AcceptedAt = &signedAt
	paid.PaidAt = &paidAt

	cancelled := build(45, "Consultoria de SEO", "Imobiliária Horizonte", 95000, proposaldomain.LifecycleCancelled)
	cancelled.CancelledAt = &cancelledAt

	return []proposaldomain.Proposal{draft, sent, accepted, paid, cancelled}
}
