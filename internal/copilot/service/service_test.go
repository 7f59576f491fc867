package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/copilot/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	proposalrepo "github.com/soloware/dealdesk/internal/proposal/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newCopilotFixture(t *testing.T) (*Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&proposaldomain.Proposal{}))

	node, err := snowflake.NewNode(4)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))

	svc := &Service{
		db:        db,
		log:       zap.NewNop(),
		clock:     fake,
		proposals: proposalrepo.Provide(),
		memory:    newRecommendationMemory(),
	}
	return svc, db, node, fake
}

func seedOpen(t *testing.T, db *gorm.DB, node *snowflake.Node, owner snowflake.ID, title string, cents int64, age time.Duration, now time.Time) *proposaldomain.Proposal {
	t.Helper()
	created := now.Add(-age)
	p := &proposaldomain.Proposal{
		ID:         node.Generate(),
		OwnerID:    owner,
		Title:      title,
		ClientName: "Cliente " + title,
		ValueCents: cents,
		Lifecycle:  proposaldomain.LifecycleSent,
		Display:    proposaldomain.DisplayPending,
		PublicHash: node.Generate().String(),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	assert.NoError(t, db.Create(p).Error)
	return p
}

func TestPlanEmptyOpenSet(t *testing.T) {
	svc, _, node, _ := newCopilotFixture(t)
	plan, err := svc.Plan(context.Background(), node.Generate())
	assert.NoError(t, err)
	assert.Nil(t, plan.Primary)
	assert.Empty(t, plan.Shortlist)
}

func TestPlanPicksPrimaryAndSecondary(t *testing.T) {
	svc, db, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	now := fake.Now()

	for i, cents := range []int64{900000, 500000, 300000, 200000, 150000, 100000} {
		seedOpen(t, db, node, owner, "Deal "+string(rune('A'+i)), cents, time.Duration(4+i)*24*time.Hour, now)
	}

	plan, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, plan.Primary)

	// 6 candidates, top 30% rounds up to 2.
	assert.Len(t, plan.Shortlist, 2)
	assert.Len(t, plan.Secondary, 1)
	assert.GreaterOrEqual(t, plan.Primary.Score, plan.Secondary[0].Score)
}

func TestPlanShortlistMinimumOne(t *testing.T) {
	svc, db, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	seedOpen(t, db, node, owner, "Unico", 100000, 4*24*time.Hour, fake.Now())

	plan, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.Len(t, plan.Shortlist, 1)
	assert.Equal(t, domain.TriggerStale, plan.Primary.Trigger)
	assert.Equal(t, domain.IntentFollowUp, plan.Primary.Intent)
}

func TestPlanDeduplicatesWithinWindow(t *testing.T) {
	svc, db, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	seedOpen(t, db, node, owner, "Repetido", 100000, 4*24*time.Hour, fake.Now())

	first, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, first.Primary)

	// Same fingerprint inside 14 days: suppressed.
	second, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.Nil(t, second.Primary)

	// Window elapsed: recommended again.
	fake.Advance(15 * 24 * time.Hour)
	third, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, third.Primary)
}

func TestGhostedTriggerShadowsStale(t *testing.T) {
	svc, db, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	seedOpen(t, db, node, owner, "Sumiu", 100000, 6*24*time.Hour, fake.Now())

	plan, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, plan.Primary)
	assert.Equal(t, domain.TriggerGhosted, plan.Primary.Trigger)
	assert.Equal(t, domain.IntentBreakup, plan.Primary.Intent)
}

func TestAngleCooldownRotatesPreferences(t *testing.T) {
	svc, _, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	now := fake.Now()

	p := proposaldomain.Proposal{ID: node.Generate(), Title: "Deal", ClientName: "C"}
	first := svc.chooseAngle(owner, domain.IntentFollowUp, p, now)
	assert.Equal(t, domain.AnglePreferences[domain.IntentFollowUp][0], first)

	svc.memory.record(owner, "fp-1", first, now)
	second := svc.chooseAngle(owner, domain.IntentFollowUp, p, now)
	assert.NotEqual(t, first, second)
	assert.Equal(t, domain.AnglePreferences[domain.IntentFollowUp][1], second)

	// After the cooldown the preferred angle comes back.
	later := now.Add(8 * 24 * time.Hour)
	assert.Equal(t, first, svc.chooseAngle(owner, domain.IntentFollowUp, p, later))
}

func TestAngleFallbackIsDeterministic(t *testing.T) {
	svc, _, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	now := fake.Now()

	for _, angle := range domain.AllAngles {
		svc.memory.record(owner, "fp-"+string(angle), angle, now)
	}

	p := proposaldomain.Proposal{ID: node.Generate(), Title: "Deal", ClientName: "C"}
	a := svc.chooseAngle(owner, domain.IntentClose, p, now)
	b := svc.chooseAngle(owner, domain.IntentClose, p, now)
	assert.Equal(t, a, b)
}

func TestMemoryCapEvictsOldest(t *testing.T) {
	memory := newRecommendationMemory()
	owner := snowflake.ID(42)
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 250; i++ {
		memory.record(owner, "fp", domain.AngleUrgency, now)
	}
	memory.mu.Lock()
	defer memory.mu.Unlock()
	assert.Len(t, memory.byOwner[owner], 200)
}

func TestHighTicketTrigger(t *testing.T) {
	svc, db, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	now := fake.Now()

	// Fresh proposals so time triggers stay silent; one far above the
	// open-set average.
	seedOpen(t, db, node, owner, "Pequeno A", 100000, 12*time.Hour, now)
	seedOpen(t, db, node, owner, "Pequeno B", 100000, 12*time.Hour, now)
	big := seedOpen(t, db, node, owner, "Grande", 900000, 12*time.Hour, now)

	plan, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, plan.Primary)
	assert.Equal(t, big.ID, plan.Primary.ProposalID)
	assert.Equal(t, domain.TriggerHighTicket, plan.Primary.Trigger)
	assert.Equal(t, domain.IntentAnchorHigher, plan.Primary.Intent)
}

func TestPriceObjectionTrigger(t *testing.T) {
	svc, db, node, fake := newCopilotFixture(t)
	owner := node.Generate()
	seedOpen(t, db, node, owner, "Cliente achou caro", 100000, 12*time.Hour, fake.Now())

	plan, err := svc.Plan(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, plan.Primary)
	assert.Equal(t, domain.TriggerPriceObjection, plan.Primary.Trigger)
	assert.Equal(t, domain.IntentPriceObjection, plan.Primary.Intent)
}
