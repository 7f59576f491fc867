package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/soloware/dealdesk/internal/copilot/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Trigger thresholds and score weights are fixed policy.
const (
	staleAfter   = 3 * 24 * time.Hour
	noReplyAfter = 2 * 24 * time.Hour
	ghostedAfter = 5 * 24 * time.Hour

	highTicketFactor = 1.5

	weightValue    = 0.30
	weightUrgency  = 0.25
	weightSeverity = 0.20
	weightRisk     = 0.15
	weightEffort   = 0.10
)

var objectionKeywords = []string{"caro", "desconto", "preço", "preco", "barato", "valor alto", "orçamento apertado"}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Proposals proposaldomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	proposals proposaldomain.Repository
	memory    *recommendationMemory
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("copilot.service"),
		clock:     p.Clock,
		proposals: p.Proposals,
		memory:    newRecommendationMemory(),
	}
}

// Plan builds the coaching shortlist for one owner: detect a trigger
// per open proposal, drop anything recommended recently, pick an
// angle outside its cooldown, score, then keep the top 30% (at least
// one).
func (s *Service) Plan(ctx context.Context, ownerID snowflake.ID) (*domain.Plan, error) {
	proposals, err := s.proposals.ListByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	open := openSet(proposals)
	if len(open) == 0 {
		return &domain.Plan{Secondary: []domain.Recommendation{}, Shortlist: []domain.Recommendation{}}, nil
	}

	avgCents := avgValue(open)
	maxCents := maxValue(open)

	candidates := []domain.Recommendation{}
	for i := range open {
		p := open[i]
		trigger, ok := detectTrigger(p, now, avgCents)
		if !ok {
			continue
		}
		intent := intentFor(trigger)
		fingerprint := domain.Fingerprint(intent, p.ClientName, p.Title)
		if s.memory.seenWithin(ownerID, fingerprint, now) {
			continue
		}
		angle := s.chooseAngle(ownerID, intent, p, now)

		daysOpen := int(now.Sub(p.CreatedAt).Hours() / 24)
		candidates = append(candidates, domain.Recommendation{
			ProposalID: p.ID,
			Title:      p.Title,
			ClientName: p.ClientName,
			ValueCents: p.ValueCents,
			DaysOpen:   daysOpen,
			Trigger:    trigger,
			Intent:     intent,
			Angle:      angle,
			Score:      score(p, trigger, now, maxCents),
			Message:    coachingMessage(intent, angle, p),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ValueCents > candidates[j].ValueCents
	})

	shortlist := shortlistOf(candidates)
	for _, rec := range shortlist {
		s.memory.record(ownerID, domain.Fingerprint(rec.Intent, rec.ClientName, rec.Title), rec.Angle, now)
	}

	plan := &domain.Plan{Secondary: []domain.Recommendation{}, Shortlist: shortlist}
	if len(shortlist) > 0 {
		plan.Primary = &shortlist[0]
	}
	if len(shortlist) > 1 {
		end := len(shortlist)
		if end > 3 {
			end = 3
		}
		plan.Secondary = shortlist[1:end]
	}
	return plan, nil
}

func avgValue(proposals []proposaldomain.Proposal) int64 {
	if len(proposals) == 0 {
		return 0
	}
	var total int64
	for i := range proposals {
		total += proposals[i].ValueCents
	}
	return total / int64(len(proposals))
}

func maxValue(proposals []proposaldomain.Proposal) int64 {
	var max int64
	for i := range proposals {
		if proposals[i].ValueCents > max {
			max = proposals[i].ValueCents
		}
	}
	return max
}

func openSet(proposals []proposaldomain.Proposal) []proposaldomain.Proposal {
	open := []proposaldomain.Proposal{}
	for i := range proposals {
		if proposals[i].Display == proposaldomain.DisplayPending {
			open = append(open, proposals[i])
		}
	}
	return open
}

// detectTrigger checks conditions in fixed order; the first match
// wins. Age thresholds run longest first, so ghosted shadows stale
// and no-reply for older deals.
func detectTrigger(p proposaldomain.Proposal, now time.Time, avgCents int64) (domain.Trigger, bool) {
	age := now.Sub(p.CreatedAt)
	if age >= ghostedAfter {
		return domain.TriggerGhosted, true
	}
	if age >= staleAfter {
		return domain.TriggerStale, true
	}
	if age >= noReplyAfter {
		return domain.TriggerNoReply, true
	}
	if hasObjectionKeyword(p.Title) || hasObjectionKeyword(p.Description) {
		return domain.TriggerPriceObjection, true
	}
	if avgCents > 0 && float64(p.ValueCents) > highTicketFactor*float64(avgCents) {
		return domain.TriggerHighTicket, true
	}
	return "", false
}

func hasObjectionKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range objectionKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

func intentFor(trigger domain.Trigger) domain.Intent {
	switch trigger {
	case domain.TriggerStale:
		return domain.IntentFollowUp
	case domain.TriggerNoReply:
		return domain.IntentClose
	case domain.TriggerGhosted:
		return domain.IntentBreakup
	case domain.TriggerPriceObjection:
		return domain.IntentPriceObjection
	default:
		return domain.IntentAnchorHigher
	}
}

// chooseAngle walks the intent's preference list skipping angles the
// owner has seen inside the cooldown; when everything is cooling
// down, a stable hash of the proposal picks from the full pool.
func (s *Service) chooseAngle(ownerID snowflake.ID, intent domain.Intent, p proposaldomain.Proposal, now time.Time) domain.Angle {
	for _, angle := range domain.AnglePreferences[intent] {
		if !s.memory.angleUsedWithin(ownerID, angle, now) {
			return angle
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(p.ID.String() + "|" + string(intent)))
	return domain.AllAngles[int(h.Sum32())%len(domain.AllAngles)]
}

func score(p proposaldomain.Proposal, trigger domain.Trigger, now time.Time, maxCents int64) float64 {
	valuePart := 0.0
	if maxCents > 0 {
		valuePart = float64(p.ValueCents) / float64(maxCents) * 100
	}

	daysOpen := now.Sub(p.CreatedAt).Hours() / 24
	urgencyPart := math.Min(daysOpen/14, 1) * 100

	severityPart := triggerSeverity(trigger)
	riskPart := math.Min(daysOpen/30, 1) * 100

	// Effort by stage: a signed deal is nearly closed, a draft needs
	// the most work.
	effortPart := 30.0
	switch p.Lifecycle {
	case proposaldomain.LifecycleAccepted:
		effortPart = 100
	case proposaldomain.LifecycleSent:
		effortPart = 60
	}

	total := valuePart*weightValue +
		urgencyPart*weightUrgency +
		severityPart*weightSeverity +
		riskPart*weightRisk +
		effortPart*weightEffort
	return math.Round(total*100) / 100
}

func triggerSeverity(trigger domain.Trigger) float64 {
	switch trigger {
	case domain.TriggerGhosted:
		return 100
	case domain.TriggerStale:
		return 80
	case domain.TriggerPriceObjection:
		return 70
	case domain.TriggerNoReply:
		return 60
	default:
		return 50
	}
}

// shortlistOf keeps the top 30%, never fewer than one.
func shortlistOf(candidates []domain.Recommendation) []domain.Recommendation {
	if len(candidates) == 0 {
		return []domain.Recommendation{}
	}
	keep := int(math.Ceil(float64(len(candidates)) * 0.30))
	if keep < 1 {
		keep = 1
	}
	return candidates[:keep]
}

func coachingMessage(intent domain.Intent, angle domain.Angle, p proposaldomain.Proposal) string {
	switch intent {
	case domain.IntentFollowUp:
		return fmt.Sprintf("Retome contato com %s sobre %q usando o ângulo %s.", p.ClientName, p.Title, angle)
	case domain.IntentClose:
		return fmt.Sprintf("Proponha o fechamento de %q para %s; aposte em %s.", p.Title, p.ClientName, angle)
	case domain.IntentBreakup:
		return fmt.Sprintf("Envie a mensagem de encerramento para %s; %s costuma reabrir a conversa.", p.ClientName, angle)
	case domain.IntentPriceObjection:
		return fmt.Sprintf("Trate a objeção de preço em %q com %s antes de oferecer desconto.", p.Title, angle)
	default:
		return fmt.Sprintf("Apresente um plano superior para %s; ancore valor com %s.", p.ClientName, angle)
	}
}
