// Package export produces flattened per-proposal records for external
// BI tools. Each row repeats its period aggregates so spreadsheets
// can pivot without joins.
package export

import (
	"context"

	"github.com/bwmarrin/snowflake"
	analyticsdomain "github.com/soloware/dealdesk/internal/analytics/domain"
	"github.com/soloware/dealdesk/internal/clock"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Record struct {
	ProposalID  snowflake.ID                 `json:"proposal_id"`
	Title       string                       `json:"title"`
	ClientName  string                       `json:"client_name"`
	Description string                       `json:"description,omitempty"`
	Value       string                       `json:"value"`
	ValueCents  int64                        `json:"value_cents"`
	Status      proposaldomain.DisplayStatus `json:"status"`
	CreatedAt   string                       `json:"created_at"`
	SignedAt    string                       `json:"signed_at,omitempty"`
	PaidAt      string                       `json:"paid_at,omitempty"`

	// Pre-joined aggregates for the row's period bucket.
	PeriodKey          string `json:"period_key"`
	PeriodSold         int    `json:"period_sold"`
	PeriodPending      int    `json:"period_pending"`
	PeriodRevenue      string `json:"period_revenue"`
	PeriodRevenueCents int64  `json:"period_revenue_cents"`
}

type Service interface {
	Records(ctx context.Context, ownerID snowflake.ID, period analyticsdomain.Period) ([]Record, error)
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Proposals proposaldomain.Repository
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	proposals proposaldomain.Repository
}

func New(p Params) Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("export.service"),
		clock:     p.Clock,
		proposals: p.Proposals,
	}
}

var Module = fx.Module("export.service",
	fx.Provide(New),
)

const timeLayout = "2006-01-02 15:04:05"

func (s *service) Records(ctx context.Context, ownerID snowflake.ID, period analyticsdomain.Period) ([]Record, error) {
	proposals, err := s.proposals.ListByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}

	dashboard := analyticsdomain.Compute(proposals, period, s.clock.Now())
	buckets := map[string]analyticsdomain.Bucket{}
	for _, bucket := range dashboard.Series {
		buckets[bucket.Key] = bucket
	}

	records := make([]Record, 0, len(proposals))
	for i := range proposals {
		p := &proposals[i]
		key := analyticsdomain.BucketKey(p.CreatedAt, period)
		bucket := buckets[key]

		record := Record{
			ProposalID:         p.ID,
			Title:              p.Title,
			ClientName:         p.ClientName,
			Description:        p.Description,
			Value:              money.FormatCents(p.ValueCents),
			ValueCents:         p.ValueCents,
			Status:             p.Display,
			CreatedAt:          p.CreatedAt.Format(timeLayout),
			PeriodKey:          key,
			PeriodSold:         bucket.Sold,
			PeriodPending:      bucket.Pending,
			PeriodRevenue:      money.FormatCents(bucket.RevenueCents),
			PeriodRevenueCents: bucket.RevenueCents,
		}
		if p.SignedAt != nil {
			record.SignedAt = p.SignedAt.Format(timeLayout)
		}
		if p.PaidAt != nil {
			record.PaidAt = p.PaidAt.Format(timeLayout)
		}
		records = append(records, record)
	}
	return records, nil
}
