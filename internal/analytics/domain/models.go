package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidPeriod = errors.New("analytics: invalid period")

// Period selects the time-series bucketing.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

const (
	// PendingLimitDefault applies when no cap is requested; requests
	// outside [PendingLimitMin, PendingLimitMax] are clamped.
	PendingLimitDefault = 10
	PendingLimitMin     = 1
	PendingLimitMax     = 50
)

type KPIs struct {
	Total     int `json:"total"`
	Sold      int `json:"sold"`
	Pending   int `json:"pending"`
	Cancelled int `json:"cancelled"`

	RevenueCents      int64   `json:"revenue_cents"`
	Revenue           string  `json:"revenue"`
	PendingValueCents int64   `json:"pending_value_cents"`
	PendingValue      string  `json:"pending_value"`
	AvgTicketCents    int64   `json:"avg_ticket_cents"`
	AvgTicket         string  `json:"avg_ticket"`
	ConversionRate    float64 `json:"conversion_rate"`
}

// Bucket is one calendar period of the time series. Key is "2006-01"
// for monthly and "2006-W05" for ISO weeks.
type Bucket struct {
	Key          string `json:"key"`
	Sold         int    `json:"sold"`
	Pending      int    `json:"pending"`
	RevenueCents int64  `json:"revenue_cents"`
}

type Health struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Insight struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

type Action struct {
	Priority Priority `json:"priority"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// PendingItem is one row of the value-ranked pending list.
type PendingItem struct {
	ProposalID snowflake.ID `json:"proposal_id"`
	Title      string       `json:"title"`
	ClientName string       `json:"client_name"`
	ValueCents int64        `json:"value_cents"`
	Value      string       `json:"value"`
	DaysOpen   int          `json:"days_open"`
}

type Dashboard struct {
	Period   Period        `json:"period"`
	KPIs     KPIs          `json:"kpis"`
	Series   []Bucket      `json:"series"`
	Health   Health        `json:"health"`
	Insights []Insight     `json:"insights"`
	Actions  []Action      `json:"actions"`
	Pending  []PendingItem `json:"pending"`
	Summary  string        `json:"summary"`
}

// Service reads the owner's proposal set and derives the dashboard.
// Slice accessors exist so narrow endpoints don't serialize the whole
// snapshot.
type Service interface {
	Dashboard(ctx context.Context, ownerID snowflake.ID, period Period) (*Dashboard, error)
	KPIs(ctx context.Context, ownerID snowflake.ID, period Period) (*KPIs, error)
	Charts(ctx context.Context, ownerID snowflake.ID, period Period) ([]Bucket, error)
	Health(ctx context.Context, ownerID snowflake.ID) (*Health, error)
	Insights(ctx context.Context, ownerID snowflake.ID, period Period) ([]Insight, error)
	Actions(ctx context.Context, ownerID snowflake.ID) ([]Action, error)
	PendingRanked(ctx context.Context, ownerID snowflake.ID, limit int) ([]PendingItem, error)
	Summary(ctx context.Context, ownerID snowflake.ID, period Period) (string, error)
}

// ParsePeriod normalizes the period query parameter; empty means
// monthly.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case "", PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// ClampLimit bounds a requested result-count cap.
func ClampLimit(limit int) int {
	if limit == 0 {
		return PendingLimitDefault
	}
	if limit < PendingLimitMin {
		return PendingLimitMin
	}
	if limit > PendingLimitMax {
		return PendingLimitMax
	}
	return limit
}

// BucketKey maps a timestamp to its series bucket.
func BucketKey(t time.Time, period Period) string {
	if period == PeriodWeekly {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return t.Format("2006-01")
}
