package domain

import (
	"fmt"
	"sort"
	"time"

	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
	"github.com/soloware/dealdesk/pkg/money"
)

const (
	maxInsights = 6
	maxActions  = 5
)

// Health score policy. Thresholds are fixed constants, documented
// here as policy rather than exposed as configuration.
const (
	convCritical = 10.0
	convLow      = 20.0
	convWeak     = 30.0

	pendingHigh     = 60.0
	pendingElevated = 45.0

	cancelHigh     = 25.0
	cancelElevated = 15.0

	agingOld   = 14.0
	agingStale = 7.0
)

// Compute derives the full dashboard from one owner's proposal set.
// Pure: no clock reads, no I/O.
func Compute(proposals []proposaldomain.Proposal, period Period, now time.Time) *Dashboard {
	kpis, pendingItems := aggregate(proposals, now)
	series := buildSeries(proposals, period)
	health := scoreHealth(proposals, kpis, pendingItems, now)
	insights := buildInsights(kpis, pendingItems, series)
	actions := buildActions(kpis, pendingItems)

	return &Dashboard{
		Period:   period,
		KPIs:     kpis,
		Series:   series,
		Health:   health,
		Insights: insights,
		Actions:  actions,
		Pending:  pendingItems,
		Summary:  buildSummary(kpis, health),
	}
}

func aggregate(proposals []proposaldomain.Proposal, now time.Time) (KPIs, []PendingItem) {
	var kpis KPIs
	pending := []PendingItem{}

	for i := range proposals {
		p := &proposals[i]
		kpis.Total++
		switch p.Display {
		case proposaldomain.DisplaySold:
			kpis.Sold++
			kpis.RevenueCents += p.ValueCents
		case proposaldomain.DisplayCancelled:
			kpis.Cancelled++
		default:
			kpis.Pending++
			kpis.PendingValueCents += p.ValueCents
			pending = append(pending, PendingItem{
				ProposalID: p.ID,
				Title:      p.Title,
				ClientName: p.ClientName,
				ValueCents: p.ValueCents,
				Value:      money.FormatCents(p.ValueCents),
				DaysOpen:   daysBetween(p.CreatedAt, now),
			})
		}
	}

	if kpis.Sold > 0 {
		kpis.AvgTicketCents = kpis.RevenueCents / int64(kpis.Sold)
	}
	if kpis.Total > 0 {
		kpis.ConversionRate = float64(kpis.Sold) / float64(kpis.Total) * 100
	}
	kpis.Revenue = money.FormatCents(kpis.RevenueCents)
	kpis.PendingValue = money.FormatCents(kpis.PendingValueCents)
	kpis.AvgTicket = money.FormatCents(kpis.AvgTicketCents)

	// Value descending, older first on ties.
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].ValueCents != pending[j].ValueCents {
			return pending[i].ValueCents > pending[j].ValueCents
		}
		return pending[i].DaysOpen > pending[j].DaysOpen
	})
	return kpis, pending
}

func buildSeries(proposals []proposaldomain.Proposal, period Period) []Bucket {
	byKey := map[string]*Bucket{}
	for i := range proposals {
		p := &proposals[i]
		key := BucketKey(p.CreatedAt, period)
		bucket, ok := byKey[key]
		if !ok {
			bucket = &Bucket{Key: key}
			byKey[key] = bucket
		}
		switch p.Display {
		case proposaldomain.DisplaySold:
			bucket.Sold++
			bucket.RevenueCents += p.ValueCents
		case proposaldomain.DisplayPending:
			bucket.Pending++
		}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	series := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		series = append(series, *byKey[key])
	}
	return series
}

func scoreHealth(proposals []proposaldomain.Proposal, kpis KPIs, pending []PendingItem, now time.Time) Health {
	if kpis.Total == 0 {
		return Health{Score: 0, Reasons: []string{"insufficient data"}}
	}

	score := 100
	reasons := []string{}
	penalize := func(points int, reason string) {
		score -= points
		reasons = append(reasons, reason)
	}

	switch {
	case kpis.ConversionRate < convCritical:
		penalize(30, fmt.Sprintf("conversion below %.0f%%", convCritical))
	case kpis.ConversionRate < convLow:
		penalize(18, fmt.Sprintf("conversion below %.0f%%", convLow))
	case kpis.ConversionRate < convWeak:
		penalize(10, fmt.Sprintf("conversion below %.0f%%", convWeak))
	}

	pendingRate := float64(kpis.Pending) / float64(kpis.Total) * 100
	switch {
	case pendingRate > pendingHigh:
		penalize(20, fmt.Sprintf("pending share above %.0f%%", pendingHigh))
	case pendingRate > pendingElevated:
		penalize(12, fmt.Sprintf("pending share above %.0f%%", pendingElevated))
	}

	cancelRate := float64(kpis.Cancelled) / float64(kpis.Total) * 100
	switch {
	case cancelRate > cancelHigh:
		penalize(18, fmt.Sprintf("cancellation rate above %.0f%%", cancelHigh))
	case cancelRate > cancelElevated:
		penalize(10, fmt.Sprintf("cancellation rate above %.0f%%", cancelElevated))
	}

	if len(pending) > 0 {
		totalDays := 0
		for _, item := range pending {
			totalDays += item.DaysOpen
		}
		avgDays := float64(totalDays) / float64(len(pending))
		switch {
		case avgDays > agingOld:
			penalize(14, fmt.Sprintf("pending proposals older than %.0f days on average", agingOld))
		case avgDays > agingStale:
			penalize(8, fmt.Sprintf("pending proposals older than %.0f days on average", agingStale))
		}
	}

	if kpis.RevenueCents > 0 {
		score += 4
	}
	if kpis.AvgTicketCents > 0 {
		score += 3
	}
	if !soldWithin(proposals, now, 30*24*time.Hour) {
		penalize(10, "no sales in the last 30 days")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Health{Score: score, Reasons: reasons}
}

func soldWithin(proposals []proposaldomain.Proposal, now time.Time, window time.Duration) bool {
	cutoff := now.Add(-window)
	for i := range proposals {
		p := &proposals[i]
		if p.Display != proposaldomain.DisplaySold {
			continue
		}
		when := p.PaidAt
		if when == nil {
			when = &p.UpdatedAt
		}
		if when.After(cutoff) {
			return true
		}
	}
	return false
}

func buildInsights(kpis KPIs, pending []PendingItem, series []Bucket) []Insight {
	if kpis.Total == 0 {
		return []Insight{{
			Severity: SeverityInfo,
			Title:    "No data yet",
			Message:  "Create your first proposal to start tracking results.",
		}}
	}

	insights := []Insight{}
	if kpis.ConversionRate < convCritical {
		insights = append(insights, Insight{
			Severity: SeverityCritical,
			Title:    "Very low conversion",
			Message:  fmt.Sprintf("Only %.1f%% of proposals close. Review pricing and follow-up cadence.", kpis.ConversionRate),
		})
	} else if kpis.ConversionRate < convWeak {
		insights = append(insights, Insight{
			Severity: SeverityWarning,
			Title:    "Conversion below target",
			Message:  fmt.Sprintf("Conversion sits at %.1f%%; aim above %.0f%%.", kpis.ConversionRate, convWeak),
		})
	} else if kpis.ConversionRate >= 50 {
		insights = append(insights, Insight{
			Severity: SeverityInfo,
			Title:    "Healthy conversion",
			Message:  fmt.Sprintf("%.1f%% of proposals close. Keep the current playbook.", kpis.ConversionRate),
		})
	}

	if kpis.Total > 0 {
		pendingRate := float64(kpis.Pending) / float64(kpis.Total) * 100
		if pendingRate > pendingHigh {
			insights = append(insights, Insight{
				Severity: SeverityWarning,
				Title:    "Large pending backlog",
				Message:  fmt.Sprintf("%d proposals (%.0f%%) are waiting on a decision.", kpis.Pending, pendingRate),
			})
		}
	}

	if kpis.RevenueCents == 0 {
		insights = append(insights, Insight{
			Severity: SeverityCritical,
			Title:    "No revenue realized",
			Message:  "Nothing has been sold yet. Prioritize closing the most advanced conversations.",
		})
	}

	cancelRate := float64(kpis.Cancelled) / float64(kpis.Total) * 100
	if cancelRate > cancelHigh {
		insights = append(insights, Insight{
			Severity: SeverityWarning,
			Title:    "High cancellation rate",
			Message:  fmt.Sprintf("%.0f%% of proposals get cancelled. Qualify leads earlier.", cancelRate),
		})
	}

	if len(pending) > 0 && pending[0].DaysOpen >= 7 {
		insights = append(insights, Insight{
			Severity: SeverityWarning,
			Title:    "Aging opportunity at risk",
			Message: fmt.Sprintf("%q (%s) has been open for %d days and is your biggest pending deal.",
				pending[0].Title, pending[0].Value, pending[0].DaysOpen),
		})
	}

	if trend, ok := soldTrend(series); ok {
		if trend >= 25 {
			insights = append(insights, Insight{
				Severity: SeverityInfo,
				Title:    "Sales trending up",
				Message:  fmt.Sprintf("Sold count grew %.0f%% versus the previous period.", trend),
			})
		} else if trend <= -25 {
			insights = append(insights, Insight{
				Severity: SeverityWarning,
				Title:    "Sales trending down",
				Message:  fmt.Sprintf("Sold count dropped %.0f%% versus the previous period.", -trend),
			})
		}
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return severityWeight(insights[i].Severity) > severityWeight(insights[j].Severity)
	})
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// soldTrend compares the two most recent buckets.
func soldTrend(series []Bucket) (float64, bool) {
	if len(series) < 2 {
		return 0, false
	}
	previous := series[len(series)-2].Sold
	current := series[len(series)-1].Sold
	if previous == 0 {
		return 0, false
	}
	return (float64(current) - float64(previous)) / float64(previous) * 100, true
}

func severityWeight(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}

func buildActions(kpis KPIs, pending []PendingItem) []Action {
	actions := []Action{}

	oldHighValue := 0
	for _, item := range pending {
		if item.DaysOpen >= 7 {
			oldHighValue++
		}
	}
	if oldHighValue > 0 {
		actions = append(actions, Action{
			Priority: PriorityP1,
			Title:    "Rescue aging deals",
			Message:  fmt.Sprintf("Follow up on %d pending proposals older than a week, highest value first.", oldHighValue),
		})
	}

	if kpis.Sold == 0 && kpis.Pending > 0 {
		actions = append(actions, Action{
			Priority: PriorityP1,
			Title:    "Close the first sale",
			Message:  "No proposal has closed yet. Push the most advanced pending conversation to a decision.",
		})
	}

	if kpis.ConversionRate < 15 && kpis.Pending > 0 {
		actions = append(actions, Action{
			Priority: PriorityP2,
			Title:    "Work on conversion",
			Message:  fmt.Sprintf("Conversion is %.1f%%. Revisit proposal structure and pricing on the open backlog.", kpis.ConversionRate),
		})
	}

	actions = append(actions, Action{
		Priority: PriorityP3,
		Title:    "Pipeline hygiene",
		Message:  "Review stalled proposals; cancel dead ones so metrics stay honest.",
	})

	sort.SliceStable(actions, func(i, j int) bool {
		return priorityWeight(actions[i].Priority) > priorityWeight(actions[j].Priority)
	})
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	return actions
}

func priorityWeight(p Priority) int {
	switch p {
	case PriorityP1:
		return 3
	case PriorityP2:
		return 2
	default:
		return 1
	}
}

func buildSummary(kpis KPIs, health Health) string {
	if kpis.Total == 0 {
		return "No proposals yet."
	}
	return fmt.Sprintf("%d proposals, %d sold (%.1f%% conversion), %s realized, health %d/100.",
		kpis.Total, kpis.Sold, kpis.ConversionRate, kpis.Revenue, health.Score)
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
