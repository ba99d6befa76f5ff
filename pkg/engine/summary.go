package engine

import (
	"context"
	"fmt"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// CostSummary is the dashboard's cost response.
type CostSummary struct {
	TotalSpend               float64                  `json:"totalSpend"`
	TotalSpendTrend          analytics.Trend          `json:"totalSpendTrend"`
	PreviousTotalSpend       float64                  `json:"previousTotalSpend"`
	TotalSpendAnomaly        bool                     `json:"totalSpendAnomaly"`
	TotalSpendHistoryTrend   analytics.Trend          `json:"totalSpendHistoryTrend"`
	TotalSpendRecommendation analytics.Recommendation `json:"totalSpendRecommendation"`

	DailyBurn               float64                  `json:"dailyBurn"`
	DailyBurnTrend          analytics.Trend          `json:"dailyBurnTrend"`
	PreviousDailyBurn       float64                  `json:"previousDailyBurn"`
	DailyBurnAnomaly        bool                     `json:"dailyBurnAnomaly"`
	DailyBurnHistoryTrend   analytics.Trend          `json:"dailyBurnHistoryTrend"`
	DailyBurnRecommendation analytics.Recommendation `json:"dailyBurnRecommendation"`

	ProjectedMonthly               float64                  `json:"projectedMonthly"`
	ProjectedMonthlyTrend          analytics.Trend          `json:"projectedMonthlyTrend"`
	PreviousProjectedMonthly       float64                  `json:"previousProjectedMonthly"`
	ProjectedMonthlyAnomaly        bool                     `json:"projectedMonthlyAnomaly"`
	ProjectedMonthlyHistoryTrend   analytics.Trend          `json:"projectedMonthlyHistoryTrend"`
	ProjectedMonthlyRecommendation analytics.Recommendation `json:"projectedMonthlyRecommendation"`

	ByRegion []analytics.DimensionCost `json:"byRegion"`
	ByType   []analytics.DimensionCost `json:"byType"`
	ByJob    []analytics.DimensionCost `json:"byJob"`

	TotalSpendHistory       []analytics.HistoryPoint `json:"totalSpendHistory"`
	DailyBurnHistory        []analytics.HistoryPoint `json:"dailyBurnHistory"`
	ProjectedMonthlyHistory []analytics.HistoryPoint `json:"projectedMonthlyHistory"`

	TimeRange   TimeRange             `json:"timeRange"`
	Granularity analytics.Granularity `json:"granularity"`
	Windows     Windows               `json:"windows"`
	Mock        bool                  `json:"mock"`
}

// KPI is one headline figure of a summary, flattened for display.
type KPI struct {
	Kind           analytics.SpendKind
	Value          float64
	Previous       float64
	Trend          analytics.Trend
	HistoryTrend   analytics.Trend
	Anomaly        bool
	Recommendation analytics.Recommendation
}

// KPIs returns the three headline figures in display order.
func (s *CostSummary) KPIs() []KPI {
	return []KPI{
		{analytics.SpendTotal, s.TotalSpend, s.PreviousTotalSpend, s.TotalSpendTrend, s.TotalSpendHistoryTrend, s.TotalSpendAnomaly, s.TotalSpendRecommendation},
		{analytics.SpendDailyBurn, s.DailyBurn, s.PreviousDailyBurn, s.DailyBurnTrend, s.DailyBurnHistoryTrend, s.DailyBurnAnomaly, s.DailyBurnRecommendation},
		{analytics.SpendProjectedMonthly, s.ProjectedMonthly, s.PreviousProjectedMonthly, s.ProjectedMonthlyTrend, s.ProjectedMonthlyHistoryTrend, s.ProjectedMonthlyAnomaly, s.ProjectedMonthlyRecommendation},
	}
}

type costQuery struct {
	name        string
	window      Window
	granularity analytics.Granularity
	groupBy     *GroupBy
}

// ComputeCostSummary fetches every window the summary needs concurrently and
// folds the results. A failed fetch fails the whole summary; nothing is retried.
func (e *Engine) ComputeCostSummary(ctx context.Context, tr TimeRange) (*CostSummary, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.ComputeCostSummary")
	defer span.End()
	span.SetAttributes(attribute.String("cost.time_range", string(tr)))

	if e.Costs == nil {
		return nil, ErrNoCostSource
	}

	windows, err := ResolveWindows(tr, e.now())
	if err != nil {
		return nil, err
	}

	queries := []costQuery{
		{"current", windows.Current, windows.Granularity, nil},
		{"preceding", windows.Preceding, windows.Granularity, nil},
		{"same_day_last_month", windows.SameDayLastMonth, analytics.GranularityDaily, nil},
		{"prior_month", windows.PriorMonth, analytics.GranularityMonthly, nil},
		{"by_region", windows.Current, windows.Granularity, GroupByRegion},
		{"by_type", windows.Current, windows.Granularity, GroupByInstanceType},
		{"by_job", windows.Current, windows.Granularity, GroupByJob},
	}
	results := make([]analytics.Aggregate, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			records, err := e.Costs.FetchCostRecords(gctx, q.window, q.granularity, q.groupBy)
			if err != nil {
				return fmt.Errorf("fetch %s costs: %w", q.name, err)
			}
			results[i] = analytics.AggregateRecords(records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cost fetch failed")
		e.Logger.Error("Cost summary failed", "time_range", tr, "error", err)
		return nil, err
	}

	current, preceding := results[0], results[1]
	sameDay, priorMonth := results[2], results[3]

	s := e.summarize(windows, current, preceding, sameDay, priorMonth)
	s.TimeRange = tr
	s.Mock = e.config.MockMode

	eps := e.config.Analytics.ResidualEpsilon
	s.ByRegion = roundCosts(analytics.WithUnattributed(results[4].ByKey, current.Total, eps))
	s.ByType = roundCosts(analytics.WithUnattributed(results[5].ByKey, current.Total, eps))
	s.ByJob = roundCosts(analytics.WithUnattributed(results[6].ByKey, current.Total, eps))

	span.SetAttributes(
		attribute.Float64("cost.total", s.TotalSpend),
		attribute.Int("cost.buckets", current.Buckets),
	)
	e.Logger.Debug("Cost summary computed", "time_range", tr, "buckets", current.Buckets, "total", s.TotalSpend)
	return s, nil
}

// summarize derives the KPIs from the fetched aggregates. Values are rounded
// only once every comparison has been made.
func (e *Engine) summarize(w Windows, current, preceding, sameDay, priorMonth analytics.Aggregate) *CostSummary {
	cfg := e.config.Analytics

	// Burn is spend per bucket, so on the hourly range it is an hourly rate.
	burn := analytics.DailyBurn(current.Total, current.Buckets)
	projected := analytics.ProjectedMonthly(burn, w.DaysInMonth)
	prevBurn := analytics.DailyBurn(preceding.Total, preceding.Buckets)
	prevProjected := analytics.ProjectedMonthly(prevBurn, w.DaysInMonth)

	burnHistory := current.History
	totalHistory := analytics.CumulativeHistory(burnHistory)
	projectedHistory := analytics.ProjectedHistory(burnHistory, w.DaysInMonth)

	s := &CostSummary{
		TotalSpend:         current.Total,
		TotalSpendTrend:    trendAgainst(current.Total, sameDay.Total),
		PreviousTotalSpend: preceding.Total,

		DailyBurn:         burn,
		DailyBurnTrend:    lastStepTrend(burnHistory),
		PreviousDailyBurn: prevBurn,

		ProjectedMonthly:         projected,
		ProjectedMonthlyTrend:    trendAgainst(projected, priorMonth.Total),
		PreviousProjectedMonthly: prevProjected,

		Granularity: w.Granularity,
		Windows:     w,
	}

	s.TotalSpendAnomaly = analytics.DetectHistorySpike(totalHistory, analytics.SpikeKindFor(analytics.SpendTotal), cfg.SpikeThreshold)
	s.DailyBurnAnomaly = analytics.DetectHistorySpike(burnHistory, analytics.SpikeKindFor(analytics.SpendDailyBurn), cfg.SpikeThreshold)
	s.ProjectedMonthlyAnomaly = analytics.DetectHistorySpike(projectedHistory, analytics.SpikeKindFor(analytics.SpendProjectedMonthly), cfg.SpikeThreshold)

	tol := cfg.HistoryTrendTolerance
	s.TotalSpendHistoryTrend = analytics.HistoryTrend(analytics.Values(totalHistory), tol)
	s.DailyBurnHistoryTrend = analytics.HistoryTrend(analytics.Values(burnHistory), tol)
	s.ProjectedMonthlyHistoryTrend = analytics.HistoryTrend(analytics.Values(projectedHistory), tol)

	bands := cfg.Recommendations
	s.TotalSpendRecommendation = analytics.RecommendWith(s.PreviousTotalSpend, s.TotalSpend, analytics.SpendTotal, bands.For(analytics.SpendTotal))
	s.DailyBurnRecommendation = analytics.RecommendWith(s.PreviousDailyBurn, s.DailyBurn, analytics.SpendDailyBurn, bands.For(analytics.SpendDailyBurn))
	s.ProjectedMonthlyRecommendation = analytics.RecommendWith(s.PreviousProjectedMonthly, s.ProjectedMonthly, analytics.SpendProjectedMonthly, bands.For(analytics.SpendProjectedMonthly))

	s.TotalSpend = analytics.Round2(s.TotalSpend)
	s.PreviousTotalSpend = analytics.Round2(s.PreviousTotalSpend)
	s.DailyBurn = analytics.Round2(s.DailyBurn)
	s.PreviousDailyBurn = analytics.Round2(s.PreviousDailyBurn)
	s.ProjectedMonthly = analytics.Round2(s.ProjectedMonthly)
	s.PreviousProjectedMonthly = analytics.Round2(s.PreviousProjectedMonthly)

	s.TotalSpendHistory = analytics.RoundHistory(totalHistory)
	s.DailyBurnHistory = analytics.RoundHistory(burnHistory)
	s.ProjectedMonthlyHistory = analytics.RoundHistory(projectedHistory)
	return s
}

// trendAgainst compares against a basis only when the basis carries spend.
func trendAgainst(current, basis float64) analytics.Trend {
	if basis <= 0 {
		return analytics.TrendNeutral
	}
	return analytics.TrendOf(current, basis)
}

// lastStepTrend compares the newest bucket with the one before it.
func lastStepTrend(h []analytics.HistoryPoint) analytics.Trend {
	n := len(h)
	if n < 2 {
		return analytics.TrendNeutral
	}
	return analytics.TrendOf(h[n-1].Value, h[n-2].Value)
}

func roundCosts(in []analytics.DimensionCost) []analytics.DimensionCost {
	for i := range in {
		in[i].Cost = analytics.Round2(in[i].Cost)
	}
	return in
}
