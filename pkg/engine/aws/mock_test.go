package aws

import (
	"context"
	"testing"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/config"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newMockEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SkipTelemetry = true
	cfg.MockMode = true

	clock := func() time.Time { return mockNow }
	src := NewMockSource(clock, cfg.Fleet.MetricPeriod)
	eng, err := engine.New(context.Background(),
		engine.WithConfig(cfg),
		engine.WithLogger(engine.DiscardLogger()),
		engine.WithClock(clock),
		engine.WithCostSource(src),
		engine.WithMetricSource(src),
		engine.WithInstanceSource(src),
	)
	require.NoError(t, err)
	return eng
}

func TestMockCostRecordsWeek(t *testing.T) {
	src := NewMockSource(func() time.Time { return mockNow }, 0)
	w := engine.Window{Start: mockNow.AddDate(0, 0, -7), End: mockNow}

	records, err := src.FetchCostRecords(context.Background(), w, analytics.GranularityDaily, nil)
	require.NoError(t, err)
	agg := analytics.AggregateRecords(records)
	assert.Equal(t, []float64{100, 100, 100, 250, 100, 40, 100}, analytics.Values(agg.History))
	assert.Equal(t, "2024-03-08", records[0].Period.Start)
	assert.Equal(t, "2024-03-15", records[6].Period.End)
}

func TestMockCostRecordsHourly(t *testing.T) {
	src := NewMockSource(func() time.Time { return mockNow }, 0)
	w := engine.Window{Start: mockNow.Add(-24 * time.Hour), End: mockNow}

	records, err := src.FetchCostRecords(context.Background(), w, analytics.GranularityHourly, engine.GroupByInstanceType)
	require.NoError(t, err)
	require.Len(t, records, 24)
	assert.True(t, analytics.DetectSpike(analytics.Values(analytics.AggregateRecords(records[:20]).History), analytics.SpikeBurnLike, analytics.DefaultSpikeThreshold))
	assert.Equal(t, "c5.large", records[0].Groups[1].Keys[0])
}

func TestMockCostRecordsMonthly(t *testing.T) {
	src := NewMockSource(func() time.Time { return mockNow }, 0)
	w := engine.Window{
		Start: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}

	records, err := src.FetchCostRecords(context.Background(), w, analytics.GranularityMonthly, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 29*90.0, analytics.ParseAmount(records[0].Total))
}

// Mock data end to end: the week's spike and drop must surface in the summary.
func TestMockCostSummary(t *testing.T) {
	eng := newMockEngine(t)

	s, err := eng.ComputeCostSummary(context.Background(), engine.Range7d)
	require.NoError(t, err)

	assert.True(t, s.Mock)
	assert.Equal(t, 790.0, s.TotalSpend)
	assert.Equal(t, 630.0, s.PreviousTotalSpend)
	assert.Equal(t, analytics.TrendUp, s.TotalSpendHistoryTrend)
	assert.True(t, s.TotalSpendAnomaly)
	assert.True(t, s.DailyBurnAnomaly)
	assert.Equal(t, analytics.TrendUp, s.DailyBurnTrend)
	assert.Equal(t, analytics.SeverityWarning, s.TotalSpendRecommendation.Severity)

	assert.Equal(t, []analytics.DimensionCost{
		{Name: "us-east-1", Cost: 474},
		{Name: "us-west-1", Cost: 316},
	}, s.ByRegion)
	assert.Equal(t, []analytics.DimensionCost{
		{Name: "t2.micro", Cost: 474},
		{Name: "c5.large", Cost: 237},
		{Name: analytics.UnattributedName, Cost: 79},
	}, s.ByType)
	assert.Equal(t, []analytics.DimensionCost{
		{Name: "etl", Cost: 395},
		{Name: analytics.UnknownKey, Cost: 158},
		{Name: analytics.UnattributedName, Cost: 237},
	}, s.ByJob)
}

func TestMockCostSummaryAllRanges(t *testing.T) {
	eng := newMockEngine(t)
	for _, tr := range engine.TimeRanges {
		t.Run(string(tr), func(t *testing.T) {
			s, err := eng.ComputeCostSummary(context.Background(), tr)
			require.NoError(t, err)
			assert.Positive(t, s.TotalSpend)
			assert.Len(t, s.TotalSpendHistory, len(s.DailyBurnHistory))
			assert.Len(t, s.ProjectedMonthlyHistory, len(s.DailyBurnHistory))
		})
	}
}

func TestMockFleetStatus(t *testing.T) {
	eng := newMockEngine(t)

	report, err := eng.FleetStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Instances, 6)

	byID := make(map[string]engine.InstanceStatus)
	for _, st := range report.Instances {
		byID[st.Instance.ID] = st
		assert.Len(t, st.Metrics[analytics.MetricCPU].Samples, 20)
	}

	web := byID["i-0abcd1234efgh5678"]
	assert.Equal(t, engine.ActionOK, web.Action)
	assert.Equal(t, analytics.LoadRising, web.Metrics[analytics.MetricCPU].Load.State)
	assert.Equal(t, "11d 0h", web.Uptime)

	ml := byID["i-2abcd1234efgh5678"]
	assert.Equal(t, analytics.LoadBursty, ml.Metrics[analytics.MetricGPU].Load.State)
	assert.Equal(t, analytics.LoadHigh, ml.Metrics[analytics.MetricRAM].Load.State)

	assert.Equal(t, analytics.LoadIdle, byID["i-3abcd1234efgh5678"].Metrics[analytics.MetricCPU].Load.State)
	assert.Equal(t, analytics.LoadStable, byID["i-4abcd1234efgh5678"].Metrics[analytics.MetricCPU].Load.State)

	batch := byID["i-5abcd1234efgh5678"]
	assert.Equal(t, analytics.LoadBursty, batch.Metrics[analytics.MetricCPU].Load.State)
	assert.Equal(t, engine.ActionUpgradeServer, batch.Action)
	assert.True(t, batch.Metrics[analytics.MetricCPU].Spike)

	idle := byID["i-6abcd1234efgh5678"]
	assert.True(t, idle.Waste)
	assert.Equal(t, engine.ActionStop, idle.Action)

	assert.Equal(t, 4, report.Wasted)
}
