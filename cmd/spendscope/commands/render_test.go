package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() *engine.CostSummary {
	return &engine.CostSummary{
		TotalSpend:         790,
		PreviousTotalSpend: 630,
		TotalSpendTrend:    analytics.TrendUp,
		TotalSpendAnomaly:  true,
		TotalSpendRecommendation: analytics.Recommendation{
			Message:  "Total spend increased by 25.4%",
			Severity: analytics.SeverityWarning,
			Delta:    25.4,
		},
		DailyBurn:        112.86,
		ProjectedMonthly: 3498.57,
		ByRegion: []analytics.DimensionCost{
			{Name: "us-west-1", Cost: 316},
			{Name: "us-east-1", Cost: 474},
		},
		TimeRange:   engine.Range7d,
		Granularity: analytics.GranularityDaily,
		Mock:        true,
	}
}

func TestBadgesCoverEveryEnum(t *testing.T) {
	states := []analytics.LoadState{
		analytics.LoadInsufficientData, analytics.LoadIdle, analytics.LoadBursty,
		analytics.LoadHigh, analytics.LoadRising, analytics.LoadStable,
	}
	for _, s := range states {
		b := loadBadge(s)
		assert.NotEqual(t, unknownBadge, b, "load state %s", s)
		assert.NotEmpty(t, b.Tooltip)
	}
	assert.ElementsMatch(t, states, loadOrder)

	for _, tr := range []analytics.Trend{analytics.TrendUp, analytics.TrendDown, analytics.TrendNeutral} {
		assert.NotEqual(t, unknownBadge, trendBadge(tr), "trend %s", tr)
	}
	for _, s := range []analytics.Severity{analytics.SeverityInfo, analytics.SeverityWarning, analytics.SeverityPositive} {
		assert.NotEqual(t, unknownBadge, severityBadge(s), "severity %s", s)
	}
	for _, k := range []analytics.SpendKind{analytics.SpendTotal, analytics.SpendDailyBurn, analytics.SpendProjectedMonthly} {
		assert.NotEmpty(t, kpiLabels[k])
	}

	assert.Equal(t, unknownBadge, loadBadge("sideways"))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$790.00", money(790))
	assert.Equal(t, "$0.08", money(0.0832))
	assert.Equal(t, "$3498.57", money(3498.57))
}

func TestValidateOutput(t *testing.T) {
	assert.NoError(t, validateOutput("table"))
	assert.NoError(t, validateOutput("yaml"))
	assert.NoError(t, validateOutput("csv"))
	assert.Error(t, validateOutput("xml"))
}

func TestRenderUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, formatHTML, nil, views{table: func(io.Writer) {}})
	assert.ErrorContains(t, err, "not supported")
}

func TestRenderSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, nil, views{table: func(w io.Writer) {
		renderSummary(w, sampleSummary())
	}}))

	out := buf.String()
	assert.Contains(t, out, "COSTS 7d (daily) [mock]")
	assert.Contains(t, out, "Total spend")
	assert.Contains(t, out, "$790.00")
	assert.Contains(t, out, "SPIKE")
	assert.Contains(t, out, "Total spend: Total spend increased by 25.4%")
	assert.Contains(t, out, "+25.4%")
	assert.Contains(t, out, "60.0%", "us-east-1 share")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("us-east-1")), bytes.Index(buf.Bytes(), []byte("us-west-1")),
		"breakdown rows are sorted by cost")
}

func TestEncodeJSONAndYAML(t *testing.T) {
	s := sampleSummary()

	var jsonBuf bytes.Buffer
	require.NoError(t, encode(&jsonBuf, formatJSON, s))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, 790.0, decoded["totalSpend"])

	var yamlBuf bytes.Buffer
	require.NoError(t, encode(&yamlBuf, formatYAML, s))
	assert.Contains(t, yamlBuf.String(), "totalSpend: 790")
	assert.NotContains(t, yamlBuf.String(), "{", "block style, not JSON flow style")

	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, "up", fromYAML["totalSpendTrend"])
}

func TestRenderFleet(t *testing.T) {
	report := &engine.FleetReport{
		Instances: []engine.InstanceStatus{{
			Instance: engine.Instance{ID: "i-6abcd1234efgh5678", Name: "idle", Type: "t3.micro", CostPerHour: 0.0104},
			Metrics: map[analytics.Metric]engine.MetricStatus{
				analytics.MetricCPU: {Latest: 0.01, Load: analytics.LoadClassification{State: analytics.LoadIdle}},
			},
			Uptime: "1d 2h",
			Waste:  true,
			Action: engine.ActionStop,
		}},
		Wasted:        1,
		WastedPerHour: 0.01,
	}

	var buf bytes.Buffer
	renderFleet(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "i-6abcd1234efgh5678")
	assert.Contains(t, out, "Idle")
	assert.Contains(t, out, engine.ActionStop)
	assert.Contains(t, out, "1 of 1 instances wasted, $0.01/h idle spend")
	assert.Contains(t, out, loadBadges[analytics.LoadIdle].Tooltip)
}
