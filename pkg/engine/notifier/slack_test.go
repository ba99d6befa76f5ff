package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietSummary() *engine.CostSummary {
	info := analytics.Recommendation{Message: "Your total spend is stable compared to the previous period.", Severity: analytics.SeverityInfo}
	return &engine.CostSummary{
		TotalSpend:                     700,
		TotalSpendRecommendation:       info,
		DailyBurnRecommendation:        info,
		ProjectedMonthlyRecommendation: info,
		TimeRange:                      engine.Range7d,
		Granularity:                    analytics.GranularityDaily,
	}
}

func TestAlerting(t *testing.T) {
	s := quietSummary()
	assert.Empty(t, Alerting(s))

	s.DailyBurnAnomaly = true
	s.TotalSpendRecommendation.Severity = analytics.SeverityWarning
	kinds := []analytics.SpendKind{}
	for _, k := range Alerting(s) {
		kinds = append(kinds, k.Kind)
	}
	assert.Equal(t, []analytics.SpendKind{analytics.SpendTotal, analytics.SpendDailyBurn}, kinds)
}

func TestSendCostAlert(t *testing.T) {
	var got map[string]any
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewSlackClient(srv.URL, "#finops")
	ctx := context.Background()

	sent, err := client.SendCostAlert(ctx, quietSummary())
	require.NoError(t, err)
	assert.False(t, sent, "nothing to report")
	assert.Equal(t, 0, calls)

	s := quietSummary()
	s.TotalSpendAnomaly = true
	sent, err = client.SendCostAlert(ctx, s)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "#finops", got["channel"])

	blocks := got["blocks"].([]any)
	require.Len(t, blocks, 5)
	header := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	assert.Contains(t, header, "🔴")
	alert := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	assert.Contains(t, alert, "Spike detected")
}

func TestSendCostAlertErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := quietSummary()
	s.TotalSpendRecommendation.Severity = analytics.SeverityWarning

	_, err := NewSlackClient(srv.URL, "").SendCostAlert(context.Background(), s)
	assert.ErrorContains(t, err, "403")

	sent, err := NewSlackClient("", "").SendCostAlert(context.Background(), s)
	assert.NoError(t, err)
	assert.False(t, sent, "no webhook configured")
}
