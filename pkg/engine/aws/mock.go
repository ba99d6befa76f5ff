package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/shopspring/decimal"
)

// Mock spend levels. The last seven days ramp through a 2.5x spike on day four
// and a 0.4x drop on day six; every other day spends the baseline.
var (
	mockWeek          = []float64{100, 100, 100, 250, 100, 40, 100}
	mockBaselineDaily = 90.0
	mockHourly        = 7.5
	mockHourlySpike   = 32.5
	mockSpikeHour     = 5
)

// mockShares split a bucket across the breakdown dimensions. Shares below one
// leave spend unattributed.
var mockShares = map[string][]struct {
	key   string
	share float64
}{
	"REGION":        {{"us-east-1", 0.6}, {"us-west-1", 0.4}},
	"INSTANCE_TYPE": {{"t2.micro", 0.6}, {"c5.large", 0.3}},
	"job":           {{"etl", 0.5}, {"", 0.2}},
}

// MockSource serves deterministic costs, instances and utilisation relative to
// its clock. It implements every engine source interface.
type MockSource struct {
	Now    func() time.Time
	Period time.Duration
}

func NewMockSource(now func() time.Time, period time.Duration) *MockSource {
	if now == nil {
		now = time.Now
	}
	if period <= 0 {
		period = 5 * time.Minute
	}
	return &MockSource{Now: now, Period: period}
}

// FetchCostRecords buckets the window the way Cost Explorer would: whole days
// with an exclusive end date, or whole hours for hourly queries.
func (m *MockSource) FetchCostRecords(ctx context.Context, w engine.Window, g analytics.Granularity, gb *engine.GroupBy) ([]analytics.CostRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []analytics.CostRecord
	switch g {
	case analytics.GranularityHourly:
		now := m.Now().UTC().Truncate(time.Hour)
		for t := w.Start.UTC().Truncate(time.Hour); t.Before(w.End.UTC().Truncate(time.Hour)); t = t.Add(time.Hour) {
			v := mockHourly
			if int(now.Sub(t)/time.Hour) == mockSpikeHour {
				v = mockHourlySpike
			}
			records = append(records, mockRecord(t.Format(hourLayout), t.Add(time.Hour).Format(hourLayout), v, gb))
		}
	case analytics.GranularityMonthly:
		months := make(map[string]float64)
		var order []string
		for _, d := range days(w) {
			key := d.Format("2006-01") + "-01"
			if _, ok := months[key]; !ok {
				order = append(order, key)
			}
			months[key] += m.dailySpend(d)
		}
		for _, key := range order {
			start, _ := time.Parse(dateLayout, key)
			records = append(records, mockRecord(key, start.AddDate(0, 1, 0).Format(dateLayout), months[key], gb))
		}
	default:
		for _, d := range days(w) {
			records = append(records, mockRecord(d.Format(dateLayout), d.AddDate(0, 0, 1).Format(dateLayout), m.dailySpend(d), gb))
		}
	}
	return records, nil
}

func (m *MockSource) dailySpend(d time.Time) float64 {
	today := truncateDay(m.Now().UTC())
	offset := int(today.Sub(d).Hours() / 24)
	if offset >= 1 && offset <= len(mockWeek) {
		return mockWeek[len(mockWeek)-offset]
	}
	return mockBaselineDaily
}

// ListInstances returns six instances, each with a characteristic load pattern.
func (m *MockSource) ListInstances(ctx context.Context) ([]engine.Instance, error) {
	now := m.Now().UTC()
	ago := func(h float64) time.Time { return now.Add(-time.Duration(h * float64(time.Hour))) }
	return []engine.Instance{
		{ID: "i-0abcd1234efgh5678", Region: "us-east-1", Type: "t2.micro", Name: "web-server-01", State: "running", LaunchTime: ago(11 * 24)},
		{ID: "i-2abcd1234efgh5678", Region: "us-west-2", Type: "g5.xlarge", Name: "ml-worker-01", State: "running", LaunchTime: ago(6*24 + 19)},
		{ID: "i-3abcd1234efgh5678", Region: "eu-central-1", Type: "m5.large", Name: "database-server", State: "running", LaunchTime: ago(2*24 + 2)},
		{ID: "i-4abcd1234efgh5678", Region: "us-east-1", Type: "c6i.2xlarge", Name: "compute-cluster-node", State: "running", LaunchTime: ago(3*24 + 22)},
		{ID: "i-5abcd1234efgh5678", Region: "us-west-2", Type: "t3.medium", Name: "batch-processor-01", State: "running", LaunchTime: ago(2*24 + 16)},
		{ID: "i-6abcd1234efgh5678", Region: "us-east-1", Type: "c5.large", Name: "underutilized-app-server", State: "running", LaunchTime: ago(26)},
	}, nil
}

// FetchUtilizationSamples emits one sample per period ending at the window end.
func (m *MockSource) FetchUtilizationSamples(ctx context.Context, id string, metric analytics.Metric, w engine.Window) ([]analytics.UtilizationSample, error) {
	if _, err := DefinitionFor(metric); err != nil {
		return nil, err
	}
	n := int(w.Duration() / m.Period)
	samples := make([]analytics.UtilizationSample, n)
	for i := 0; i < n; i++ {
		ts := w.End.Add(-time.Duration(n-1-i) * m.Period).UTC()
		samples[i] = analytics.UtilizationSample{
			Timestamp: ts.Format(time.RFC3339),
			Value:     mockUtilization(id, metric, i),
		}
	}
	return samples, nil
}

// mockUtilization is the value of sample i for an instance and metric.
func mockUtilization(id string, metric analytics.Metric, i int) float64 {
	switch metric {
	case analytics.MetricCPU:
		switch id {
		case "i-0abcd1234efgh5678":
			return 30 + float64(i%5)*2
		case "i-4abcd1234efgh5678":
			return 10
		case "i-5abcd1234efgh5678":
			if i%2 == 0 {
				return 25
			}
			return 85
		default:
			return 0.01
		}
	case analytics.MetricRAM:
		switch id {
		case "i-0abcd1234efgh5678":
			return 80
		case "i-2abcd1234efgh5678":
			return 85
		default:
			return 0.02
		}
	case analytics.MetricGPU:
		if id != "i-2abcd1234efgh5678" {
			return 0
		}
		if i >= 12 && i <= 14 {
			return 85
		}
		return 1
	default:
		return 10 + float64(i%4)
	}
}

func mockRecord(start, end string, total float64, gb *engine.GroupBy) analytics.CostRecord {
	amount := decimal.NewFromFloat(total)
	rec := analytics.CostRecord{
		Period: analytics.Period{Start: start, End: end},
		Total:  decimalString(amount),
	}
	if gb == nil {
		return rec
	}
	for _, s := range mockShares[gb.Key] {
		var keys []string
		if s.key != "" {
			keys = []string{s.key}
		}
		rec.Groups = append(rec.Groups, analytics.GroupAmount{
			Keys:   keys,
			Amount: decimalString(amount.Mul(decimal.NewFromFloat(s.share))),
		})
	}
	return rec
}

func decimalString(d decimal.Decimal) *string {
	s := d.StringFixed(2)
	return &s
}

// days lists the whole days of w, end date exclusive.
func days(w engine.Window) []time.Time {
	var out []time.Time
	end := truncateDay(w.End.UTC())
	for d := truncateDay(w.Start.UTC()); d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var (
	_ engine.CostSource     = (*MockSource)(nil)
	_ engine.MetricSource   = (*MockSource)(nil)
	_ engine.InstanceSource = (*MockSource)(nil)
	_ engine.CostSource     = (*CostExplorerSource)(nil)
	_ engine.MetricSource   = (*CloudWatchSource)(nil)
	_ engine.InstanceSource = (*EC2Inventory)(nil)
)

// String identifies the mock in logs.
func (m *MockSource) String() string {
	return fmt.Sprintf("mock(period=%s)", m.Period)
}
