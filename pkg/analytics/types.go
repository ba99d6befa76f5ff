// Package analytics turns raw billing and utilisation records into the signals the
// dashboard displays: totals, trends, spike flags, load regimes and recommendations.
//
// Everything in this package is a pure function over in-memory values. Nothing here
// performs I/O or holds state between calls, so callers may invoke it concurrently.
package analytics

// Trend is the direction of a two-point or history comparison.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Granularity is the bucket size of a cost query.
type Granularity string

const (
	GranularityHourly  Granularity = "HOURLY"
	GranularityDaily   Granularity = "DAILY"
	GranularityMonthly Granularity = "MONTHLY"
)

// Metric identifies a utilisation series for a resource.
type Metric string

const (
	MetricCPU  Metric = "cpu"
	MetricRAM  Metric = "ram"
	MetricGPU  Metric = "gpu"
	MetricDisk Metric = "disk"
)

// AllMetrics lists the utilisation metrics in display order.
var AllMetrics = []Metric{MetricCPU, MetricRAM, MetricGPU, MetricDisk}

// Period is the start/end pair of a billing bucket as reported by the provider.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GroupAmount is one grouped line of a bucket. Keys holds the dimension values,
// the first of which names the group.
type GroupAmount struct {
	Keys   []string `json:"keys,omitempty"`
	Amount *string  `json:"amount,omitempty"`
}

// CostRecord is a single billing bucket. Amounts are the provider's raw decimal
// strings; a nil Total counts as zero.
type CostRecord struct {
	Period Period        `json:"period"`
	Total  *string       `json:"total,omitempty"`
	Groups []GroupAmount `json:"groups,omitempty"`
}

// DimensionCost is the summed cost of one dimension value over a window.
type DimensionCost struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// HistoryPoint is one time-indexed value of a derived series.
type HistoryPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// UtilizationSample is a single percent reading (0-100).
type UtilizationSample struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// SpendKind selects the KPI a recommendation or spike policy applies to.
type SpendKind string

const (
	SpendTotal            SpendKind = "total_spend"
	SpendDailyBurn        SpendKind = "daily_burn"
	SpendProjectedMonthly SpendKind = "projected_monthly"
)

// Values extracts the numeric values of a history.
func Values(h []HistoryPoint) []float64 {
	out := make([]float64, len(h))
	for i, p := range h {
		out[i] = p.Value
	}
	return out
}

// SampleValues extracts the numeric values of a sample window.
func SampleValues(samples []UtilizationSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}
