package analytics

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// UnknownKey buckets grouped lines that carry no dimension value.
const UnknownKey = "Unknown"

// UnattributedName labels the residual appended to a breakdown.
const UnattributedName = "Unattributed"

// Aggregate is the fold of a window of cost records.
type Aggregate struct {
	// Total is the sum of every bucket total.
	Total float64
	// ByKey holds one entry per dimension value in order of first appearance.
	ByKey []DimensionCost
	// Buckets is the number of records folded.
	Buckets int
	// History is the per-bucket total series.
	History []HistoryPoint
}

// AggregateRecords folds records into a headline total, a per-dimension
// breakdown and a per-bucket history.
func AggregateRecords(records []CostRecord) Aggregate {
	total := decimal.Zero
	history := make([]HistoryPoint, 0, len(records))

	sums := make(map[string]decimal.Decimal)
	var order []string

	for _, r := range records {
		bucket := parseDecimal(r.Total)
		total = total.Add(bucket)
		v, _ := bucket.Float64()
		history = append(history, HistoryPoint{Timestamp: r.Period.Start, Value: v})

		for _, g := range r.Groups {
			key := UnknownKey
			if len(g.Keys) > 0 && g.Keys[0] != "" {
				key = g.Keys[0]
			}
			if _, seen := sums[key]; !seen {
				order = append(order, key)
			}
			sums[key] = sums[key].Add(parseDecimal(g.Amount))
		}
	}

	byKey := lo.Map(order, func(key string, _ int) DimensionCost {
		cost, _ := sums[key].Float64()
		return DimensionCost{Name: key, Cost: cost}
	})

	t, _ := total.Float64()
	return Aggregate{
		Total:   t,
		ByKey:   byKey,
		Buckets: len(records),
		History: history,
	}
}

// DailyBurn is the average spend per bucket, 0 for an empty window.
func DailyBurn(total float64, buckets int) float64 {
	if buckets <= 0 {
		return 0
	}
	return total / float64(buckets)
}

// ProjectedMonthly extrapolates a burn rate over a calendar month.
func ProjectedMonthly(dailyBurn float64, daysInMonth int) float64 {
	return dailyBurn * float64(daysInMonth)
}

// CumulativeHistory is the inclusive prefix sum of h.
func CumulativeHistory(h []HistoryPoint) []HistoryPoint {
	out := make([]HistoryPoint, len(h))
	running := decimal.Zero
	for i, p := range h {
		running = running.Add(decimal.NewFromFloat(p.Value))
		v, _ := running.Float64()
		out[i] = HistoryPoint{Timestamp: p.Timestamp, Value: v}
	}
	return out
}

// ProjectedHistory projects a month at every index from the running average so
// far. Each point is recomputed from scratch; early points are expected to swing.
func ProjectedHistory(h []HistoryPoint, daysInMonth int) []HistoryPoint {
	out := make([]HistoryPoint, len(h))
	running := decimal.Zero
	days := decimal.NewFromInt(int64(daysInMonth))
	for i, p := range h {
		running = running.Add(decimal.NewFromFloat(p.Value))
		avg := running.Div(decimal.NewFromInt(int64(i + 1)))
		v, _ := avg.Mul(days).Float64()
		out[i] = HistoryPoint{Timestamp: p.Timestamp, Value: v}
	}
	return out
}

// Residual is the spend a breakdown does not account for.
func Residual(total float64, byKey []DimensionCost) float64 {
	attributed := lo.Reduce(byKey, func(acc decimal.Decimal, d DimensionCost, _ int) decimal.Decimal {
		return acc.Add(decimal.NewFromFloat(d.Cost))
	}, decimal.Zero)
	r, _ := decimal.NewFromFloat(total).Sub(attributed).Float64()
	return r
}

// WithUnattributed returns byKey with an Unattributed entry appended when the
// residual exceeds epsilon. The input slice is not modified.
func WithUnattributed(byKey []DimensionCost, total, epsilon float64) []DimensionCost {
	out := make([]DimensionCost, len(byKey), len(byKey)+1)
	copy(out, byKey)
	if residual := Residual(total, byKey); residual > epsilon {
		out = append(out, DimensionCost{Name: UnattributedName, Cost: residual})
	}
	return out
}
