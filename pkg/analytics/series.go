package analytics

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a provider amount string into a float.
// Missing or malformed input yields 0; it never fails.
func ParseAmount(raw *string) float64 {
	v, _ := parseDecimal(raw).Float64()
	return v
}

// parseDecimal is the exact form of ParseAmount used for accumulation.
func parseDecimal(raw *string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PercentDelta returns the change from previous to current in percent.
// A zero base reports 100 for any growth and 0 otherwise.
func PercentDelta(previous, current float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	delta := (current - previous) / previous * 100
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0
	}
	return delta
}

// TrendOf compares two scalars.
func TrendOf(current, previous float64) Trend {
	switch {
	case current > previous:
		return TrendUp
	case current < previous:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// HistoryTrend compares the last value of a series against its first, ignoring
// movement inside the tolerance band (0.05 = 5%).
func HistoryTrend(values []float64, tolerance float64) Trend {
	if len(values) < 2 {
		return TrendNeutral
	}
	first, last := values[0], values[len(values)-1]
	if first == 0 {
		return TrendOf(last, first)
	}
	upper := first * (1 + tolerance)
	lower := first * (1 - tolerance)
	if first < 0 {
		upper, lower = lower, upper
	}
	switch {
	case last > upper:
		return TrendUp
	case last < lower:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// Round2 rounds to cents. Only call this at output boundaries.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}

// RoundHistory returns a copy of h with every value rounded to cents.
func RoundHistory(h []HistoryPoint) []HistoryPoint {
	out := make([]HistoryPoint, len(h))
	for i, p := range h {
		out[i] = HistoryPoint{Timestamp: p.Timestamp, Value: Round2(p.Value)}
	}
	return out
}

// DaysInMonth returns the number of days in t's calendar month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
