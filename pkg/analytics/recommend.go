package analytics

import (
	"fmt"
	"math"
)

// Severity tags a recommendation for the presentation layer.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityPositive Severity = "positive"
)

// Recommendation is the human-readable verdict on a KPI change.
type Recommendation struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	// Delta is the percent change that produced the message.
	Delta float64 `json:"delta"`
}

// Thresholds bound the neutral band of a KPI in percent. A change above Increase
// warns; a change below Decrease (a negative number) is praised.
type Thresholds struct {
	Increase float64
	Decrease float64
}

// DefaultThresholds returns the per-KPI recommendation bands.
func DefaultThresholds() map[SpendKind]Thresholds {
	return map[SpendKind]Thresholds{
		SpendTotal:            {Increase: 20, Decrease: -10},
		SpendDailyBurn:        {Increase: 30, Decrease: -15},
		SpendProjectedMonthly: {Increase: 20, Decrease: -15},
	}
}

var kindSubject = map[SpendKind]string{
	SpendTotal:            "total spend",
	SpendDailyBurn:        "daily burn",
	SpendProjectedMonthly: "projected monthly spend",
}

// Recommend grades the change from previous to current with the default bands.
func Recommend(previous, current float64, kind SpendKind) Recommendation {
	return RecommendWith(previous, current, kind, DefaultThresholds()[kind])
}

// RecommendWith grades the change from previous to current against t.
func RecommendWith(previous, current float64, kind SpendKind, t Thresholds) Recommendation {
	delta := PercentDelta(previous, current)
	subject, ok := kindSubject[kind]
	if !ok {
		subject = "spend"
	}

	switch {
	case delta > t.Increase:
		return Recommendation{
			Message:  fmt.Sprintf("You're spending %.1f%% more on %s than the previous period. Consider optimizing idle or oversized resources.", delta, subject),
			Severity: SeverityWarning,
			Delta:    delta,
		}
	case delta < t.Decrease:
		return Recommendation{
			Message:  fmt.Sprintf("You're spending %.1f%% less on %s than the previous period. Good job!", math.Abs(delta), subject),
			Severity: SeverityPositive,
			Delta:    delta,
		}
	default:
		return Recommendation{
			Message:  fmt.Sprintf("Your %s is stable compared to the previous period.", subject),
			Severity: SeverityInfo,
			Delta:    delta,
		}
	}
}
