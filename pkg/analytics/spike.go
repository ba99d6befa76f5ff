package analytics

// SpikeKind selects how a history is tested for an anomaly.
type SpikeKind string

const (
	// SpikeBurnLike compares the level of the last two points.
	SpikeBurnLike SpikeKind = "burn"
	// SpikeCumulativeLike compares the last two increments of a running total.
	SpikeCumulativeLike SpikeKind = "cumulative"
)

// DefaultSpikeThreshold flags a +20% change.
const DefaultSpikeThreshold = 0.2

// SpikeKindFor maps a KPI to its spike policy.
func SpikeKindFor(kind SpendKind) SpikeKind {
	if kind == SpendTotal {
		return SpikeCumulativeLike
	}
	return SpikeBurnLike
}

// DetectSpike reports whether the newest change in history exceeds threshold.
// Short histories and non-positive denominators are never spikes.
func DetectSpike(history []float64, kind SpikeKind, threshold float64) bool {
	n := len(history)
	switch kind {
	case SpikeCumulativeLike:
		if n < 3 {
			return false
		}
		prevDelta := history[n-2] - history[n-3]
		currDelta := history[n-1] - history[n-2]
		return exceeds(prevDelta, currDelta, threshold)
	default:
		if n < 2 {
			return false
		}
		return exceeds(history[n-2], history[n-1], threshold)
	}
}

// DetectHistorySpike is DetectSpike over a derived series.
func DetectHistorySpike(history []HistoryPoint, kind SpikeKind, threshold float64) bool {
	return DetectSpike(Values(history), kind, threshold)
}

// DetectSampleSpike is DetectSpike over a utilisation window.
func DetectSampleSpike(samples []UtilizationSample, kind SpikeKind, threshold float64) bool {
	return DetectSpike(SampleValues(samples), kind, threshold)
}

func exceeds(base, next, threshold float64) bool {
	if !(base > 0) {
		return false
	}
	return (next-base)/base > threshold
}
