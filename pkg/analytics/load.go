package analytics

import "math"

// LoadState is the qualitative regime of a utilisation window.
type LoadState string

const (
	LoadInsufficientData LoadState = "insufficient_data"
	LoadIdle             LoadState = "idle"
	LoadBursty           LoadState = "bursty"
	LoadHigh             LoadState = "high"
	LoadRising           LoadState = "rising"
	LoadStable           LoadState = "stable"
)

// LoadClassification is a load regime together with the statistics behind it.
type LoadClassification struct {
	State    LoadState `json:"state"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"std_dev"`
	Variance float64   `json:"variance"`
	Samples  int       `json:"samples"`
}

// LoadPolicy holds the classifier thresholds.
type LoadPolicy struct {
	// Window is the number of trailing samples considered.
	Window int
	// MinSamples below this the window is InsufficientData.
	MinSamples int
	// IdleMean and IdleStdDev bound an idle series (both strict).
	IdleMean   float64
	IdleStdDev float64
	// BurstyRatio flags stdDev > mean*BurstyRatio.
	BurstyRatio float64
	// HighMean flags mean > HighMean.
	HighMean float64
}

// DefaultLoadPolicy returns the dashboard's classifier thresholds.
func DefaultLoadPolicy() LoadPolicy {
	return LoadPolicy{
		Window:      20,
		MinSamples:  3,
		IdleMean:    5,
		IdleStdDev:  2,
		BurstyRatio: 0.5,
		HighMean:    70,
	}
}

// ClassifyLoad buckets a utilisation window using the default policy.
func ClassifyLoad(samples []float64) LoadClassification {
	return ClassifyLoadWith(samples, DefaultLoadPolicy())
}

// ClassifySamples is ClassifyLoad over timestamped samples.
func ClassifySamples(samples []UtilizationSample, policy LoadPolicy) LoadClassification {
	return ClassifyLoadWith(SampleValues(samples), policy)
}

// ClassifyLoadWith buckets the trailing window of samples. Rules are checked in
// order and the first match wins, so a high and bursty series is Bursty.
func ClassifyLoadWith(samples []float64, policy LoadPolicy) LoadClassification {
	if policy.Window > 0 && len(samples) > policy.Window {
		samples = samples[len(samples)-policy.Window:]
	}
	minSamples := policy.MinSamples
	if minSamples < 1 {
		minSamples = 3
	}
	if len(samples) < minSamples {
		return LoadClassification{State: LoadInsufficientData, Samples: len(samples)}
	}

	mean, variance := meanVariance(samples)
	c := LoadClassification{
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Samples:  len(samples),
	}

	switch {
	case c.Mean < policy.IdleMean && c.StdDev < policy.IdleStdDev:
		c.State = LoadIdle
	case c.StdDev > c.Mean*policy.BurstyRatio:
		c.State = LoadBursty
	case c.Mean > policy.HighMean:
		c.State = LoadHigh
	case samples[len(samples)-1]-samples[0] > 0:
		c.State = LoadRising
	default:
		c.State = LoadStable
	}
	return c
}

// meanVariance returns the mean and population variance.
func meanVariance(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, sq / float64(len(values))
}
