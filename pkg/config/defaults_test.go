package config

import (
	"testing"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
)

func TestDefaultAnalyticsConfig(t *testing.T) {
	cfg := DefaultAnalyticsConfig()

	if cfg.SpikeThreshold != 0.2 {
		t.Errorf("Expected SpikeThreshold 0.2, got %f", cfg.SpikeThreshold)
	}

	if cfg.ResidualEpsilon != 0.01 {
		t.Errorf("Expected ResidualEpsilon 0.01, got %f", cfg.ResidualEpsilon)
	}

	if cfg.Load.Window != 20 {
		t.Errorf("Expected load window 20, got %d", cfg.Load.Window)
	}

	if cfg.Load.Policy() != analytics.DefaultLoadPolicy() {
		t.Errorf("Expected decoded load config to match the classifier defaults, got %+v", cfg.Load.Policy())
	}
}

func TestRecommendationBands(t *testing.T) {
	r := DefaultAnalyticsConfig().Recommendations

	cases := map[analytics.SpendKind]analytics.Thresholds{
		analytics.SpendTotal:            {Increase: 20, Decrease: -10},
		analytics.SpendDailyBurn:        {Increase: 30, Decrease: -15},
		analytics.SpendProjectedMonthly: {Increase: 20, Decrease: -15},
	}
	for kind, want := range cases {
		if got := r.For(kind); got != want {
			t.Errorf("%s: expected %+v, got %+v", kind, want, got)
		}
	}

	for _, b := range cases {
		if b.Decrease >= 0 || b.Increase <= 0 {
			t.Error("Bands must straddle zero")
		}
	}
}

func TestDefaultFleetConfig(t *testing.T) {
	cfg := DefaultFleetConfig()

	if cfg.WasteCPU != 15 || cfg.WasteUptimeHours != 24 {
		t.Errorf("Unexpected waste rule: %+v", cfg)
	}

	if samples := int(cfg.MetricLookback / cfg.MetricPeriod); samples != analytics.DefaultLoadPolicy().Window {
		t.Errorf("Lookback should yield one classifier window, got %d samples", samples)
	}

	if cfg.MetricPeriod < time.Minute {
		t.Error("CloudWatch basic monitoring does not resolve below one minute")
	}
}
