// Package config defines default configuration and policy thresholds.
package config

import (
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
)

// Defaults.
const (
	DefaultRegion     = "us-east-1"
	DefaultListenAddr = ":8080"
)

// Config is the full runtime configuration, decoded by viper.
type Config struct {
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`

	// MockMode serves deterministic sample data instead of calling AWS.
	MockMode bool `mapstructure:"mock"`
	Verbose  bool `mapstructure:"verbose"`
	JSONLogs bool `mapstructure:"json_logs"`

	// MaxConcurrency bounds parallel metric fetches in fleet scans.
	MaxConcurrency int `mapstructure:"max_workers"`

	// Telemetry config.
	OtelEndpoint  string `mapstructure:"otel_endpoint"`
	SkipTelemetry bool   `mapstructure:"skip_telemetry"`

	// Slack incoming webhook for cost alerts. Empty disables alerts.
	SlackWebhook string `mapstructure:"slack_webhook"`
	SlackChannel string `mapstructure:"slack_channel"`

	Server    ServerConfig    `mapstructure:"server"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AnalyticsConfig holds the policy constants of the analytics core.
type AnalyticsConfig struct {
	// SpikeThreshold is the relative change that counts as a spike (0.2 = +20%).
	SpikeThreshold float64 `mapstructure:"spike_threshold"`
	// HistoryTrendTolerance is the band ignored when comparing a history's ends.
	HistoryTrendTolerance float64 `mapstructure:"history_trend_tolerance"`
	// ResidualEpsilon is the smallest unattributed amount worth reporting.
	ResidualEpsilon float64 `mapstructure:"residual_epsilon"`

	Load            LoadConfig           `mapstructure:"load"`
	Recommendations RecommendationConfig `mapstructure:"recommendations"`
}

// LoadConfig mirrors analytics.LoadPolicy for decoding.
type LoadConfig struct {
	Window      int     `mapstructure:"window"`
	MinSamples  int     `mapstructure:"min_samples"`
	IdleMean    float64 `mapstructure:"idle_mean"`
	IdleStdDev  float64 `mapstructure:"idle_std_dev"`
	BurstyRatio float64 `mapstructure:"bursty_ratio"`
	HighMean    float64 `mapstructure:"high_mean"`
}

// Policy returns the classifier thresholds.
func (l LoadConfig) Policy() analytics.LoadPolicy {
	return analytics.LoadPolicy(l)
}

// BandConfig mirrors analytics.Thresholds for decoding.
type BandConfig struct {
	Increase float64 `mapstructure:"increase"`
	Decrease float64 `mapstructure:"decrease"`
}

// RecommendationConfig holds the per-KPI recommendation bands in percent.
type RecommendationConfig struct {
	TotalSpend       BandConfig `mapstructure:"total_spend"`
	DailyBurn        BandConfig `mapstructure:"daily_burn"`
	ProjectedMonthly BandConfig `mapstructure:"projected_monthly"`
}

// For returns the band for kind.
func (r RecommendationConfig) For(kind analytics.SpendKind) analytics.Thresholds {
	b := r.TotalSpend
	switch kind {
	case analytics.SpendDailyBurn:
		b = r.DailyBurn
	case analytics.SpendProjectedMonthly:
		b = r.ProjectedMonthly
	}
	return analytics.Thresholds(b)
}

// FleetConfig defines the per-instance status rules.
type FleetConfig struct {
	// WasteCPU and WasteUptimeHours flag an instance that idles long enough.
	WasteCPU         float64 `mapstructure:"waste_cpu"`
	WasteUptimeHours float64 `mapstructure:"waste_uptime_hours"`
	// UpgradeCPU and UpgradeGPU suggest a larger instance above these percents.
	UpgradeCPU float64 `mapstructure:"upgrade_cpu"`
	UpgradeGPU float64 `mapstructure:"upgrade_gpu"`
	// MetricLookback and MetricPeriod shape the utilisation window.
	MetricLookback time.Duration `mapstructure:"metric_lookback"`
	MetricPeriod   time.Duration `mapstructure:"metric_period"`
}

// DefaultConfig returns a configuration with the dashboard's default values.
func DefaultConfig() Config {
	return Config{
		Region:         DefaultRegion,
		MaxConcurrency: 8,
		Server: ServerConfig{
			Addr: DefaultListenAddr,
		},
		Analytics: DefaultAnalyticsConfig(),
		Fleet:     DefaultFleetConfig(),
	}
}

// DefaultAnalyticsConfig returns the analytics policy constants.
func DefaultAnalyticsConfig() AnalyticsConfig {
	bands := analytics.DefaultThresholds()
	return AnalyticsConfig{
		SpikeThreshold:        analytics.DefaultSpikeThreshold,
		HistoryTrendTolerance: 0.05,
		ResidualEpsilon:       0.01,
		Load:                  LoadConfig(analytics.DefaultLoadPolicy()),
		Recommendations: RecommendationConfig{
			TotalSpend:       BandConfig(bands[analytics.SpendTotal]),
			DailyBurn:        BandConfig(bands[analytics.SpendDailyBurn]),
			ProjectedMonthly: BandConfig(bands[analytics.SpendProjectedMonthly]),
		},
	}
}

// DefaultFleetConfig returns the instance status rules.
func DefaultFleetConfig() FleetConfig {
	return FleetConfig{
		WasteCPU:         15,
		WasteUptimeHours: 24,
		UpgradeCPU:       80,
		UpgradeGPU:       80,
		MetricLookback:   100 * time.Minute, // 20 samples at the default period
		MetricPeriod:     5 * time.Minute,
	}
}
