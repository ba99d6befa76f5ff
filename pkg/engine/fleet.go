package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownMetric is returned for a metric name outside cpu, ram, gpu and disk.
var ErrUnknownMetric = errors.New("unknown metric")

// Status actions.
const (
	ActionStop          = "Consider stopping"
	ActionUpgradeGPU    = "Upgrade GPU"
	ActionUpgradeServer = "Upgrade instance"
	ActionOK            = "OK"
)

// ParseMetric validates a raw metric argument.
func ParseMetric(s string) (analytics.Metric, error) {
	for _, m := range analytics.AllMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// MetricStatus is the recent behaviour of one utilisation series.
type MetricStatus struct {
	Latest  float64                       `json:"latest"`
	Samples []analytics.UtilizationSample `json:"samples"`
	Load    analytics.LoadClassification  `json:"load"`
	Spike   bool                          `json:"spike"`
}

// InstanceStatus is the badge row of one instance.
type InstanceStatus struct {
	Instance Instance                          `json:"instance"`
	Metrics  map[analytics.Metric]MetricStatus `json:"metrics"`
	Uptime   string                            `json:"uptime"`
	Waste    bool                              `json:"waste"`
	Action   string                            `json:"action"`
}

// FleetReport is the status of every instance plus the idle spend they carry.
type FleetReport struct {
	Instances     []InstanceStatus `json:"instances"`
	Wasted        int              `json:"wasted"`
	WastedPerHour float64          `json:"wastedPerHour"`
}

// ListInstances returns the inventory with uptime and hourly price filled in.
// A failed price lookup leaves the price at zero.
func (e *Engine) ListInstances(ctx context.Context) ([]Instance, error) {
	if e.Instances == nil {
		return nil, ErrNoInstanceSource
	}
	instances, err := e.Instances.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	now := e.now()
	for i := range instances {
		inst := &instances[i]
		if !inst.LaunchTime.IsZero() {
			inst.UptimeHours = math.Max(0, now.Sub(inst.LaunchTime).Hours())
		}
		if inst.CostPerHour == 0 && e.Prices != nil {
			price, err := e.Prices.HourlyPrice(ctx, inst.Region, inst.Type)
			if err != nil {
				e.Logger.Debug("Price lookup failed", "type", inst.Type, "region", inst.Region, "error", err)
				continue
			}
			inst.CostPerHour = price
		}
	}
	return instances, nil
}

// InstanceMetrics returns the recent samples of one metric, oldest first.
func (e *Engine) InstanceMetrics(ctx context.Context, id string, metric analytics.Metric) ([]analytics.UtilizationSample, error) {
	if e.Metrics == nil {
		return nil, ErrNoMetricSource
	}
	now := e.now()
	window := Window{Start: now.Add(-e.config.Fleet.MetricLookback), End: now}
	samples, err := e.Metrics.FetchUtilizationSamples(ctx, id, metric, window)
	if err != nil {
		return nil, fmt.Errorf("fetch %s samples for %s: %w", metric, id, err)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})
	return samples, nil
}

// InstanceStatus classifies every metric of inst and derives its action.
func (e *Engine) InstanceStatus(ctx context.Context, inst Instance) (InstanceStatus, error) {
	statuses := make([]MetricStatus, len(analytics.AllMetrics))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range analytics.AllMetrics {
		g.Go(func() error {
			samples, err := e.InstanceMetrics(gctx, inst.ID, m)
			if err != nil {
				return err
			}
			statuses[i] = e.metricStatus(samples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return InstanceStatus{}, err
	}

	byMetric := make(map[analytics.Metric]MetricStatus, len(statuses))
	for i, m := range analytics.AllMetrics {
		byMetric[m] = statuses[i]
	}

	waste, action := e.verdict(inst, byMetric[analytics.MetricCPU], byMetric[analytics.MetricGPU].Latest)
	return InstanceStatus{
		Instance: inst,
		Metrics:  byMetric,
		Uptime:   FormatUptime(inst.UptimeHours),
		Waste:    waste,
		Action:   action,
	}, nil
}

// FleetStatus scans every instance with at most MaxConcurrency in flight.
func (e *Engine) FleetStatus(ctx context.Context) (*FleetReport, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.FleetStatus")
	defer span.End()

	instances, err := e.ListInstances(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory failed")
		return nil, err
	}

	report := &FleetReport{Instances: make([]InstanceStatus, len(instances))}

	g, gctx := errgroup.WithContext(ctx)
	if limit := e.config.MaxConcurrency; limit > 0 {
		g.SetLimit(limit)
	}
	for i, inst := range instances {
		g.Go(func() error {
			st, err := e.InstanceStatus(gctx, inst)
			if err != nil {
				return err
			}
			report.Instances[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metric fetch failed")
		e.Logger.Error("Fleet scan failed", "error", err)
		return nil, err
	}

	for _, st := range report.Instances {
		if st.Waste {
			report.Wasted++
			report.WastedPerHour += st.Instance.CostPerHour
		}
	}
	report.WastedPerHour = analytics.Round2(report.WastedPerHour)

	span.SetAttributes(
		attribute.Int("fleet.instances", len(instances)),
		attribute.Int("fleet.wasted", report.Wasted),
	)
	e.Logger.Info("Fleet scan complete", "instances", len(instances), "wasted", report.Wasted)
	return report, nil
}

func (e *Engine) metricStatus(samples []analytics.UtilizationSample) MetricStatus {
	st := MetricStatus{
		Samples: samples,
		Load:    analytics.ClassifySamples(samples, e.config.Analytics.Load.Policy()),
		Spike:   analytics.DetectSampleSpike(samples, analytics.SpikeBurnLike, e.config.Analytics.SpikeThreshold),
	}
	if n := len(samples); n > 0 {
		st.Latest = samples[n-1].Value
	}
	return st
}

// verdict applies the CPU rules only when CPU samples exist. Stopped
// instances report nothing and are never waste.
func (e *Engine) verdict(inst Instance, cpu MetricStatus, gpu float64) (bool, string) {
	rules := e.config.Fleet
	hasCPU := len(cpu.Samples) > 0
	waste := hasCPU && cpu.Latest < rules.WasteCPU && inst.UptimeHours > rules.WasteUptimeHours
	switch {
	case waste:
		return true, ActionStop
	case gpu > rules.UpgradeGPU:
		return false, ActionUpgradeGPU
	case hasCPU && cpu.Latest > rules.UpgradeCPU:
		return false, ActionUpgradeServer
	default:
		return false, ActionOK
	}
}

// FormatUptime renders hours as "3d 4h" or "5h". Unknown uptimes render as N/A.
func FormatUptime(hours float64) string {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return "N/A"
	}
	d := time.Duration(hours * float64(time.Hour))
	days := int(d / (24 * time.Hour))
	rem := int((d % (24 * time.Hour)) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, rem)
	}
	return fmt.Sprintf("%dh", rem)
}
