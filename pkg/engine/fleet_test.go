package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fleetNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeInventory struct {
	instances []Instance
	err       error
}

func (f *fakeInventory) ListInstances(context.Context) ([]Instance, error) {
	out := make([]Instance, len(f.instances))
	copy(out, f.instances)
	return out, f.err
}

type fakeMetrics struct {
	series map[string]map[analytics.Metric][]float64
	err    error
}

func (f *fakeMetrics) FetchUtilizationSamples(_ context.Context, id string, m analytics.Metric, w Window) ([]analytics.UtilizationSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	values := f.series[id][m]
	out := make([]analytics.UtilizationSample, len(values))
	// Newest first, the way some providers return them.
	for i, v := range values {
		ts := w.End.Add(-time.Duration(len(values)-1-i) * 5 * time.Minute)
		out[len(values)-1-i] = analytics.UtilizationSample{Timestamp: ts.Format(time.RFC3339), Value: v}
	}
	return out, nil
}

type fakePrices map[string]float64

func (f fakePrices) HourlyPrice(_ context.Context, _, instanceType string) (float64, error) {
	p, ok := f[instanceType]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

func newFleetEngine(t *testing.T, inv *fakeInventory, metrics *fakeMetrics) *Engine {
	t.Helper()
	eng, err := New(context.Background(),
		WithConfig(testConfig()),
		WithLogger(DiscardLogger()),
		WithClock(fixedClock(fleetNow)),
		WithInstanceSource(inv),
		WithMetricSource(metrics),
		WithPriceSource(fakePrices{"t3.large": 0.0832, "g4dn.xlarge": 0.526}),
	)
	require.NoError(t, err)
	return eng
}

func fleetFixture() (*fakeInventory, *fakeMetrics) {
	inv := &fakeInventory{instances: []Instance{
		{ID: "i-idle", Region: "us-east-1", Type: "t3.large", LaunchTime: fleetNow.Add(-72 * time.Hour)},
		{ID: "i-gpu", Region: "us-east-1", Type: "g4dn.xlarge", LaunchTime: fleetNow.Add(-5 * time.Hour)},
		{ID: "i-hot", Region: "us-east-1", Type: "m5.large", LaunchTime: fleetNow.Add(-30 * time.Hour)},
		{ID: "i-new", Region: "us-east-1", Type: "t3.large", LaunchTime: fleetNow.Add(-2 * time.Hour)},
	}}
	metrics := &fakeMetrics{series: map[string]map[analytics.Metric][]float64{
		"i-idle": {analytics.MetricCPU: {1, 1, 1, 1}},
		"i-gpu":  {analytics.MetricCPU: {40, 42, 41}, analytics.MetricGPU: {85, 90, 95}},
		"i-hot":  {analytics.MetricCPU: {80, 82, 85, 90}},
		"i-new":  {analytics.MetricCPU: {2, 2, 2}},
	}}
	return inv, metrics
}

func TestListInstancesFillsUptimeAndPrice(t *testing.T) {
	inv, metrics := fleetFixture()
	eng := newFleetEngine(t, inv, metrics)

	instances, err := eng.ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 4)
	assert.Equal(t, 72.0, instances[0].UptimeHours)
	assert.Equal(t, 0.0832, instances[0].CostPerHour)
	assert.Equal(t, 0.526, instances[1].CostPerHour)
	assert.Zero(t, instances[2].CostPerHour, "unknown price stays zero")
}

func TestInstanceMetricsSortsOldestFirst(t *testing.T) {
	inv, metrics := fleetFixture()
	eng := newFleetEngine(t, inv, metrics)

	samples, err := eng.InstanceMetrics(context.Background(), "i-hot", analytics.MetricCPU)
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 82, 85, 90}, analytics.SampleValues(samples))
}

func TestFleetStatus(t *testing.T) {
	inv, metrics := fleetFixture()
	eng := newFleetEngine(t, inv, metrics)

	report, err := eng.FleetStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Instances, 4)

	idle := report.Instances[0]
	assert.True(t, idle.Waste)
	assert.Equal(t, ActionStop, idle.Action)
	assert.Equal(t, analytics.LoadIdle, idle.Metrics[analytics.MetricCPU].Load.State)
	assert.Equal(t, "3d 0h", idle.Uptime)

	gpu := report.Instances[1]
	assert.False(t, gpu.Waste)
	assert.Equal(t, ActionUpgradeGPU, gpu.Action)
	assert.Equal(t, analytics.LoadHigh, gpu.Metrics[analytics.MetricGPU].Load.State)

	hot := report.Instances[2]
	assert.Equal(t, ActionUpgradeServer, hot.Action)
	assert.Equal(t, 90.0, hot.Metrics[analytics.MetricCPU].Latest)
	assert.Equal(t, analytics.LoadInsufficientData, hot.Metrics[analytics.MetricRAM].Load.State)

	fresh := report.Instances[3]
	assert.False(t, fresh.Waste, "idle but not up long enough")
	assert.Equal(t, ActionOK, fresh.Action)

	assert.Equal(t, 1, report.Wasted)
	assert.Equal(t, 0.08, report.WastedPerHour)
}

func TestFleetStatusWithoutCPUData(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{
		{ID: "i-stopped", Region: "us-east-1", Type: "t3.large", State: "stopped", LaunchTime: fleetNow.Add(-72 * time.Hour)},
		{ID: "i-gpu-only", Region: "us-east-1", Type: "g4dn.xlarge", LaunchTime: fleetNow.Add(-72 * time.Hour)},
	}}
	metrics := &fakeMetrics{series: map[string]map[analytics.Metric][]float64{
		"i-gpu-only": {analytics.MetricGPU: {90, 92}},
	}}
	eng := newFleetEngine(t, inv, metrics)

	report, err := eng.FleetStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Instances, 2)

	stopped := report.Instances[0]
	assert.Equal(t, analytics.LoadInsufficientData, stopped.Metrics[analytics.MetricCPU].Load.State)
	assert.False(t, stopped.Waste)
	assert.Equal(t, ActionOK, stopped.Action)

	assert.False(t, report.Instances[1].Waste)
	assert.Equal(t, ActionUpgradeGPU, report.Instances[1].Action)

	assert.Zero(t, report.Wasted)
	assert.Zero(t, report.WastedPerHour)
}

func TestFleetStatusPropagatesErrors(t *testing.T) {
	inv, _ := fleetFixture()
	boom := errors.New("cloudwatch down")
	eng := newFleetEngine(t, inv, &fakeMetrics{err: boom})

	_, err := eng.FleetStatus(context.Background())
	assert.ErrorIs(t, err, boom)

	eng = newFleetEngine(t, &fakeInventory{err: boom}, &fakeMetrics{})
	_, err = eng.FleetStatus(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFleetWithoutSources(t *testing.T) {
	eng, err := New(context.Background(), WithConfig(testConfig()), WithLogger(DiscardLogger()))
	require.NoError(t, err)

	_, err = eng.ListInstances(context.Background())
	assert.ErrorIs(t, err, ErrNoInstanceSource)
	_, err = eng.InstanceMetrics(context.Background(), "i-1", analytics.MetricCPU)
	assert.ErrorIs(t, err, ErrNoMetricSource)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("gpu")
	require.NoError(t, err)
	assert.Equal(t, analytics.MetricGPU, m)

	_, err = ParseMetric("network")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "N/A"},
		{-3, "N/A"},
		{math.NaN(), "N/A"},
		{5.5, "5h"},
		{26, "1d 2h"},
		{72, "3d 0h"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.hours); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
