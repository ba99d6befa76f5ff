package engine

import (
	"context"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Empty reports whether the window covers no time.
func (w Window) Empty() bool {
	return !w.End.After(w.Start)
}

// Preceding returns the window of equal length that ends where w starts.
func (w Window) Preceding() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// GroupType is the kind of attribute a cost query groups by.
type GroupType string

const (
	GroupDimension GroupType = "DIMENSION"
	GroupTag       GroupType = "TAG"
)

// GroupBy selects the breakdown of a cost query.
type GroupBy struct {
	Type GroupType
	Key  string
}

// Breakdowns requested for the attribution panel.
var (
	GroupByRegion       = &GroupBy{Type: GroupDimension, Key: "REGION"}
	GroupByInstanceType = &GroupBy{Type: GroupDimension, Key: "INSTANCE_TYPE"}
	GroupByJob          = &GroupBy{Type: GroupTag, Key: "job"}
)

// CostSource returns billing buckets for a window.
type CostSource interface {
	FetchCostRecords(ctx context.Context, window Window, granularity analytics.Granularity, groupBy *GroupBy) ([]analytics.CostRecord, error)
}

// MetricSource returns utilisation samples for one resource and metric,
// ordered by timestamp.
type MetricSource interface {
	FetchUtilizationSamples(ctx context.Context, resourceID string, metric analytics.Metric, window Window) ([]analytics.UtilizationSample, error)
}

// InstanceSource lists the compute inventory.
type InstanceSource interface {
	ListInstances(ctx context.Context) ([]Instance, error)
}

// PriceSource resolves on-demand hourly prices.
type PriceSource interface {
	HourlyPrice(ctx context.Context, region, instanceType string) (float64, error)
}

// Instance is a compute instance as listed by the provider.
type Instance struct {
	ID          string    `json:"id"`
	Region      string    `json:"region"`
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	State       string    `json:"state,omitempty"`
	LaunchTime  time.Time `json:"launchTime"`
	UptimeHours float64   `json:"uptimeHours"`
	CostPerHour float64   `json:"costPerHour"`
}
