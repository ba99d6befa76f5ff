// Package report renders summaries and fleet reports as CSV and a static HTML dashboard.
package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
)

// BreakdownRow is one attributed line of a cost summary.
type BreakdownRow struct {
	Dimension string  `json:"dimension"`
	Name      string  `json:"name"`
	Cost      float64 `json:"cost"`
	Share     float64 `json:"share"`
}

// Breakdowns flattens the region, type and job breakdowns, each sorted by cost descending.
func Breakdowns(s *engine.CostSummary) []BreakdownRow {
	var rows []BreakdownRow
	add := func(dimension string, costs []analytics.DimensionCost) {
		start := len(rows)
		for _, c := range costs {
			share := 0.0
			if s.TotalSpend > 0 {
				share = analytics.Round2(c.Cost / s.TotalSpend * 100)
			}
			rows = append(rows, BreakdownRow{Dimension: dimension, Name: c.Name, Cost: c.Cost, Share: share})
		}
		group := rows[start:]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Cost > group[j].Cost
		})
	}
	add("region", s.ByRegion)
	add("instance_type", s.ByType)
	add("job", s.ByJob)
	return rows
}

// WriteBreakdownCSV writes the attribution tables of s.
func WriteBreakdownCSV(out io.Writer, s *engine.CostSummary) error {
	w := csv.NewWriter(out)

	header := []string{"Dimension", "Name", "Cost", "SharePercent"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range Breakdowns(s) {
		record := []string{
			r.Dimension,
			r.Name,
			formatFloat(r.Cost),
			formatFloat(r.Share),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteFleetCSV writes one row per instance, most expensive first.
func WriteFleetCSV(out io.Writer, r *engine.FleetReport) error {
	items := append([]engine.InstanceStatus(nil), r.Instances...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Instance.CostPerHour > items[j].Instance.CostPerHour
	})

	w := csv.NewWriter(out)

	header := []string{"InstanceID", "Name", "Type", "Region", "Uptime", "CostPerHour"}
	for _, m := range analytics.AllMetrics {
		header = append(header, metricHeader(m)+"Latest", metricHeader(m)+"Load")
	}
	header = append(header, "Waste", "Action")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, st := range items {
		record := []string{
			st.Instance.ID,
			st.Instance.Name,
			st.Instance.Type,
			st.Instance.Region,
			st.Uptime,
			formatFloat(st.Instance.CostPerHour),
		}
		for _, m := range analytics.AllMetrics {
			ms := st.Metrics[m]
			record = append(record, formatFloat(ms.Latest), string(ms.Load.State))
		}
		record = append(record, strconv.FormatBool(st.Waste), st.Action)
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func metricHeader(m analytics.Metric) string {
	switch m {
	case analytics.MetricCPU:
		return "CPU"
	case analytics.MetricRAM:
		return "RAM"
	case analytics.MetricGPU:
		return "GPU"
	case analytics.MetricDisk:
		return "Disk"
	}
	return string(m)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
