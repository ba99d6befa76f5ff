package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatCSV   = "csv"
	formatHTML  = "html"
)

var outputFormats = []string{formatTable, formatJSON, formatYAML, formatCSV, formatHTML}

func validateOutput(format string) error {
	if !lo.Contains(outputFormats, format) {
		return fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(outputFormats, ", "))
	}
	return nil
}

// badge is the presentation of one enum value.
type badge struct {
	Label   string
	Color   lipgloss.Color
	Tooltip string
}

func (b badge) Render() string {
	return lipgloss.NewStyle().Foreground(b.Color).Render(b.Label)
}

var unknownBadge = badge{Label: "?", Color: "#666666", Tooltip: "Unknown"}

var loadBadges = map[analytics.LoadState]badge{
	analytics.LoadInsufficientData: {"No data", "#666666", "Too few samples to classify"},
	analytics.LoadIdle:             {"Idle", "#AAAAAA", "Near-zero utilisation with little variation"},
	analytics.LoadBursty:           {"Bursty", "#FFB86C", "Utilisation swings widely around its mean"},
	analytics.LoadHigh:             {"High", "#FF5555", "Sustained utilisation above the high-load mark"},
	analytics.LoadRising:           {"Rising", "#F1FA8C", "Utilisation climbed across the window"},
	analytics.LoadStable:           {"Stable", "#00FF99", "Steady utilisation"},
}

// Spend going up is bad news, so Up is red.
var trendBadges = map[analytics.Trend]badge{
	analytics.TrendUp:      {"▲", "#FF5555", "Higher than the comparison period"},
	analytics.TrendDown:    {"▼", "#00FF99", "Lower than the comparison period"},
	analytics.TrendNeutral: {"=", "#AAAAAA", "No change"},
}

var severityBadges = map[analytics.Severity]badge{
	analytics.SeverityInfo:     {"INFO", "#8BE9FD", "Within the expected band"},
	analytics.SeverityWarning:  {"WARN", "#FF5555", "Increase above the warning band"},
	analytics.SeverityPositive: {"GOOD", "#00FF99", "Decrease below the savings band"},
}

var kpiLabels = map[analytics.SpendKind]string{
	analytics.SpendTotal:            "Total spend",
	analytics.SpendDailyBurn:        "Daily burn",
	analytics.SpendProjectedMonthly: "Projected monthly",
}

func loadBadge(s analytics.LoadState) badge {
	if b, ok := loadBadges[s]; ok {
		return b
	}
	return unknownBadge
}

func trendBadge(t analytics.Trend) badge {
	if b, ok := trendBadges[t]; ok {
		return b
	}
	return unknownBadge
}

func severityBadge(s analytics.Severity) badge {
	if b, ok := severityBadges[s]; ok {
		return b
	}
	return unknownBadge
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(34)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99"))
	spikeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))
)

// encode writes v as JSON or YAML. YAML keys follow the JSON field names.
func encode(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == formatJSON {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	clearStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// clearStyle drops the flow style inherited from the JSON source.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

func renderSummary(w io.Writer, s *engine.CostSummary) {
	title := fmt.Sprintf("COSTS %s (%s)", s.TimeRange, strings.ToLower(string(s.Granularity)))
	if s.Mock {
		title += " [mock]"
	}
	fmt.Fprintln(w, titleStyle.Render(title))

	kpis := s.KPIs()
	cards := lo.Map(kpis, func(k engine.KPI, _ int) string {
		return cardStyle.Render(renderKPI(k))
	})
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("RECOMMENDATIONS"))
	for _, k := range kpis {
		fmt.Fprintf(w, "  %s %s: %s\n", severityBadge(k.Recommendation.Severity).Render(), kpiLabels[k.Kind], k.Recommendation.Message)
	}
	fmt.Fprintln(w)

	renderBreakdown(w, "BY REGION", s.ByRegion, s.TotalSpend)
	renderBreakdown(w, "BY INSTANCE TYPE", s.ByType, s.TotalSpend)
	renderBreakdown(w, "BY JOB", s.ByJob, s.TotalSpend)
}

func renderKPI(k engine.KPI) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(kpiLabels[k.Kind]))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(money(k.Value)))
	b.WriteString(" " + trendBadge(k.Trend).Render())
	if k.Anomaly {
		b.WriteString(" " + spikeStyle.Render("SPIKE"))
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("prev %s  history ", money(k.Previous))))
	b.WriteString(trendBadge(k.HistoryTrend).Render())
	b.WriteString("\n")
	b.WriteString(severityBadge(k.Recommendation.Severity).Render())
	b.WriteString(fmt.Sprintf(" %+.1f%%", k.Recommendation.Delta))
	return b.String()
}

func renderBreakdown(w io.Writer, title string, rows []analytics.DimensionCost, total float64) {
	fmt.Fprintln(w, headerStyle.Render(title))
	if len(rows) == 0 {
		fmt.Fprintln(w, labelStyle.Render("  no data"))
		fmt.Fprintln(w)
		return
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b analytics.DimensionCost) int {
		switch {
		case a.Cost > b.Cost:
			return -1
		case a.Cost < b.Cost:
			return 1
		}
		return 0
	})

	for _, r := range sorted {
		share := 0.0
		if total > 0 {
			share = r.Cost / total * 100
		}
		fmt.Fprintf(w, "  %-28s %12s %6.1f%%\n", r.Name, money(r.Cost), share)
	}
	fmt.Fprintln(w)
}

type column struct {
	title string
	width int
}

var fleetColumns = []column{
	{"INSTANCE", 22}, {"NAME", 14}, {"TYPE", 12}, {"UPTIME", 9}, {"$/H", 8},
	{"CPU", 16}, {"RAM", 16}, {"GPU", 16}, {"DISK", 16}, {"ACTION", 18},
}

func cell(width int, text string) string {
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Render(text)
}

func renderFleet(w io.Writer, r *engine.FleetReport) {
	fmt.Fprintln(w, titleStyle.Render("FLEET"))

	header := lo.Map(fleetColumns, func(c column, _ int) string {
		return headerStyle.Width(c.width).Render(c.title)
	})
	fmt.Fprintln(w, strings.Join(header, " "))

	for _, st := range r.Instances {
		values := []string{
			st.Instance.ID,
			st.Instance.Name,
			st.Instance.Type,
			st.Uptime,
			money(st.Instance.CostPerHour),
		}
		for _, m := range analytics.AllMetrics {
			values = append(values, metricCell(st.Metrics[m]))
		}
		values = append(values, actionBadge(st).Render())

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cell(fleetColumns[i].width, v)
		}
		fmt.Fprintln(w, strings.Join(row, " "))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d of %d instances wasted, %s/h idle spend\n", r.Wasted, len(r.Instances), money(r.WastedPerHour))
	renderLegend(w, r)
}

var loadOrder = []analytics.LoadState{
	analytics.LoadIdle, analytics.LoadStable, analytics.LoadRising,
	analytics.LoadBursty, analytics.LoadHigh, analytics.LoadInsufficientData,
}

// renderLegend explains the load badges that appear in the report.
func renderLegend(w io.Writer, r *engine.FleetReport) {
	seen := map[analytics.LoadState]bool{}
	for _, st := range r.Instances {
		for _, m := range st.Metrics {
			seen[m.Load.State] = true
		}
	}
	if len(seen) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("LEGEND"))
	for _, s := range loadOrder {
		if seen[s] {
			b := loadBadge(s)
			fmt.Fprintf(w, "  %s %s\n", cell(8, b.Render()), labelStyle.Render(b.Tooltip))
		}
	}
}

func metricCell(m engine.MetricStatus) string {
	text := fmt.Sprintf("%s %.0f%%", loadBadge(m.Load.State).Render(), m.Latest)
	if m.Spike {
		text += spikeStyle.Render("!")
	}
	return text
}

func actionBadge(st engine.InstanceStatus) badge {
	switch {
	case st.Waste:
		return badge{Label: st.Action, Color: "#FF5555", Tooltip: "Idle long enough to stop"}
	case st.Action == engine.ActionOK:
		return badge{Label: st.Action, Color: "#00FF99"}
	default:
		return badge{Label: st.Action, Color: "#FFB86C", Tooltip: "Sustained load above the upgrade mark"}
	}
}

// views are the format-specific renderings of one result. CSV and HTML are
// optional.
type views struct {
	table func(io.Writer)
	csv   func(io.Writer) error
	html  func(io.Writer) error
}

// render draws v in format.
func render(w io.Writer, format string, v any, vw views) error {
	switch format {
	case formatTable:
		vw.table(w)
		return nil
	case formatJSON, formatYAML:
		return encode(w, format, v)
	case formatCSV:
		if vw.csv != nil {
			return vw.csv(w)
		}
	case formatHTML:
		if vw.html != nil {
			return vw.html(w)
		}
	}
	return fmt.Errorf("output format %q is not supported by this command", format)
}
