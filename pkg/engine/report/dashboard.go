package report

import (
	"html/template"
	"io"
	"time"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/DrSkyle/spendscope/pkg/version"
	"github.com/shopspring/decimal"
)

type dashboardCard struct {
	Label          string
	Value          string
	Previous       string
	Trend          analytics.Trend
	Anomaly        bool
	Recommendation analytics.Recommendation
}

type dashboardSeries struct {
	Label  string    `json:"label"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

type dashboardData struct {
	Version     string
	Generated   string
	TimeRange   engine.TimeRange
	Granularity analytics.Granularity
	Mock        bool
	Cards       []dashboardCard
	Breakdowns  []BreakdownRow
	Series      []dashboardSeries
}

var cardLabels = map[analytics.SpendKind]string{
	analytics.SpendTotal:            "Total Spend",
	analytics.SpendDailyBurn:        "Daily Burn",
	analytics.SpendProjectedMonthly: "Projected Monthly",
}

// WriteDashboard renders s as a self-contained HTML page with KPI cards,
// attribution tables and the three history charts.
func WriteDashboard(w io.Writer, s *engine.CostSummary, generated time.Time) error {
	data := dashboardData{
		Version:     version.Current,
		Generated:   generated.UTC().Format("2006-01-02 15:04:05 UTC"),
		TimeRange:   s.TimeRange,
		Granularity: s.Granularity,
		Mock:        s.Mock,
		Breakdowns:  Breakdowns(s),
		Series: []dashboardSeries{
			series("Total Spend", s.TotalSpendHistory),
			series("Daily Burn", s.DailyBurnHistory),
			series("Projected Monthly", s.ProjectedMonthlyHistory),
		},
	}
	for _, k := range s.KPIs() {
		data.Cards = append(data.Cards, dashboardCard{
			Label:          cardLabels[k.Kind],
			Value:          dollars(k.Value),
			Previous:       dollars(k.Previous),
			Trend:          k.Trend,
			Anomaly:        k.Anomaly,
			Recommendation: k.Recommendation,
		})
	}
	return dashboardTemplate.Execute(w, data)
}

func series(label string, h []analytics.HistoryPoint) dashboardSeries {
	out := dashboardSeries{Label: label, Labels: []string{}, Values: []float64{}}
	for _, p := range h {
		out.Labels = append(out.Labels, p.Timestamp)
		out.Values = append(out.Values, p.Value)
	}
	return out
}

func dollars(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>spendscope {{.TimeRange}}</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg: #050505;
            --surface: rgba(255, 255, 255, 0.03);
            --border: rgba(255, 255, 255, 0.1);
            --primary: #00FF99;
            --danger: #FF3366;
            --info: #8BE9FD;
            --text: #F8FAFC;
            --text-dim: #94A3B8;
        }
        * { box-sizing: border-box; }
        body {
            background: var(--bg);
            color: var(--text);
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
            margin: 0;
            padding: 40px;
            font-size: 14px;
        }
        .header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 40px;
            border-bottom: 1px solid var(--border);
            padding-bottom: 20px;
        }
        .logo { font-size: 1.5rem; font-weight: 700; letter-spacing: -1px; }
        .logo span { color: var(--primary); }
        .meta { color: var(--text-dim); }
        .kpi-grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 20px; margin-bottom: 40px; }
        .card { background: var(--surface); border: 1px solid var(--border); border-radius: 16px; padding: 24px; }
        .card h3 { margin: 0 0 10px 0; font-size: 0.75rem; color: var(--text-dim); text-transform: uppercase; letter-spacing: 1.2px; }
        .card .value { font-size: 2.2rem; font-weight: 700; }
        .trend-up { color: var(--danger); }
        .trend-down { color: var(--primary); }
        .trend-neutral { color: var(--text-dim); }
        .spike { color: var(--danger); font-weight: 700; font-size: 0.75rem; margin-left: 8px; }
        .rec { margin-top: 12px; font-size: 0.85rem; }
        .rec.warning { color: var(--danger); }
        .rec.positive { color: var(--primary); }
        .rec.info { color: var(--info); }
        .charts { display: grid; grid-template-columns: repeat(3, 1fr); gap: 20px; margin-bottom: 40px; }
        .chart-container { background: var(--surface); border: 1px solid var(--border); border-radius: 16px; padding: 24px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 10px; border-bottom: 1px solid var(--border); }
        th { color: var(--text-dim); font-size: 0.75rem; text-transform: uppercase; }
        td.num { text-align: right; font-family: monospace; }
    </style>
</head>
<body>
    <div class="header">
        <div class="logo">spend<span>scope</span></div>
        <div class="meta">{{.TimeRange}} &middot; {{.Granularity}}{{if .Mock}} &middot; mock data{{end}} &middot; {{.Generated}} &middot; {{.Version}}</div>
    </div>

    <div class="kpi-grid">
        {{- range .Cards}}
        <div class="card">
            <h3>{{.Label}}</h3>
            <div class="value">{{.Value}} <span class="trend-{{.Trend}}">{{if eq .Trend "up"}}&#9650;{{else if eq .Trend "down"}}&#9660;{{else}}={{end}}</span>{{if .Anomaly}}<span class="spike">SPIKE</span>{{end}}</div>
            <div class="meta">previous {{.Previous}}</div>
            <div class="rec {{.Recommendation.Severity}}">{{.Recommendation.Message}}</div>
        </div>
        {{- end}}
    </div>

    <div class="charts">
        {{- range $i, $s := .Series}}
        <div class="chart-container"><canvas id="chart-{{$i}}"></canvas></div>
        {{- end}}
    </div>

    <div class="chart-container">
        <table>
            <thead><tr><th>Dimension</th><th>Name</th><th>Cost</th><th>Share</th></tr></thead>
            <tbody>
            {{- range .Breakdowns}}
                <tr><td>{{.Dimension}}</td><td>{{.Name}}</td><td class="num">{{printf "%.2f" .Cost}}</td><td class="num">{{printf "%.1f" .Share}}%</td></tr>
            {{- end}}
            </tbody>
        </table>
    </div>

    <script>
        const series = {{.Series}};
        series.forEach((s, i) => {
            new Chart(document.getElementById("chart-" + i), {
                type: "line",
                data: {
                    labels: s.labels,
                    datasets: [{ label: s.label, data: s.values, borderColor: "#00FF99", tension: 0.3, fill: false }]
                },
                options: { plugins: { legend: { labels: { color: "#F8FAFC" } } } }
            });
        });
    </script>
</body>
</html>
`))
