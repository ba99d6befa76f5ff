package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/DrSkyle/spendscope/pkg/engine/notifier"
	"github.com/DrSkyle/spendscope/pkg/engine/report"
	"github.com/DrSkyle/spendscope/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	costsRange string
	costsOut   string
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Spend totals, trends and attribution for a time range",
	Long: `Summarise billed spend over a time range: total, daily burn and
projected monthly spend, each compared with the preceding period,
plus breakdowns by region, instance type and job tag.

Use --out to also write the report to a directory or s3://bucket/prefix.
With --slack-webhook set, spikes and warnings are posted to Slack.`,
	Example: `  spendscope costs --range 30d
  spendscope costs -r lastMonth -o html --out s3://reports/nightly`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := engine.ParseTimeRange(costsRange)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		summary, err := rt.engine.ComputeCostSummary(ctx, tr)
		if err != nil {
			return err
		}

		vw := summaryViews(summary)
		if err := render(cmd.OutOrStdout(), outputFormat, summary, vw); err != nil {
			return err
		}

		if cfg.SlackWebhook != "" {
			sent, err := notifier.NewSlackClient(cfg.SlackWebhook, cfg.SlackChannel).SendCostAlert(ctx, summary)
			if err != nil {
				rt.logger.Warn("Slack alert failed", "error", err)
			} else if sent {
				rt.logger.Info("Slack alert sent", "range", tr)
			}
		}

		if costsOut != "" {
			return rt.export(ctx, costsOut, "costs", string(tr), summary, vw)
		}
		return nil
	},
}

func init() {
	costsCmd.Flags().StringVarP(&costsRange, "range", "r", string(engine.Range7d), "Time range (24h, 7d, 30d, lastMonth)")
	costsCmd.Flags().StringVar(&costsOut, "out", "", "Export destination (directory or s3://bucket/prefix)")
	rootCmd.AddCommand(costsCmd)
}

func summaryViews(s *engine.CostSummary) views {
	return views{
		table: func(w io.Writer) { renderSummary(w, s) },
		csv:   func(w io.Writer) error { return report.WriteBreakdownCSV(w, s) },
		html:  func(w io.Writer) error { return report.WriteDashboard(w, s, time.Now()) },
	}
}

// export writes v to dest in the selected format. Table output exports as JSON.
func (rt *runtime) export(ctx context.Context, dest, kind, label string, v any, vw views) error {
	store, prefix, err := rt.openStore(ctx, dest)
	if err != nil {
		return err
	}

	format := outputFormat
	if format == formatTable {
		format = formatJSON
	}
	var buf bytes.Buffer
	if err := render(&buf, format, v, vw); err != nil {
		return err
	}

	key := storage.ReportKey(prefix, kind, label, time.Now(), format)
	if err := store.Put(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("export %s: %w", key, err)
	}
	rt.logger.Info("Report exported", "destination", dest, "key", key)
	return nil
}
