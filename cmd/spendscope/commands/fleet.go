package commands

import (
	"fmt"
	"io"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/api"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/DrSkyle/spendscope/pkg/engine/report"
	"github.com/spf13/cobra"
)

var (
	fleetOut   string
	metricName string
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Load regime and suggested action for every instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		fleet, err := rt.engine.FleetStatus(ctx)
		if err != nil {
			return err
		}

		vw := views{
			table: func(w io.Writer) { renderFleet(w, fleet) },
			csv:   func(w io.Writer) error { return report.WriteFleetCSV(w, fleet) },
		}
		if err := render(cmd.OutOrStdout(), outputFormat, fleet, vw); err != nil {
			return err
		}

		if fleetOut != "" {
			return rt.export(ctx, fleetOut, "fleet", "all", fleet, vw)
		}
		return nil
	},
}

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List the compute inventory with uptime and hourly price",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		instances, err := rt.engine.ListInstances(ctx)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, api.InstancesResponse{Instances: instances}, views{
			table: func(w io.Writer) { renderInstances(w, instances) },
		})
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <instance-id>",
	Short: "Recent utilisation samples for one instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metric, err := engine.ParseMetric(metricName)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		samples, err := rt.engine.InstanceMetrics(ctx, args[0], metric)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, samples, views{
			table: func(w io.Writer) {
				renderSamples(w, args[0], metric, samples, rt.engine.Config().Analytics.Load.Policy())
			},
		})
	},
}

func init() {
	fleetCmd.Flags().StringVar(&fleetOut, "out", "", "Export destination (directory or s3://bucket/prefix)")
	metricsCmd.Flags().StringVarP(&metricName, "metric", "m", string(analytics.MetricCPU), "Metric (cpu, ram, gpu, disk)")

	fleetCmd.AddCommand(instancesCmd)
	fleetCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func renderInstances(w io.Writer, instances []engine.Instance) {
	fmt.Fprintln(w, titleStyle.Render("INSTANCES"))
	for _, inst := range instances {
		fmt.Fprintf(w, "  %-22s %-14s %-12s %-10s %-9s %s/h\n",
			inst.ID, inst.Name, inst.Type, inst.Region, engine.FormatUptime(inst.UptimeHours), money(inst.CostPerHour))
	}
}

func renderSamples(w io.Writer, id string, metric analytics.Metric, samples []analytics.UtilizationSample, policy analytics.LoadPolicy) {
	load := analytics.ClassifySamples(samples, policy)
	b := loadBadge(load.State)

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s %s", id, metric)))
	fmt.Fprintf(w, "%s  mean %.1f%%  stddev %.1f  (%s)\n\n", b.Render(), load.Mean, load.StdDev, labelStyle.Render(b.Tooltip))
	for _, s := range samples {
		fmt.Fprintf(w, "  %s %6.1f%%\n", s.Timestamp, s.Value)
	}
}
