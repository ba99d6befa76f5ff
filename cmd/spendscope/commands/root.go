package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/DrSkyle/spendscope/pkg/config"
	"github.com/DrSkyle/spendscope/pkg/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	outputFormat string
	cfg          = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "spendscope",
	Short: "Cloud spend and fleet utilisation analytics",
	Long: `spendscope - Cost analytics for AWS

Totals, trends, spikes and attribution from Cost Explorer,
plus load classification for every running instance.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		return validateOutput(outputFormat)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ~/.spendscope.yaml)")
	flags.String("region", defaults.Region, "AWS Region")
	flags.String("profile", "", "AWS shared config profile")
	flags.BoolP("verbose", "v", false, "Debug logging and per-call AWS API logging")
	flags.Bool("json-logs", false, "Emit logs as JSON")
	flags.Int("max-workers", defaults.MaxConcurrency, "Parallel instance fetches during fleet scans")
	flags.String("otel-endpoint", "", "OTLP HTTP endpoint for traces")
	flags.Bool("skip-telemetry", false, "Disable tracing")
	flags.String("slack-webhook", "", "Slack Webhook URL for cost alerts")
	flags.String("slack-channel", "", "Slack channel override")
	flags.StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml, csv, html)")

	// Hidden Flags
	flags.Bool("mock", false, "Serve deterministic sample data")
	flags.MarkHidden("mock")

	bindFlags(flags, map[string]string{
		"region":         "region",
		"profile":        "profile",
		"verbose":        "verbose",
		"json-logs":      "json_logs",
		"max-workers":    "max_workers",
		"otel-endpoint":  "otel_endpoint",
		"skip-telemetry": "skip_telemetry",
		"slack-webhook":  "slack_webhook",
		"slack-channel":  "slack_channel",
		"mock":           "mock",
	})

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})
}

func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".spendscope.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("SPENDSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(config.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, subtleStyle.Render("Using config file: "+viper.ConfigFileUsed()))
	}
}

// setDefaults registers every nested key so env overrides reach them.
func setDefaults(d config.Config) {
	viper.SetDefault("server.addr", d.Server.Addr)

	a := d.Analytics
	viper.SetDefault("analytics.spike_threshold", a.SpikeThreshold)
	viper.SetDefault("analytics.history_trend_tolerance", a.HistoryTrendTolerance)
	viper.SetDefault("analytics.residual_epsilon", a.ResidualEpsilon)
	viper.SetDefault("analytics.load.window", a.Load.Window)
	viper.SetDefault("analytics.load.min_samples", a.Load.MinSamples)
	viper.SetDefault("analytics.load.idle_mean", a.Load.IdleMean)
	viper.SetDefault("analytics.load.idle_std_dev", a.Load.IdleStdDev)
	viper.SetDefault("analytics.load.bursty_ratio", a.Load.BurstyRatio)
	viper.SetDefault("analytics.load.high_mean", a.Load.HighMean)
	viper.SetDefault("analytics.recommendations.total_spend.increase", a.Recommendations.TotalSpend.Increase)
	viper.SetDefault("analytics.recommendations.total_spend.decrease", a.Recommendations.TotalSpend.Decrease)
	viper.SetDefault("analytics.recommendations.daily_burn.increase", a.Recommendations.DailyBurn.Increase)
	viper.SetDefault("analytics.recommendations.daily_burn.decrease", a.Recommendations.DailyBurn.Decrease)
	viper.SetDefault("analytics.recommendations.projected_monthly.increase", a.Recommendations.ProjectedMonthly.Increase)
	viper.SetDefault("analytics.recommendations.projected_monthly.decrease", a.Recommendations.ProjectedMonthly.Decrease)

	f := d.Fleet
	viper.SetDefault("fleet.waste_cpu", f.WasteCPU)
	viper.SetDefault("fleet.waste_uptime_hours", f.WasteUptimeHours)
	viper.SetDefault("fleet.upgrade_cpu", f.UpgradeCPU)
	viper.SetDefault("fleet.upgrade_gpu", f.UpgradeGPU)
	viper.SetDefault("fleet.metric_lookback", f.MetricLookback)
	viper.SetDefault("fleet.metric_period", f.MetricPeriod)
}

func loadConfig() error {
	loaded := config.DefaultConfig()
	if err := viper.Unmarshal(&loaded); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if loaded.MaxConcurrency < 1 {
		loaded.MaxConcurrency = 1
	}
	cfg = loaded
	return nil
}

func renderHelp(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("SPENDSCOPE %s", version.Current)))
	fmt.Fprintln(w, cmd.Short)
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	visit := func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		line := fmt.Sprintf("  --%-16s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			line += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(line))
	}
	cmd.LocalFlags().VisitAll(visit)
	cmd.InheritedFlags().VisitAll(visit)
	fmt.Fprintln(w)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF99")).
			MarginBottom(1)
	flagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))
)
