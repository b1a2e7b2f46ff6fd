package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evo-uds/cloudsweep/pkg/config"
	"github.com/evo-uds/cloudsweep/pkg/engine"
	"github.com/evo-uds/cloudsweep/pkg/version"
)

var (
	cfgFile string
	cfg     = engine.Config{
		Scan:    config.DefaultScanConfig(),
		Anomaly: config.DefaultAnomalyConfig(),
	}
)

var rootCmd = &cobra.Command{
	Use:   "cloudsweep",
	Short: "Cloud waste scanner and cost anomaly detector",
	Long: `CloudSweep finds idle and unattached cloud resources across regions,
estimates what they cost, and flags days whose spend deviates from the
account baseline.`,
	Version: version.Current,
	// Run: nil (Forces help output).
	Run: nil,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.cloudsweep.yaml)")
	rootCmd.PersistentFlags().StringVar(&cfg.Scan.AccountID, "account", "", "Account ID to scan")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.Scan.Regions, "regions", nil, "Regions to scan (comma-separated)")
	rootCmd.PersistentFlags().StringVar(&cfg.Scan.RoleARN, "role-arn", "", "Role to assume for the scan")
	rootCmd.PersistentFlags().StringVar(&cfg.Scan.ExternalID, "external-id", "", "External ID for the assumed role")
	rootCmd.PersistentFlags().StringVar(&cfg.Output, "output", "", "Findings target: directory or s3://bucket[/prefix]")
	rootCmd.PersistentFlags().StringVar(&cfg.SlackWebhook, "slack-webhook", "", "Slack Webhook URL")
	rootCmd.PersistentFlags().StringVar(&cfg.SlackChannel, "slack-channel", "", "Slack channel override")
	rootCmd.PersistentFlags().StringVar(&cfg.OtelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint for traces")
	rootCmd.PersistentFlags().Float64Var(&cfg.Scan.APIRate, "api-rate", cfg.Scan.APIRate, "Signed API calls per second")
	rootCmd.PersistentFlags().DurationVar(&cfg.Scan.RunDeadline, "run-deadline", cfg.Scan.RunDeadline, "Hard deadline for one run")
	rootCmd.PersistentFlags().DurationVar(&cfg.Scan.CallTimeout, "call-timeout", cfg.Scan.CallTimeout, "Timeout for a single API call")
	rootCmd.PersistentFlags().BoolVar(&cfg.Scan.Strict, "strict", false, "Exit non-zero when any region failed")
	rootCmd.PersistentFlags().BoolVar(&cfg.HydratePricing, "hydrate-pricing", false, "Refresh rate tables from the pricing API at startup")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")
}

// initConfig loads the optional config file. Only settings without a flag,
// classifier thresholds and anomaly tuning, come from the file; everything
// else is flag-driven.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".cloudsweep.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("CLOUDSWEEP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		_ = viper.UnmarshalKey("thresholds", &cfg.Scan.Thresholds)
		_ = viper.UnmarshalKey("anomaly", &cfg.Anomaly)
	}
}
