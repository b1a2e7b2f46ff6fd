// Package config defines scan settings, classifier thresholds, and defaults.
package config

import "time"

// Defaults.
const (
	DefaultRegion = "us-east-1"

	// DefaultRunDeadline bounds one scan invocation. Derived from the 60s
	// platform hard timeout with headroom for persistence.
	DefaultRunDeadline = 55 * time.Second

	// DefaultCallTimeout bounds a single provider API call so one hanging
	// request cannot exhaust the run deadline.
	DefaultCallTimeout = 10 * time.Second
)

// ScanConfig holds the settings for one waste-scan run.
type ScanConfig struct {
	// AccountID is the tenant account the scan is attributed to.
	AccountID string `mapstructure:"account_id"`
	// Regions lists the regions to fan out across.
	Regions []string `mapstructure:"regions"`
	// RoleARN, when set, is assumed to obtain short-lived credentials.
	RoleARN string `mapstructure:"role_arn"`
	// ExternalID is passed on AssumeRole when the stored credential requires it.
	ExternalID string `mapstructure:"external_id"`

	RunDeadline time.Duration `mapstructure:"run_deadline"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`

	// APIRate caps signed provider calls per second, shared across regions.
	APIRate float64 `mapstructure:"api_rate"`

	// Strict forces a non-zero exit when any region failed.
	Strict bool `mapstructure:"strict"`

	Thresholds ThresholdConfig `mapstructure:"thresholds"`
}

// ThresholdConfig defines classifier age and utilization cutoffs.
type ThresholdConfig struct {
	Snapshot     SnapshotConfig     `mapstructure:"snapshot"`
	Image        ImageConfig        `mapstructure:"image"`
	Utilization  UtilizationConfig  `mapstructure:"utilization"`
	LoadBalancer LoadBalancerConfig `mapstructure:"load_balancer"`
}

type SnapshotConfig struct {
	// MinAgeDays is the age beyond which a snapshot is flagged.
	MinAgeDays int `mapstructure:"min_age_days"`
}

type ImageConfig struct {
	// MinAgeDays is the age beyond which a machine image is flagged.
	MinAgeDays int `mapstructure:"min_age_days"`
	// HighSeverityDays is the age beyond which the finding escalates to high.
	HighSeverityDays int `mapstructure:"high_severity_days"`
}

type UtilizationConfig struct {
	// IdleCPU, UnderusedCPU, and LowCPU are average-CPU cutoffs for the
	// idle / underutilized / low-utilization confidence tiers.
	IdleCPU      float64 `mapstructure:"idle_cpu"`
	UnderusedCPU float64 `mapstructure:"underused_cpu"`
	LowCPU       float64 `mapstructure:"low_cpu"`
	// IdleMaxCPU is the maximum-CPU cutoff required for the idle tier.
	IdleMaxCPU float64 `mapstructure:"idle_max_cpu"`
}

type LoadBalancerConfig struct {
	// IdleRequestsPerDay and LowRequestsPerDay split idle from low-traffic.
	IdleRequestsPerDay float64 `mapstructure:"idle_requests_per_day"`
	LowRequestsPerDay  float64 `mapstructure:"low_requests_per_day"`
}

// DefaultScanConfig returns a configuration with the standard cutoffs.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Regions:     []string{DefaultRegion},
		RunDeadline: DefaultRunDeadline,
		CallTimeout: DefaultCallTimeout,
		APIRate:     20,
		Thresholds:  DefaultThresholdConfig(),
	}
}

// DefaultThresholdConfig returns the standard classifier cutoffs.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Snapshot: SnapshotConfig{MinAgeDays: 90},
		Image:    ImageConfig{MinAgeDays: 365, HighSeverityDays: 730},
		Utilization: UtilizationConfig{
			IdleCPU:      5.0,
			UnderusedCPU: 15.0,
			LowCPU:       30.0,
			IdleMaxCPU:   10.0,
		},
		LoadBalancer: LoadBalancerConfig{
			IdleRequestsPerDay: 100,
			LowRequestsPerDay:  1000,
		},
	}
}

// AnomalyConfig holds the settings for one cost-anomaly detector run.
type AnomalyConfig struct {
	AccountID string `mapstructure:"account_id"`
	// LookbackDays is the trailing cost window fed to the detector.
	LookbackDays int `mapstructure:"lookback_days"`
	// MinHistoryDays is the minimum history below which the detector
	// reports insufficient data instead of anomalies.
	MinHistoryDays int `mapstructure:"min_history_days"`
	// DeviationPct is the baseline deviation that triggers an anomaly.
	DeviationPct float64 `mapstructure:"deviation_pct"`
}

// DefaultAnomalyConfig returns the standard detector settings.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		LookbackDays:   30,
		MinHistoryDays: 7,
		DeviationPct:   25.0,
	}
}
