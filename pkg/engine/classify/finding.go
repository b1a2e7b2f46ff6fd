// Package classify maps resource descriptors and utilization samples to
// waste findings. Every classifier is a pure function: same descriptor,
// sample, and rate table in, same finding out. Missing metrics degrade
// confidence; they never abort classification.
package classify

import (
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
)

// WasteType tags the reason a resource was flagged.
type WasteType string

const (
	WasteUnattachedVolume  WasteType = "unattached-volume"
	WasteOldSnapshot       WasteType = "old-snapshot"
	WasteUnattachedAddress WasteType = "unattached-address"
	WasteIdleResource      WasteType = "idle-resource"
	WasteUnderutilized     WasteType = "underutilized"
	WasteLowUtilization    WasteType = "low-utilization"
	WastePotentialIdle     WasteType = "potential-idle"
	WasteIdleDatabase      WasteType = "idle-database"
	WasteUnderusedDatabase WasteType = "underutilized-database"
	WasteIdleGateway       WasteType = "idle-gateway"
	WasteLowTrafficGateway WasteType = "low-traffic-gateway"
	WasteOldImage          WasteType = "old-image"
	WasteIdleCluster       WasteType = "idle-cluster"
	WasteUnusedFunction    WasteType = "unused-function"
	WasteIdleBalancer      WasteType = "idle-load-balancer"
	WasteLowTrafficLB      WasteType = "low-traffic-load-balancer"
)

// Severity buckets findings by estimated cost impact.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for aggregation and monotonicity checks.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Finding is one flagged resource. Findings are rebuilt wholesale on every
// scan; StatusActive marks the current snapshot.
type Finding struct {
	AccountID      string             `json:"account_id"`
	Kind           inventory.Kind     `json:"resource_type"`
	ResourceID     string             `json:"resource_id"`
	ResourceName   string             `json:"resource_name,omitempty"`
	WasteType      WasteType          `json:"waste_type"`
	Region         string             `json:"region"`
	MonthlyCost    float64            `json:"estimated_monthly_cost"`
	YearlyCost     float64            `json:"estimated_yearly_cost"`
	Severity       Severity           `json:"severity"`
	Recommendation string             `json:"recommendation"`
	Confidence     int                `json:"confidence"`
	AutoRemediable bool               `json:"auto_remediable"`
	Metrics        map[string]float64 `json:"utilization_metrics,omitempty"`
	Status         string             `json:"status"`
}

const StatusActive = "active"

// newFinding is the single construction path; it enforces the yearly-cost
// invariant and the active default.
func newFinding(d inventory.Descriptor, wt WasteType, monthly float64, sev Severity, confidence int, recommendation string) *Finding {
	return &Finding{
		Kind:           d.Kind,
		ResourceID:     d.ID,
		ResourceName:   d.Name,
		WasteType:      wt,
		Region:         d.Region,
		MonthlyCost:    monthly,
		YearlyCost:     monthly * 12,
		Severity:       sev,
		Recommendation: recommendation,
		Confidence:     confidence,
		Status:         StatusActive,
	}
}

// Severity families. Thresholds are fixed per resource family and
// monotonic: more monthly cost never lowers the bucket.

// storageSeverity covers volumes, snapshots (by cost), and addresses.
func storageSeverity(monthly float64) Severity {
	switch {
	case monthly >= 25:
		return SeverityHigh
	case monthly >= 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// computeSeverity covers instances and databases.
func computeSeverity(monthly float64) Severity {
	switch {
	case monthly >= 100:
		return SeverityHigh
	case monthly >= 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// networkSeverity covers gateways and load balancers.
func networkSeverity(monthly float64) Severity {
	switch {
	case monthly >= 50:
		return SeverityHigh
	case monthly >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
