// Package metrics retrieves recent utilization statistics for discovered
// resources over bounded trailing windows. A resource absent from a result
// map means "no data", which classifiers must treat differently from zero.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
)

// Trailing windows per resource family. Short windows keep gateway/LB byte
// sums cheap; functions need a month to distinguish unused from quiet.
const (
	WindowCompute  = 7 * 24 * time.Hour
	WindowDatabase = 7 * 24 * time.Hour
	WindowGateway  = 24 * time.Hour
	WindowBalancer = 24 * time.Hour
	WindowFunction = 30 * 24 * time.Hour
)

// Per-call resource caps bound scan latency and metric-call spend.
const (
	maxInstances = 10
	maxDatabases = 10
	maxGateways  = 20
	maxBalancers = 20
	maxFunctions = 20
)

// Sample holds the statistics that were actually available for one
// resource. The Has flags distinguish a retrieved zero from missing data.
type Sample struct {
	Average    float64
	Maximum    float64
	Sum        float64
	HasAverage bool
	HasMaximum bool
	HasSum     bool
}

// Fetcher retrieves statistics through the signed monitoring API.
type Fetcher struct {
	api    *awsapi.Client
	logger *slog.Logger
}

func NewFetcher(api *awsapi.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{api: api, logger: logger}
}

type getMetricStatisticsResponse struct {
	Result struct {
		Datapoints []struct {
			Average *float64 `xml:"Average"`
			Maximum *float64 `xml:"Maximum"`
			Sum     *float64 `xml:"Sum"`
		} `xml:"Datapoints>member"`
	} `xml:"GetMetricStatisticsResult"`
}

// statistics issues one GetMetricStatistics call and folds the datapoints
// into a single Sample.
func (f *Fetcher) statistics(ctx context.Context, region, namespace, metric, dimName, dimValue string, window time.Duration) (Sample, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	params := map[string]string{
		"Namespace":                 namespace,
		"MetricName":                metric,
		"StartTime":                 start.Format("2006-01-02T15:04:05Z"),
		"EndTime":                   end.Format("2006-01-02T15:04:05Z"),
		"Period":                    "86400",
		"Statistics.member.1":       "Average",
		"Statistics.member.2":       "Maximum",
		"Statistics.member.3":       "Sum",
		"Dimensions.member.1.Name":  dimName,
		"Dimensions.member.1.Value": dimValue,
	}

	var resp getMetricStatisticsResponse
	if err := f.api.QueryXML(ctx, region, awsapi.ServiceMonitoring, "GetMetricStatistics", params, &resp); err != nil {
		return Sample{}, err
	}

	var s Sample
	var avgSum float64
	var avgCount int
	for _, dp := range resp.Result.Datapoints {
		if dp.Average != nil {
			avgSum += *dp.Average
			avgCount++
		}
		if dp.Maximum != nil {
			if !s.HasMaximum || *dp.Maximum > s.Maximum {
				s.Maximum = *dp.Maximum
			}
			s.HasMaximum = true
		}
		if dp.Sum != nil {
			s.Sum += *dp.Sum
			s.HasSum = true
		}
	}
	if avgCount > 0 {
		s.Average = avgSum / float64(avgCount)
		s.HasAverage = true
	}
	return s, nil
}

// collect fetches one metric for up to max resources. Failures are logged
// and yield missing entries; they never surface upward.
func (f *Fetcher) collect(ctx context.Context, region, namespace, metric, dimName string, resources []inventory.Descriptor, max int, window time.Duration, dimValue func(inventory.Descriptor) string) map[string]Sample {
	if len(resources) > max {
		resources = resources[:max]
	}

	out := make(map[string]Sample, len(resources))
	for _, r := range resources {
		sample, err := f.statistics(ctx, region, namespace, metric, dimName, dimValue(r), window)
		if err != nil {
			f.logger.Warn("metric fetch failed",
				"region", region, "namespace", namespace, "metric", metric,
				"resource", r.ID, "error", err)
			continue
		}
		f.logger.Debug("metric sample",
			"region", region, "metric", metric, "resource", r.ID, "sample", sample.String())
		out[r.ID] = sample
	}
	return out
}

func ownID(d inventory.Descriptor) string { return d.ID }

// InstanceCPU returns CPU utilization samples for compute instances.
func (f *Fetcher) InstanceCPU(ctx context.Context, region string, instances []inventory.Descriptor) map[string]Sample {
	return f.collect(ctx, region, "AWS/EC2", "CPUUtilization", "InstanceId", instances, maxInstances, WindowCompute, ownID)
}

// DatabaseCPU returns CPU utilization samples for managed databases.
func (f *Fetcher) DatabaseCPU(ctx context.Context, region string, dbs []inventory.Descriptor) map[string]Sample {
	return f.collect(ctx, region, "AWS/RDS", "CPUUtilization", "DBInstanceIdentifier", dbs, maxDatabases, WindowDatabase, ownID)
}

// DatabaseConnections returns connection-count samples for managed databases.
func (f *Fetcher) DatabaseConnections(ctx context.Context, region string, dbs []inventory.Descriptor) map[string]Sample {
	return f.collect(ctx, region, "AWS/RDS", "DatabaseConnections", "DBInstanceIdentifier", dbs, maxDatabases, WindowDatabase, ownID)
}

// GatewayBytes returns processed-byte samples for NAT gateways.
func (f *Fetcher) GatewayBytes(ctx context.Context, region string, gws []inventory.Descriptor) map[string]Sample {
	return f.collect(ctx, region, "AWS/NATGateway", "BytesOutToDestination", "NatGatewayId", gws, maxGateways, WindowGateway, ownID)
}

// BalancerRequests returns request-count samples for load balancers.
// The dimension is the trailing ARN segment, not the full ARN.
func (f *Fetcher) BalancerRequests(ctx context.Context, region string, lbs []inventory.Descriptor) map[string]Sample {
	return f.collect(ctx, region, "AWS/ApplicationELB", "RequestCount", "LoadBalancer", lbs, maxBalancers, WindowBalancer,
		func(d inventory.Descriptor) string { return d.Str("metric_dimension", d.ID) })
}

// FunctionInvocations returns invocation-count samples for functions.
func (f *Fetcher) FunctionInvocations(ctx context.Context, region string, fns []inventory.Descriptor) map[string]Sample {
	return f.collect(ctx, region, "AWS/Lambda", "Invocations", "FunctionName", fns, maxFunctions, WindowFunction,
		func(d inventory.Descriptor) string {
			if d.Name != "" {
				return d.Name
			}
			return d.ID
		})
}

// String renders the sample for debug logs.
func (s Sample) String() string {
	out := ""
	if s.HasAverage {
		out += fmt.Sprintf("avg=%.2f ", s.Average)
	}
	if s.HasMaximum {
		out += fmt.Sprintf("max=%.2f ", s.Maximum)
	}
	if s.HasSum {
		out += fmt.Sprintf("sum=%.2f", s.Sum)
	}
	if out == "" {
		return "no data"
	}
	return out
}
