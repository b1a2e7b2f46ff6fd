// Package scanner drives the waste scan: regions in parallel, resource
// kinds sequentially within a region, findings merged and persisted as one
// snapshot per run. A broken region costs its findings, never the run.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
	"github.com/evo-uds/cloudsweep/pkg/engine/classify"
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
	"github.com/evo-uds/cloudsweep/pkg/engine/store"
)

// Report is the outcome of one scan run.
type Report struct {
	Findings []classify.Finding
	Summary  Summary
}

// Summary aggregates one run for history rows, notifications, and the CLI.
type Summary struct {
	ScanID            string                     `json:"scan_id"`
	AccountID         string                     `json:"account_id"`
	StartedAt         time.Time                  `json:"started_at"`
	DurationSeconds   float64                    `json:"duration_seconds"`
	RegionsScanned    []string                   `json:"regions_scanned"`
	FailedRegions     []string                   `json:"failed_regions,omitempty"`
	WasteCount        int                        `json:"waste_count"`
	TotalMonthlyWaste float64                    `json:"total_monthly_waste"`
	TotalYearlyWaste  float64                    `json:"total_yearly_waste"`
	BySeverity        map[classify.Severity]int  `json:"by_severity"`
	ByWasteType       map[classify.WasteType]int `json:"by_waste_type"`
	ByKind            map[inventory.Kind]int     `json:"by_kind"`
	Status            string                     `json:"status"`
}

const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
)

// Scanner orchestrates the region fan-out.
type Scanner struct {
	api     *awsapi.Client
	fetcher *metrics.Fetcher
	prices  *pricing.Table
	store   store.Store
	logger  *slog.Logger
	rules   classify.Rules
	now     func() time.Time
}

type Option func(*Scanner)

// WithRules overrides the classification thresholds.
func WithRules(r classify.Rules) Option {
	return func(s *Scanner) { s.rules = r }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func New(api *awsapi.Client, fetcher *metrics.Fetcher, prices *pricing.Table, st store.Store, logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		api:     api,
		fetcher: fetcher,
		prices:  prices,
		store:   st,
		logger:  logger,
		rules:   classify.DefaultRules(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans every configured region and persists the merged findings as the
// account's new active set. Region failures are isolated: they are logged,
// counted in Summary.FailedRegions, and contribute zero findings. Only a
// persistence failure fails the run.
func (s *Scanner) Run(ctx context.Context, accountID string, regions []string) (*Report, error) {
	started := s.now()
	scanID := store.NewScanID(started)

	tr := otel.Tracer("cloudsweep/scanner")
	ctx, span := tr.Start(ctx, "scan", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("regions", len(regions)),
	))
	defer span.End()

	perRegion := make([][]classify.Finding, len(regions))
	failed := make([]bool, len(regions))

	var g errgroup.Group
	for i, region := range regions {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("region scan panicked",
						"region", region, "panic", r, "stack", string(debug.Stack()))
					failed[i] = true
				}
			}()
			findings, err := s.scanRegion(ctx, tr, accountID, region)
			if err != nil {
				s.logger.Error("region scan failed", "region", region, "error", err)
				failed[i] = true
				return nil
			}
			perRegion[i] = findings
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		ScanID:         scanID,
		AccountID:      accountID,
		StartedAt:      started,
		RegionsScanned: regions,
		BySeverity:     map[classify.Severity]int{},
		ByWasteType:    map[classify.WasteType]int{},
		ByKind:         map[inventory.Kind]int{},
		Status:         StatusCompleted,
	}

	var findings []classify.Finding
	for i, region := range regions {
		if failed[i] {
			summary.FailedRegions = append(summary.FailedRegions, region)
			summary.Status = StatusPartial
			continue
		}
		findings = append(findings, perRegion[i]...)
	}
	for i := range findings {
		findings[i].AccountID = accountID
		summary.BySeverity[findings[i].Severity]++
		summary.ByWasteType[findings[i].WasteType]++
		summary.ByKind[findings[i].Kind]++
		summary.TotalMonthlyWaste += findings[i].MonthlyCost
		summary.TotalYearlyWaste += findings[i].YearlyCost
	}
	summary.WasteCount = len(findings)
	summary.DurationSeconds = s.now().Sub(started).Seconds()

	span.SetAttributes(
		attribute.Int("waste.count", summary.WasteCount),
		attribute.Float64("waste.monthly_cost", summary.TotalMonthlyWaste),
		attribute.Int("regions.failed", len(summary.FailedRegions)),
	)

	// New snapshot first, prior set after: a failed write keeps the
	// previous scan intact.
	if err := s.store.InsertFindings(ctx, accountID, scanID, findings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := s.store.DeleteActiveFindings(ctx, accountID, scanID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := s.store.InsertScanHistory(ctx, store.ScanRecord{
		ScanID:            scanID,
		AccountID:         accountID,
		ScanType:          store.ScanTypeWaste,
		StartedAt:         started,
		DurationSeconds:   summary.DurationSeconds,
		RegionsScanned:    summary.RegionsScanned,
		FailedRegions:     summary.FailedRegions,
		WasteCount:        summary.WasteCount,
		TotalMonthlyWaste: summary.TotalMonthlyWaste,
		TotalYearlyWaste:  summary.TotalYearlyWaste,
		BySeverity:        summary.BySeverity,
		ByWasteType:       summary.ByWasteType,
		ByKind:            summary.ByKind,
		Status:            summary.Status,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &Report{Findings: findings, Summary: summary}, nil
}

// scanRegion runs the per-kind pipelines in order. A kind that cannot be
// enumerated is logged and skipped. The region as a whole fails only when
// the context is done or no kind succeeded at all, which usually means the
// region is unreachable or the credentials are bad there.
func (s *Scanner) scanRegion(ctx context.Context, tr trace.Tracer, accountID, region string) ([]classify.Finding, error) {
	ctx, span := tr.Start(ctx, "scan-region", trace.WithAttributes(
		attribute.String("region", region),
	))
	defer span.End()

	var out []classify.Finding
	var errs []error
	for _, kind := range inventory.Kinds {
		findings, err := s.scanKind(ctx, tr, region, kind)
		if err != nil {
			if ctx.Err() != nil {
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, ctx.Err().Error())
				return nil, ctx.Err()
			}
			s.logger.Warn("kind scan failed",
				"account", accountID, "region", region, "kind", string(kind), "error", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, findings...)
	}
	if len(errs) == len(inventory.Kinds) {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "every resource kind failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("waste.count", len(out)))
	return out, nil
}

func (s *Scanner) scanKind(ctx context.Context, tr trace.Tracer, region string, kind inventory.Kind) ([]classify.Finding, error) {
	ctx, span := tr.Start(ctx, "scan-"+string(kind), trace.WithAttributes(
		attribute.String("region", region),
		attribute.String("kind", string(kind)),
	))
	defer span.End()

	findings, err := s.classifyKind(ctx, region, kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("waste.count", len(findings)))
	return findings, nil
}

func (s *Scanner) classifyKind(ctx context.Context, region string, kind inventory.Kind) ([]classify.Finding, error) {
	now := s.now()
	var out []classify.Finding
	add := func(f *classify.Finding) {
		if f != nil {
			out = append(out, *f)
		}
	}

	switch kind {
	case inventory.KindVolume:
		resources, err := inventory.Volumes(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		for _, d := range resources {
			add(classify.Volume(d, s.prices))
		}

	case inventory.KindSnapshot:
		resources, err := inventory.Snapshots(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		for _, d := range resources {
			add(classify.Snapshot(d, s.prices, now, s.rules))
		}

	case inventory.KindAddress:
		resources, err := inventory.Addresses(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		for _, d := range resources {
			add(classify.Address(d, s.prices))
		}

	case inventory.KindInstance:
		resources, err := inventory.Instances(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		cpu := s.fetcher.InstanceCPU(ctx, region, resources)
		for _, d := range resources {
			add(classify.Instance(d, samplePtr(cpu, d.ID), s.prices, s.rules))
		}

	case inventory.KindDatabase:
		resources, err := inventory.Databases(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		cpu := s.fetcher.DatabaseCPU(ctx, region, resources)
		conns := s.fetcher.DatabaseConnections(ctx, region, resources)
		for _, d := range resources {
			add(classify.Database(d, samplePtr(cpu, d.ID), samplePtr(conns, d.ID), s.prices, s.rules))
		}

	case inventory.KindGateway:
		resources, err := inventory.Gateways(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		bytes := s.fetcher.GatewayBytes(ctx, region, resources)
		for _, d := range resources {
			add(classify.Gateway(d, samplePtr(bytes, d.ID), s.prices))
		}

	case inventory.KindImage:
		resources, err := inventory.Images(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		for _, d := range resources {
			add(classify.Image(d, now, s.rules))
		}

	case inventory.KindCluster:
		resources, err := inventory.Clusters(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		for _, d := range resources {
			add(classify.Cluster(d))
		}

	case inventory.KindFunction:
		resources, err := inventory.Functions(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		invocations := s.fetcher.FunctionInvocations(ctx, region, resources)
		for _, d := range resources {
			add(classify.Function(d, samplePtr(invocations, d.ID)))
		}

	case inventory.KindLoadBalancer:
		resources, err := inventory.LoadBalancers(ctx, s.api, region)
		if err != nil {
			return nil, err
		}
		requests := s.fetcher.BalancerRequests(ctx, region, resources)
		for _, d := range resources {
			add(classify.LoadBalancer(d, samplePtr(requests, d.ID), s.prices, s.rules))
		}
	}
	return out, nil
}

// samplePtr distinguishes a missing sample from a zero one.
func samplePtr(m map[string]metrics.Sample, id string) *metrics.Sample {
	if s, ok := m[id]; ok {
		return &s
	}
	return nil
}
