// Package engine wires credentials, the signed client, the scan pipelines,
// and persistence into one runtime that the CLI drives.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appconfig "github.com/evo-uds/cloudsweep/pkg/config"
	"github.com/evo-uds/cloudsweep/pkg/engine/anomaly"
	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
	"github.com/evo-uds/cloudsweep/pkg/engine/classify"
	"github.com/evo-uds/cloudsweep/pkg/engine/credentials"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/notifier"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
	"github.com/evo-uds/cloudsweep/pkg/engine/scanner"
	"github.com/evo-uds/cloudsweep/pkg/engine/store"
	"github.com/evo-uds/cloudsweep/pkg/telemetry"
	"github.com/evo-uds/cloudsweep/pkg/version"
)

// ErrPartialResult indicates the scan completed but some regions were
// skipped due to API errors.
var ErrPartialResult = errors.New("scan completed with partial results")

// Config holds engine settings.
type Config struct {
	Scan    appconfig.ScanConfig
	Anomaly appconfig.AnomalyConfig

	// Output is a local directory or "s3://bucket[/prefix]".
	Output string

	SlackWebhook string
	SlackChannel string

	// Telemetry config.
	OtelEndpoint  string // "http://localhost:4318" or via env
	SkipTelemetry bool   // Set true if embedding in an app that already has OTEL

	// HydratePricing refreshes the static rate tables from the pricing
	// API at startup.
	HydratePricing bool

	// Verbose lowers the log level to debug.
	Verbose bool

	// Dependencies.
	Logger *slog.Logger
}

// Engine is the runtime core.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	cfg      Config
	resolver *credentials.Resolver
	store    store.Store
	notifier *notifier.SlackClient
	prices   *pricing.Table

	shutdownTelemetry func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithStore overrides the persistence backend, for tests and embedding.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// New initializes the Engine.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("cloudsweep/engine"),
		cfg:    cfg,
	}
	if cfg.Logger != nil {
		e.Logger = cfg.Logger
	}
	for _, opt := range opts {
		opt(e)
	}
	slog.SetDefault(e.Logger)

	if !cfg.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, cfg.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("telemetry init failed", "error", err)
		} else {
			e.shutdownTelemetry = shutdown
		}
	}

	homeRegion := appconfig.DefaultRegion
	if len(cfg.Scan.Regions) > 0 {
		homeRegion = cfg.Scan.Regions[0]
	}
	resolver, err := credentials.NewResolver(ctx, homeRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential resolver: %w", err)
	}
	e.resolver = resolver

	e.prices = pricing.Default()
	if cfg.HydratePricing {
		e.prices = pricing.Hydrate(ctx, resolver.Config(), homeRegion, e.Logger)
	}

	if e.store == nil {
		blobs, err := blobBackend(resolver, cfg.Output)
		if err != nil {
			return nil, err
		}
		e.store = store.NewFindingStore(blobs)
	}

	e.notifier = notifier.NewSlackClient(cfg.SlackWebhook, cfg.SlackChannel)
	return e, nil
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdownTelemetry == nil {
		return nil
	}
	return e.shutdownTelemetry(ctx)
}

// blobBackend picks the storage backend from the output target.
func blobBackend(resolver *credentials.Resolver, output string) (store.BlobStore, error) {
	if output == "" {
		return store.NewLocalStore(".cloudsweep"), nil
	}
	if rest, ok := strings.CutPrefix(output, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid output target %q: missing bucket", output)
		}
		var backend store.BlobStore = store.NewS3Store(resolver.Config(), bucket)
		if prefix != "" {
			backend = store.NewPrefixedStore(backend, prefix)
		}
		return backend, nil
	}
	return store.NewLocalStore(output), nil
}

// apiClient resolves account credentials and wraps them in a signed client.
// Ambient credentials are verified against the configured account so a scan
// never writes one tenant's findings under another's id.
func (e *Engine) apiClient(ctx context.Context) (*awsapi.Client, error) {
	creds, err := e.resolver.Resolve(ctx, credentials.Account{
		ID:         e.cfg.Scan.AccountID,
		RoleARN:    e.cfg.Scan.RoleARN,
		ExternalID: e.cfg.Scan.ExternalID,
		Region:     firstOr(e.cfg.Scan.Regions, appconfig.DefaultRegion),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account credentials: %w", err)
	}

	if e.cfg.Scan.RoleARN == "" {
		identity, err := e.resolver.VerifyIdentity(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to verify caller identity: %w", err)
		}
		if identity != e.cfg.Scan.AccountID {
			return nil, fmt.Errorf("credentials belong to account %s, not %s", identity, e.cfg.Scan.AccountID)
		}
	}
	if exp, ok := credentials.Expiry(ctx, creds); ok && time.Until(exp) < e.cfg.Scan.RunDeadline {
		e.Logger.Warn("credentials expire before the run deadline",
			"expires_at", exp, "run_deadline", e.cfg.Scan.RunDeadline)
	}

	return awsapi.NewClient(creds,
		awsapi.WithRateLimit(e.cfg.Scan.APIRate),
		awsapi.WithCallTimeout(e.cfg.Scan.CallTimeout),
	), nil
}

// RunScan executes one full waste scan.
func (e *Engine) RunScan(ctx context.Context) (report *scanner.Report, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.RunScan")
	defer span.End()
	defer e.recoverPanic(ctx, &err)

	if e.cfg.Scan.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Scan.RunDeadline)
		defer cancel()
	}

	api, err := e.apiClient(ctx)
	if err != nil {
		return nil, err
	}
	fetcher := metrics.NewFetcher(api, e.Logger)
	s := scanner.New(api, fetcher, e.prices, e.store, e.Logger,
		scanner.WithRules(rulesFromThresholds(e.cfg.Scan.Thresholds)))

	e.Logger.Info("starting waste scan",
		"regions", len(e.cfg.Scan.Regions), "strict", e.cfg.Scan.Strict)

	report, err = s.Run(ctx, e.cfg.Scan.AccountID, e.cfg.Scan.Regions)
	if err != nil {
		return nil, err
	}

	if notifyErr := e.notifier.SendScanSummary(ctx, report.Summary); notifyErr != nil {
		e.Logger.Warn("slack notification failed", "error", notifyErr)
	}

	if report.Summary.Status == scanner.StatusPartial {
		span.SetAttributes(
			attribute.Bool("scan.partial", true),
			attribute.Int("scan.failed_regions", len(report.Summary.FailedRegions)),
		)
		if e.cfg.Scan.Strict {
			e.Logger.Error("strict mode: failing due to partial scan results")
			return report, ErrPartialResult
		}
		e.Logger.Warn("scan finished with partial results",
			"failed_regions", report.Summary.FailedRegions)
	}
	return report, nil
}

// RunAnomalies executes one cost anomaly pass. Every pass leaves exactly
// one scan-history row, including the insufficient-history no-op.
func (e *Engine) RunAnomalies(ctx context.Context) (res *anomaly.Result, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.RunAnomalies")
	defer span.End()
	defer e.recoverPanic(ctx, &err)

	started := time.Now()
	scanID := store.NewScanID(started)

	// Even a failed pass leaves its history row.
	recordFailure := func(runErr error) {
		if histErr := e.store.InsertScanHistory(ctx, store.ScanRecord{
			ScanID:    scanID,
			AccountID: e.cfg.Scan.AccountID,
			ScanType:  store.ScanTypeAnomaly,
			StartedAt: started,
			Status:    "failed",
			Message:   runErr.Error(),
		}); histErr != nil {
			e.Logger.Warn("failed to record anomaly run", "error", histErr)
		}
	}

	api, err := e.apiClient(ctx)
	if err != nil {
		recordFailure(err)
		return nil, err
	}
	src := anomaly.NewCostSource(api)

	costs, err := src.DailyCosts(ctx, started, e.cfg.Anomaly.LookbackDays)
	if err != nil {
		recordFailure(err)
		return nil, err
	}

	detector := anomaly.NewDetector(e.cfg.Anomaly.MinHistoryDays, e.cfg.Anomaly.DeviationPct)
	res = detector.Detect(costs)

	span.SetAttributes(
		attribute.Int("anomaly.count", len(res.Anomalies)),
		attribute.Bool("anomaly.insufficient", res.Insufficient),
	)

	if len(res.Anomalies) > 0 {
		if err := e.store.InsertAnomalies(ctx, e.cfg.Scan.AccountID, scanID, res.Anomalies); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	status := "completed"
	if res.Insufficient {
		status = "insufficient"
	}
	if err := e.store.InsertScanHistory(ctx, store.ScanRecord{
		ScanID:            scanID,
		AccountID:         e.cfg.Scan.AccountID,
		ScanType:          store.ScanTypeAnomaly,
		StartedAt:         started,
		DurationSeconds:   time.Since(started).Seconds(),
		AnomalyCount:      len(res.Anomalies),
		AnomalyBySeverity: res.Summary.BySeverity,
		AnomalySpikes:     res.Summary.Spikes,
		AnomalyDrops:      res.Summary.Drops,
		AnomalyDeviation:  res.Summary.TotalDeviation,
		Status:            status,
		Message:           res.Message,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if notifyErr := e.notifier.SendAnomalyReport(ctx, e.cfg.Scan.AccountID, res); notifyErr != nil {
		e.Logger.Warn("slack notification failed", "error", notifyErr)
	}
	return res, nil
}

// recoverPanic converts a panic into an error so library callers get a
// value instead of a crash.
func (e *Engine) recoverPanic(ctx context.Context, errOut *error) {
	if r := recover(); r != nil {
		stack := debug.Stack()

		_, span := e.Tracer.Start(ctx, "CriticalPanic")
		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "critical failure")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()

		e.Logger.Error("critical failure", "error", r, "stack", string(stack))
		*errOut = fmt.Errorf("panic during run: %v", r)
	}
}

// rulesFromThresholds maps configured cutoffs onto the classifier rules.
func rulesFromThresholds(t appconfig.ThresholdConfig) classify.Rules {
	r := classify.DefaultRules()
	if t.Snapshot.MinAgeDays > 0 {
		r.SnapshotMinAgeDays = t.Snapshot.MinAgeDays
	}
	if t.Image.MinAgeDays > 0 {
		r.ImageMinAgeDays = t.Image.MinAgeDays
	}
	if t.Image.HighSeverityDays > 0 {
		r.ImageHighAgeDays = t.Image.HighSeverityDays
	}
	if t.Utilization.IdleCPU > 0 {
		r.IdleCPUPct = t.Utilization.IdleCPU
	}
	if t.Utilization.IdleMaxCPU > 0 {
		r.IdleMaxCPUPct = t.Utilization.IdleMaxCPU
	}
	if t.Utilization.UnderusedCPU > 0 {
		r.UnderusedCPUPct = t.Utilization.UnderusedCPU
	}
	if t.Utilization.LowCPU > 0 {
		r.LowCPUPct = t.Utilization.LowCPU
	}
	if t.LoadBalancer.IdleRequestsPerDay > 0 {
		r.BalancerIdleReqPerDay = t.LoadBalancer.IdleRequestsPerDay
	}
	if t.LoadBalancer.LowRequestsPerDay > 0 {
		r.BalancerLowReqPerDay = t.LoadBalancer.LowRequestsPerDay
	}
	return r
}

func firstOr(values []string, def string) string {
	if len(values) > 0 {
		return values[0]
	}
	return def
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"refresh_token": true, "certificate": true, "signature": true,
		"credential": true, "ssh_key": true, "connection_string": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}
