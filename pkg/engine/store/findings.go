package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/evo-uds/cloudsweep/pkg/engine/anomaly"
	"github.com/evo-uds/cloudsweep/pkg/engine/classify"
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
)

// ScanRecord is one row of scan history. Every scan run, waste or anomaly,
// writes exactly one, breakdowns included, so a consumer can reconstruct
// the run from the row alone.
type ScanRecord struct {
	ScanID            string                     `json:"scan_id"`
	AccountID         string                     `json:"account_id"`
	ScanType          string                     `json:"scan_type"`
	StartedAt         time.Time                  `json:"started_at"`
	DurationSeconds   float64                    `json:"duration_seconds"`
	RegionsScanned    []string                   `json:"regions_scanned,omitempty"`
	FailedRegions     []string                   `json:"failed_regions,omitempty"`
	WasteCount        int                        `json:"waste_count"`
	TotalMonthlyWaste float64                    `json:"total_monthly_waste"`
	TotalYearlyWaste  float64                    `json:"total_yearly_waste"`
	BySeverity        map[classify.Severity]int  `json:"by_severity,omitempty"`
	ByWasteType       map[classify.WasteType]int `json:"by_waste_type,omitempty"`
	ByKind            map[inventory.Kind]int     `json:"by_kind,omitempty"`
	AnomalyCount      int                        `json:"anomaly_count"`
	AnomalyBySeverity map[anomaly.Severity]int   `json:"anomaly_by_severity,omitempty"`
	AnomalySpikes     int                        `json:"anomaly_spikes,omitempty"`
	AnomalyDrops      int                        `json:"anomaly_drops,omitempty"`
	AnomalyDeviation  float64                    `json:"anomaly_total_deviation,omitempty"`
	Status            string                     `json:"status"`
	Message           string                     `json:"message,omitempty"`
}

const (
	ScanTypeWaste   = "waste"
	ScanTypeAnomaly = "anomaly"
)

// Store is the persistence contract the scan pipelines write through.
type Store interface {
	InsertFindings(ctx context.Context, accountID, scanID string, findings []classify.Finding) error
	DeleteActiveFindings(ctx context.Context, accountID, exceptScanID string) error
	ActiveFindings(ctx context.Context, accountID string) ([]classify.Finding, error)
	InsertScanHistory(ctx context.Context, rec ScanRecord) error
	InsertAnomalies(ctx context.Context, accountID, scanID string, anomalies []anomaly.Anomaly) error
}

// findingSnapshot is the persisted form of one scan's findings.
type findingSnapshot struct {
	ScanID    string             `json:"scan_id"`
	AccountID string             `json:"account_id"`
	WrittenAt time.Time          `json:"written_at"`
	Findings  []classify.Finding `json:"findings"`
}

// FindingStore implements Store on a BlobStore. Scan ids sort by time, so
// the newest snapshot under an account prefix is the active set. Callers
// replace by inserting the new snapshot first and deleting the prior ones
// after; a failed insert therefore never loses the previous scan.
type FindingStore struct {
	blobs BlobStore
	now   func() time.Time
}

func NewFindingStore(blobs BlobStore) *FindingStore {
	return &FindingStore{blobs: blobs, now: time.Now}
}

func findingsPrefix(accountID string) string { return "findings/" + accountID + "/" }

// InsertFindings writes one scan's findings as a new snapshot.
func (s *FindingStore) InsertFindings(ctx context.Context, accountID, scanID string, findings []classify.Finding) error {
	snap := findingSnapshot{
		ScanID:    scanID,
		AccountID: accountID,
		WrittenAt: s.now().UTC(),
		Findings:  findings,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode findings: %w", err)
	}
	if err := s.blobs.Put(ctx, findingsPrefix(accountID)+scanID+".json", data); err != nil {
		return fmt.Errorf("failed to write findings snapshot: %w", err)
	}
	return nil
}

// DeleteActiveFindings removes every snapshot except the one named, which
// becomes the sole active set. Deleting an already-pruned account is a
// no-op, so replacement is idempotent.
func (s *FindingStore) DeleteActiveFindings(ctx context.Context, accountID, exceptScanID string) error {
	prefix := findingsPrefix(accountID)
	keys, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list findings snapshots: %w", err)
	}
	keep := prefix + exceptScanID + ".json"
	for _, k := range keys {
		if k == keep {
			continue
		}
		if err := s.blobs.Delete(ctx, k); err != nil {
			return fmt.Errorf("failed to delete superseded snapshot %s: %w", k, err)
		}
	}
	return nil
}

// ActiveFindings returns the newest snapshot's findings, or an empty slice
// when the account has never been scanned.
func (s *FindingStore) ActiveFindings(ctx context.Context, accountID string) ([]classify.Finding, error) {
	keys, err := s.blobs.List(ctx, findingsPrefix(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to list findings snapshots: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)
	latest := keys[len(keys)-1]

	data, err := s.blobs.Get(ctx, latest)
	if IsNotFound(err) {
		// Pruned between List and Get by a concurrent replace.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read findings snapshot: %w", err)
	}
	var snap findingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode findings snapshot %s: %w", latest, err)
	}
	return snap.Findings, nil
}

// InsertScanHistory writes one history row.
func (s *FindingStore) InsertScanHistory(ctx context.Context, rec ScanRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scan record: %w", err)
	}
	key := "history/" + rec.AccountID + "/" + rec.ScanID + ".json"
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write scan record: %w", err)
	}
	return nil
}

// ScanHistory returns all history rows for the account, oldest first.
func (s *FindingStore) ScanHistory(ctx context.Context, accountID string) ([]ScanRecord, error) {
	keys, err := s.blobs.List(ctx, "history/"+accountID+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list scan history: %w", err)
	}
	sort.Strings(keys)

	out := make([]ScanRecord, 0, len(keys))
	for _, k := range keys {
		data, err := s.blobs.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("failed to read scan record %s: %w", k, err)
		}
		var rec ScanRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode scan record %s: %w", k, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// InsertAnomalies writes the anomalies detected by one run.
func (s *FindingStore) InsertAnomalies(ctx context.Context, accountID, scanID string, anomalies []anomaly.Anomaly) error {
	data, err := json.MarshalIndent(anomalies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode anomalies: %w", err)
	}
	key := "anomalies/" + accountID + "/" + scanID + ".json"
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write anomalies: %w", err)
	}
	return nil
}

// NewScanID derives a scan identifier from the wall clock. Ids sort in
// creation order, which ActiveFindings relies on.
func NewScanID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

var _ Store = (*FindingStore)(nil)
