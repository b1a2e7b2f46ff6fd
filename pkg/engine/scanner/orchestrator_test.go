package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evo-uds/cloudsweep/pkg/engine/anomaly"
	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
	"github.com/evo-uds/cloudsweep/pkg/engine/classify"
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
	"github.com/evo-uds/cloudsweep/pkg/engine/store"
)

// healthyResponses serves an empty but valid answer for every enumeration,
// with one unattached volume as the single piece of waste.
func healthyResponses() map[string]string {
	return map[string]string{
		"DescribeVolumes": `<DescribeVolumesResponse><volumeSet><item>
			<volumeId>vol-1</volumeId><size>100</size><volumeType>gp3</volumeType>
			<status>available</status><createTime>2024-01-10T00:00:00.000Z</createTime>
		</item></volumeSet></DescribeVolumesResponse>`,
		"DescribeSnapshots":      `<DescribeSnapshotsResponse><snapshotSet/></DescribeSnapshotsResponse>`,
		"DescribeAddresses":      `<DescribeAddressesResponse><addressesSet/></DescribeAddressesResponse>`,
		"DescribeInstances":      `<DescribeInstancesResponse><reservationSet/></DescribeInstancesResponse>`,
		"DescribeDBInstances":    `<DescribeDBInstancesResponse><DescribeDBInstancesResult><DBInstances/></DescribeDBInstancesResult></DescribeDBInstancesResponse>`,
		"DescribeNatGateways":    `<DescribeNatGatewaysResponse><natGatewaySet/></DescribeNatGatewaysResponse>`,
		"DescribeImages":         `<DescribeImagesResponse><imagesSet/></DescribeImagesResponse>`,
		"ListClusters":           `{"clusterArns":[]}`,
		"/2015-03-31/functions/": `{"Functions":[]}`,
		"DescribeLoadBalancers":  `<DescribeLoadBalancersResponse><DescribeLoadBalancersResult><LoadBalancers/></DescribeLoadBalancersResult></DescribeLoadBalancersResponse>`,
	}
}

// fakeAPI routes by Query Action, X-Amz-Target, or GET path, and can fail
// whole regions or single actions. The request's region comes out of the
// SigV4 credential scope.
func fakeAPI(t *testing.T, responses map[string]string, failRegions, failActions map[string]bool) *awsapi.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failRegions[credentialRegion(r)] {
			http.Error(w, "unreachable", http.StatusInternalServerError)
			return
		}

		key := r.Header.Get("X-Amz-Target")
		if key == "" {
			body, _ := io.ReadAll(r.Body)
			for action := range responses {
				if strings.Contains(string(body), "Action="+action) {
					key = action
					break
				}
			}
			if key == "" && r.Method == http.MethodGet {
				key = r.URL.Path
			}
		} else {
			key = key[strings.LastIndex(key, ".")+1:]
		}

		if failActions[key] {
			http.Error(w, "throttled", http.StatusInternalServerError)
			return
		}
		resp, ok := responses[key]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	creds := credentials.NewStaticCredentialsProvider("AKID", "secret", "")
	return awsapi.NewClient(&creds, awsapi.WithBaseURL(srv.URL), awsapi.WithHTTPClient(srv.Client()))
}

// credentialRegion pulls the region out of the Authorization header's
// credential scope: AKID/date/region/service/aws4_request.
func credentialRegion(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	_, rest, ok := strings.Cut(auth, "Credential=")
	if !ok {
		return ""
	}
	parts := strings.SplitN(rest, "/", 5)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

type memStore struct {
	mu         sync.Mutex
	ops        []string
	history    []store.ScanRecord
	failInsert bool
}

func (m *memStore) InsertFindings(ctx context.Context, accountID, scanID string, findings []classify.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return errors.New("store unavailable")
	}
	m.ops = append(m.ops, "insert")
	return nil
}

func (m *memStore) DeleteActiveFindings(ctx context.Context, accountID, exceptScanID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "delete")
	return nil
}

func (m *memStore) ActiveFindings(ctx context.Context, accountID string) ([]classify.Finding, error) {
	return nil, nil
}

func (m *memStore) InsertScanHistory(ctx context.Context, rec store.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "history")
	m.history = append(m.history, rec)
	return nil
}

func (m *memStore) InsertAnomalies(ctx context.Context, accountID, scanID string, anomalies []anomaly.Anomaly) error {
	return nil
}

func newTestScanner(api *awsapi.Client, st store.Store) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetcher := metrics.NewFetcher(api, logger)
	return New(api, fetcher, pricing.Default(), st, logger,
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }))
}

func TestRunMergesRegions(t *testing.T) {
	api := fakeAPI(t, healthyResponses(), nil, nil)
	st := &memStore{}
	s := newTestScanner(api, st)

	report, err := s.Run(context.Background(), "111122223333", []string{"us-east-1", "eu-west-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.WasteCount)
	assert.InDelta(t, 16.0, report.Summary.TotalMonthlyWaste, 1e-9)
	assert.InDelta(t, 192.0, report.Summary.TotalYearlyWaste, 1e-9)
	assert.Equal(t, 2, report.Summary.ByKind[inventory.KindVolume])
	assert.Equal(t, 2, report.Summary.BySeverity[classify.SeverityMedium])
	assert.Equal(t, StatusCompleted, report.Summary.Status)
	assert.Empty(t, report.Summary.FailedRegions)

	regions := map[string]bool{}
	for _, f := range report.Findings {
		assert.Equal(t, "111122223333", f.AccountID)
		regions[f.Region] = true
	}
	assert.Len(t, regions, 2)

	// New snapshot lands before the old one is removed.
	assert.Equal(t, []string{"insert", "delete", "history"}, st.ops)

	// The history row carries the full breakdowns, not just scalar totals.
	require.Len(t, st.history, 1)
	rec := st.history[0]
	assert.Equal(t, 2, rec.WasteCount)
	assert.Equal(t, 2, rec.BySeverity[classify.SeverityMedium])
	assert.Equal(t, 2, rec.ByWasteType[classify.WasteUnattachedVolume])
	assert.Equal(t, 2, rec.ByKind[inventory.KindVolume])
}

func TestRunIsolatesFailedRegion(t *testing.T) {
	api := fakeAPI(t, healthyResponses(), map[string]bool{"eu-west-1": true}, nil)
	st := &memStore{}
	s := newTestScanner(api, st)

	report, err := s.Run(context.Background(), "acct", []string{"us-east-1", "eu-west-1"})
	require.NoError(t, err, "a broken region must not fail the run")

	assert.Equal(t, 1, report.Summary.WasteCount)
	assert.Equal(t, []string{"eu-west-1"}, report.Summary.FailedRegions)
	assert.Equal(t, StatusPartial, report.Summary.Status)
	for _, f := range report.Findings {
		assert.Equal(t, "us-east-1", f.Region)
	}

	require.Len(t, st.history, 1)
	assert.Equal(t, []string{"eu-west-1"}, st.history[0].FailedRegions)
	assert.Equal(t, StatusPartial, st.history[0].Status)
}

func TestRunIsolatesFailedKind(t *testing.T) {
	api := fakeAPI(t, healthyResponses(), nil, map[string]bool{"DescribeSnapshots": true})
	st := &memStore{}
	s := newTestScanner(api, st)

	report, err := s.Run(context.Background(), "acct", []string{"us-east-1"})
	require.NoError(t, err)

	// The volume finding survives its neighbor kind's failure, and one
	// broken kind does not condemn the region.
	assert.Equal(t, 1, report.Summary.WasteCount)
	assert.Empty(t, report.Summary.FailedRegions)
	assert.Equal(t, StatusCompleted, report.Summary.Status)
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	api := fakeAPI(t, healthyResponses(), nil, nil)
	st := &memStore{failInsert: true}
	s := newTestScanner(api, st)

	_, err := s.Run(context.Background(), "acct", []string{"us-east-1"})
	require.Error(t, err)
	assert.NotContains(t, st.ops, "delete", "prior findings must survive a failed insert")
}

func TestRunEmptyAccount(t *testing.T) {
	responses := healthyResponses()
	responses["DescribeVolumes"] = `<DescribeVolumesResponse><volumeSet/></DescribeVolumesResponse>`
	api := fakeAPI(t, responses, nil, nil)
	st := &memStore{}
	s := newTestScanner(api, st)

	report, err := s.Run(context.Background(), "acct", []string{"us-east-1"})
	require.NoError(t, err)
	assert.Zero(t, report.Summary.WasteCount)
	assert.Equal(t, []string{"insert", "delete", "history"}, st.ops, "an empty scan still replaces the active set")
}
