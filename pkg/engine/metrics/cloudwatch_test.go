package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInstanceCPUFoldsDatapoints(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`<GetMetricStatisticsResponse>
			<GetMetricStatisticsResult>
				<Datapoints>
					<member><Average>2.0</Average><Maximum>8.0</Maximum></member>
					<member><Average>4.0</Average><Maximum>6.0</Maximum></member>
				</Datapoints>
			</GetMetricStatisticsResult>
		</GetMetricStatisticsResponse>`))
	}))
	defer srv.Close()

	creds := credentials.NewStaticCredentialsProvider("AKID", "secret", "")
	api := awsapi.NewClient(&creds, awsapi.WithBaseURL(srv.URL), awsapi.WithHTTPClient(srv.Client()))
	f := NewFetcher(api, discardLogger())

	instances := []inventory.Descriptor{{Kind: inventory.KindInstance, ID: "i-1", Region: "us-east-1"}}
	got := f.InstanceCPU(context.Background(), "us-east-1", instances)

	s, ok := got["i-1"]
	if !ok {
		t.Fatal("expected sample for i-1")
	}
	if !s.HasAverage || s.Average != 3.0 {
		t.Errorf("expected mean average 3.0, got %+v", s)
	}
	if !s.HasMaximum || s.Maximum != 8.0 {
		t.Errorf("expected maximum 8.0, got %+v", s)
	}
	if s.HasSum {
		t.Error("no Sum datapoints were returned; HasSum must stay false")
	}

	if !strings.Contains(gotBody, "Namespace=AWS%2FEC2") {
		t.Errorf("namespace missing from request body: %s", gotBody)
	}
	if !strings.Contains(gotBody, "Dimensions.member.1.Value=i-1") {
		t.Errorf("dimension missing from request body: %s", gotBody)
	}
}

func TestFetchFailureYieldsMissingEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	creds := credentials.NewStaticCredentialsProvider("AKID", "secret", "")
	api := awsapi.NewClient(&creds, awsapi.WithBaseURL(srv.URL), awsapi.WithHTTPClient(srv.Client()))
	f := NewFetcher(api, discardLogger())

	got := f.GatewayBytes(context.Background(), "us-east-1", []inventory.Descriptor{
		{Kind: inventory.KindGateway, ID: "nat-1", Region: "us-east-1"},
	})

	// Failure degrades to "no data"; the id must be absent, not zeroed.
	if _, ok := got["nat-1"]; ok {
		t.Error("failed fetch should not produce a sample entry")
	}
}

func TestCollectCapsResourceCount(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`<GetMetricStatisticsResponse><GetMetricStatisticsResult><Datapoints/></GetMetricStatisticsResult></GetMetricStatisticsResponse>`))
	}))
	defer srv.Close()

	creds := credentials.NewStaticCredentialsProvider("AKID", "secret", "")
	api := awsapi.NewClient(&creds, awsapi.WithBaseURL(srv.URL), awsapi.WithHTTPClient(srv.Client()), awsapi.WithRateLimit(1000))
	f := NewFetcher(api, discardLogger())

	var many []inventory.Descriptor
	for i := 0; i < 30; i++ {
		many = append(many, inventory.Descriptor{Kind: inventory.KindInstance, ID: string(rune('a' + i))})
	}
	f.InstanceCPU(context.Background(), "us-east-1", many)

	if calls != maxInstances {
		t.Errorf("expected %d metric calls, got %d", maxInstances, calls)
	}
}
