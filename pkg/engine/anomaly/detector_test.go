package anomaly

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

func day(n int) time.Time {
	return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func flatHistory(service string, days int, amount float64) []DailyCost {
	out := make([]DailyCost, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, DailyCost{Date: day(i), Service: service, Amount: amount})
	}
	return out
}

func TestDetectSingleSpike(t *testing.T) {
	d := NewDetector(7, 25)
	history := append(flatHistory("Amazon EC2", 10, 100),
		DailyCost{Date: day(10), Service: "Amazon EC2", Amount: 130})

	res := d.Detect(history)
	assert.False(t, res.Insufficient)
	require.Len(t, res.Anomalies, 1)

	a := res.Anomalies[0]
	assert.Equal(t, day(10), a.Date)
	assert.Equal(t, "Amazon EC2", a.Service)
	assert.InDelta(t, 100, a.Baseline, 1e-9)
	assert.InDelta(t, 30, a.DeviationPct, 1e-9)
	assert.Equal(t, DirectionSpike, a.Direction)
	assert.Equal(t, SeverityMedium, a.Severity)

	assert.Equal(t, 1, res.Summary.Spikes)
	assert.Equal(t, 1, res.Summary.BySeverity[SeverityMedium])
	assert.InDelta(t, 30, res.Summary.TotalDeviation, 1e-9)
}

func TestDetectInsufficientHistory(t *testing.T) {
	d := NewDetector(7, 25)

	res := d.Detect(flatHistory("Amazon EC2", 5, 100))
	assert.True(t, res.Insufficient)
	assert.Empty(t, res.Anomalies)
	assert.Contains(t, res.Message, "have 5 days, need 7")
	assert.Equal(t, 5, res.Summary.DaysObserved)
}

func TestDetectThresholdIsStrict(t *testing.T) {
	d := NewDetector(7, 25)

	at := append(flatHistory("svc", 10, 100), DailyCost{Date: day(10), Service: "svc", Amount: 125})
	assert.Empty(t, d.Detect(at).Anomalies, "exactly 25%% must not flag")

	over := append(flatHistory("svc", 10, 100), DailyCost{Date: day(10), Service: "svc", Amount: 126})
	assert.Len(t, d.Detect(over).Anomalies, 1)
}

func TestDetectDropDirection(t *testing.T) {
	d := NewDetector(7, 25)
	history := append(flatHistory("svc", 10, 100), DailyCost{Date: day(10), Service: "svc", Amount: 40})

	res := d.Detect(history)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, DirectionDrop, res.Anomalies[0].Direction)
	assert.InDelta(t, -60, res.Anomalies[0].DeviationPct, 1e-9)
	assert.Equal(t, SeverityHigh, res.Anomalies[0].Severity)
	assert.Equal(t, 1, res.Summary.Drops)
}

func TestDetectPerServiceBaselines(t *testing.T) {
	d := NewDetector(7, 25)

	// EC2 is steady; S3 spikes on the last day. Only S3 is flagged.
	history := append(flatHistory("Amazon EC2", 11, 100), flatHistory("Amazon S3", 10, 10)...)
	history = append(history, DailyCost{Date: day(10), Service: "Amazon S3", Amount: 20})

	res := d.Detect(history)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, "Amazon S3", res.Anomalies[0].Service)
	assert.Equal(t, SeverityCritical, res.Anomalies[0].Severity)
	assert.Equal(t, 2, res.Summary.ServicesObserved)
}

func TestSeverityBuckets(t *testing.T) {
	assert.Equal(t, SeverityMedium, severityFor(30))
	assert.Equal(t, SeverityMedium, severityFor(50))
	assert.Equal(t, SeverityHigh, severityFor(51))
	assert.Equal(t, SeverityHigh, severityFor(75))
	assert.Equal(t, SeverityCritical, severityFor(76))
}

func TestDetectUnsortedInput(t *testing.T) {
	d := NewDetector(7, 25)
	history := append([]DailyCost{{Date: day(10), Service: "svc", Amount: 200}},
		flatHistory("svc", 10, 100)...)

	res := d.Detect(history)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, day(10), res.Anomalies[0].Date)
}

func TestCostSourceParsesDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AWSInsightsIndexService.GetCostAndUsage", r.Header.Get("X-Amz-Target"))
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_, _ = w.Write([]byte(`{"ResultsByTime":[
			{"TimePeriod":{"Start":"2026-02-01","End":"2026-02-02"},"Groups":[
				{"Keys":["Amazon EC2"],"Metrics":{"UnblendedCost":{"Amount":"100.5","Unit":"USD"}}},
				{"Keys":["Amazon S3"],"Metrics":{"UnblendedCost":{"Amount":"2.25","Unit":"USD"}}}
			]},
			{"TimePeriod":{"Start":"2026-02-02","End":"2026-02-03"},"Groups":[
				{"Keys":["Amazon EC2"],"Metrics":{"UnblendedCost":{"Amount":"99.5","Unit":"USD"}}}
			]}
		]}`))
	}))
	defer srv.Close()

	api := awsapi.NewClient(
		credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		awsapi.WithBaseURL(srv.URL),
	)
	src := NewCostSource(api)

	costs, err := src.DailyCosts(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 30)
	require.NoError(t, err)
	require.Len(t, costs, 3)
	assert.Equal(t, "Amazon EC2", costs[0].Service)
	assert.Equal(t, 100.5, costs[0].Amount)
	assert.Equal(t, day(0), costs[0].Date)
	assert.Equal(t, "Amazon S3", costs[1].Service)
}

func TestCostSourceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"__type":"LimitExceededException"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	api := awsapi.NewClient(
		credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		awsapi.WithBaseURL(srv.URL),
	)
	src := NewCostSource(api)

	_, err := src.DailyCosts(context.Background(), time.Now(), 30)
	var upstream *awsapi.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
}
