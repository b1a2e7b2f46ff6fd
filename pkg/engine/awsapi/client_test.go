package awsapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testCreds() *credentials.StaticCredentialsProvider {
	p := credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", "")
	return &p
}

func TestQueryXMLSignsAndDecodes(t *testing.T) {
	var gotAuth, gotBody, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`<DescribeVolumesResponse><volumeSet><item><volumeId>vol-1</volumeId><size>100</size></item></volumeSet></DescribeVolumesResponse>`))
	}))
	defer srv.Close()

	c := NewClient(testCreds(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	var out struct {
		Volumes []struct {
			VolumeID string `xml:"volumeId"`
			Size     int    `xml:"size"`
		} `xml:"volumeSet>item"`
	}
	err := c.QueryXML(context.Background(), "us-east-1", ServiceEC2, "DescribeVolumes", nil, &out)
	require.NoError(t, err)

	require.Len(t, out.Volumes, 1)
	assert.Equal(t, "vol-1", out.Volumes[0].VolumeID)
	assert.Equal(t, 100, out.Volumes[0].Size)

	assert.Contains(t, gotAuth, "AWS4-HMAC-SHA256")
	assert.Contains(t, gotAuth, "/us-east-1/ec2/aws4_request")
	assert.Contains(t, gotBody, "Action=DescribeVolumes")
	assert.Contains(t, gotBody, "Version=2016-11-15")
	assert.Contains(t, gotContentType, "x-www-form-urlencoded")
}

func TestPostJSONSetsTarget(t *testing.T) {
	var gotTarget string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTarget = r.Header.Get("X-Amz-Target")
		w.Write([]byte(`{"clusterArns":["arn:aws:ecs:us-east-1:1:cluster/a"]}`))
	}))
	defer srv.Close()

	c := NewClient(testCreds(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	var out struct {
		ClusterArns []string `json:"clusterArns"`
	}
	err := c.PostJSON(context.Background(), "us-east-1", ServiceECS, "ListClusters", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "AmazonEC2ContainerServiceV20141113.ListClusters", gotTarget)
	require.Len(t, out.ClusterArns, 1)
}

func TestNon2xxReturnsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	c := NewClient(testCreds(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	err := c.QueryXML(context.Background(), "us-east-1", ServiceRDS, "DescribeDBInstances", nil, &struct{}{})
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
	assert.Equal(t, "DescribeDBInstances", ue.Action)
	// Body is truncated so logs stay bounded.
	assert.Len(t, ue.Body, maxErrorBody)
}

func TestRateLimitedBurstSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`<DescribeVolumesResponse/>`))
	}))
	defer srv.Close()

	c := NewClient(testCreds(),
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(1000))

	for i := 0; i < 10; i++ {
		err := c.QueryXML(context.Background(), "us-east-1", ServiceEC2, "DescribeVolumes", nil, &struct{}{})
		require.NoError(t, err)
	}
	assert.Equal(t, 10, calls)
}

func TestZeroRateKeepsDefaultLimiter(t *testing.T) {
	c := NewClient(testCreds(), WithRateLimit(0))
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(20), c.limiter.Limit())
}

func TestUnknownQueryServiceRejected(t *testing.T) {
	c := NewClient(testCreds())
	err := c.QueryXML(context.Background(), "us-east-1", ServiceECS, "ListClusters", nil, &struct{}{})
	require.Error(t, err)
}
