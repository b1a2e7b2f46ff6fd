package inventory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

// fakeAPI serves canned responses keyed by Query Action or X-Amz-Target.
func fakeAPI(t *testing.T, responses map[string]string) *awsapi.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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

		resp, ok := responses[key]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	creds := credentials.NewStaticCredentialsProvider("AKID", "secret", "")
	return awsapi.NewClient(&creds, awsapi.WithBaseURL(srv.URL), awsapi.WithHTTPClient(srv.Client()))
}

func TestVolumesDecodeWithDefaults(t *testing.T) {
	api := fakeAPI(t, map[string]string{
		"DescribeVolumes": `<DescribeVolumesResponse>
			<volumeSet>
				<item>
					<volumeId>vol-unattached</volumeId>
					<size>100</size>
					<status>available</status>
					<createTime>2024-01-10T00:00:00.000Z</createTime>
				</item>
				<item>
					<volumeId>vol-attached</volumeId>
					<size>20</size>
					<volumeType>gp3</volumeType>
					<status>in-use</status>
					<attachmentSet><item><instanceId>i-1</instanceId></item></attachmentSet>
					<tagSet><item><key>Name</key><value>data</value></item></tagSet>
				</item>
			</volumeSet>
		</DescribeVolumesResponse>`,
	})

	vols, err := Volumes(context.Background(), api, "us-east-1")
	if err != nil {
		t.Fatalf("Volumes failed: %v", err)
	}
	if len(vols) != 2 {
		t.Fatalf("expected 2 volumes, got %d", len(vols))
	}

	// Missing volumeType falls back to the cheapest tier instead of failing.
	if got := vols[0].Str("volume_type", ""); got != "standard" {
		t.Errorf("expected default volume type standard, got %q", got)
	}
	if vols[0].Bool("attached") {
		t.Error("vol-unattached should not be attached")
	}
	if vols[0].Time("created").IsZero() {
		t.Error("createTime should have parsed")
	}

	if vols[1].Name != "data" {
		t.Errorf("expected Name tag to resolve, got %q", vols[1].Name)
	}
	if !vols[1].Bool("attached") {
		t.Error("vol-attached should be attached")
	}
}

func TestInstancesSkipsStopped(t *testing.T) {
	api := fakeAPI(t, map[string]string{
		"DescribeInstances": `<DescribeInstancesResponse>
			<reservationSet><item><instancesSet>
				<item>
					<instanceId>i-running</instanceId>
					<instanceState><name>running</name></instanceState>
				</item>
				<item>
					<instanceId>i-stopped</instanceId>
					<instanceType>m5.large</instanceType>
					<instanceState><name>stopped</name></instanceState>
				</item>
			</instancesSet></item></reservationSet>
		</DescribeInstancesResponse>`,
	})

	instances, err := Instances(context.Background(), api, "us-east-1")
	if err != nil {
		t.Fatalf("Instances failed: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("expected only the running instance, got %d", len(instances))
	}
	// Missing instanceType defaults to the baseline class.
	if got := instances[0].Str("instance_class", ""); got != "t3.micro" {
		t.Errorf("expected baseline class, got %q", got)
	}
}

func TestClustersListThenDescribe(t *testing.T) {
	api := fakeAPI(t, map[string]string{
		"ListClusters":     `{"clusterArns":["arn:aws:ecs:us-east-1:1:cluster/empty"]}`,
		"DescribeClusters": `{"clusters":[{"clusterArn":"arn:aws:ecs:us-east-1:1:cluster/empty","clusterName":"empty","status":"ACTIVE","runningTasksCount":0,"activeServicesCount":0,"registeredContainerInstancesCount":0}]}`,
	})

	clusters, err := Clusters(context.Background(), api, "us-east-1")
	if err != nil {
		t.Fatalf("Clusters failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Int("running_tasks", -1) != 0 {
		t.Error("running task count should decode as 0")
	}
}

func TestEnumerationErrorCarriesScope(t *testing.T) {
	api := fakeAPI(t, map[string]string{}) // every action 400s

	_, err := Databases(context.Background(), api, "eu-west-1")
	if err == nil {
		t.Fatal("expected enumeration error")
	}

	var ee *EnumerationError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EnumerationError, got %T", err)
	}
	if ee.Kind != KindDatabase || ee.Region != "eu-west-1" {
		t.Errorf("wrong scope: %s/%s", ee.Kind, ee.Region)
	}

	var ue *awsapi.UpstreamError
	if !errors.As(err, &ue) {
		t.Error("enumeration error should wrap the upstream error")
	}
}

func TestFunctionsPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("Marker") == "" {
			w.Write([]byte(`{"Functions":[{"FunctionName":"a","FunctionArn":"arn:a","MemorySize":256}],"NextMarker":"m1"}`))
			return
		}
		w.Write([]byte(`{"Functions":[{"FunctionName":"b"}]}`))
	}))
	defer srv.Close()

	creds := credentials.NewStaticCredentialsProvider("AKID", "secret", "")
	api := awsapi.NewClient(&creds, awsapi.WithBaseURL(srv.URL), awsapi.WithHTTPClient(srv.Client()))

	fns, err := Functions(context.Background(), api, "us-east-1")
	if err != nil {
		t.Fatalf("Functions failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 pages, got %d", calls)
	}
	if len(fns) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(fns))
	}
	// Missing memory size defaults to the minimum allocation.
	if fns[1].Int("memory_mb", 0) != 128 {
		t.Errorf("expected default memory 128, got %d", fns[1].Int("memory_mb", 0))
	}
}
