package inventory

import (
	"context"
	"strings"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

type describeLoadBalancersResponse struct {
	Result struct {
		LoadBalancers []struct {
			ARN     string `xml:"LoadBalancerArn"`
			Name    string `xml:"LoadBalancerName"`
			Type    string `xml:"Type"`
			Created string `xml:"CreatedTime"`
			State   struct {
				Code string `xml:"Code"`
			} `xml:"State"`
		} `xml:"LoadBalancers>member"`
	} `xml:"DescribeLoadBalancersResult"`
}

// LoadBalancers enumerates application and network load balancers in one region.
func LoadBalancers(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var resp describeLoadBalancersResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceELB, "DescribeLoadBalancers", nil, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindLoadBalancer, Region: region, Err: err}
	}

	var out []Descriptor
	for _, lb := range resp.Result.LoadBalancers {
		if lb.ARN == "" || lb.State.Code != "active" {
			continue
		}
		lbType := lb.Type
		if lbType == "" {
			lbType = "application"
		}
		out = append(out, Descriptor{
			Kind:   KindLoadBalancer,
			ID:     lb.ARN,
			Name:   lb.Name,
			Region: region,
			Attrs: map[string]any{
				"lb_type": lbType,
				"state":   lb.State.Code,
				"created": parseTime(lb.Created),
				// CloudWatch dimensions use the trailing ARN segments.
				"metric_dimension": metricDimensionFromARN(lb.ARN),
			},
		})
	}
	return out, nil
}

// metricDimensionFromARN extracts the "app/name/id" suffix CloudWatch keys
// load balancer metrics by. Falls back to the raw ARN when the shape is
// unexpected.
func metricDimensionFromARN(arn string) string {
	const marker = ":loadbalancer/"
	if i := strings.Index(arn, marker); i >= 0 {
		return arn[i+len(marker):]
	}
	return arn
}
