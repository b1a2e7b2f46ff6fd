package inventory

import (
	"context"
	"strings"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

type listClustersResponse struct {
	ClusterArns []string `json:"clusterArns"`
}

type describeClustersRequest struct {
	Clusters []string `json:"clusters"`
}

type describeClustersResponse struct {
	Clusters []struct {
		ClusterArn                        string `json:"clusterArn"`
		ClusterName                       string `json:"clusterName"`
		Status                            string `json:"status"`
		RunningTasksCount                 int    `json:"runningTasksCount"`
		ActiveServicesCount               int    `json:"activeServicesCount"`
		RegisteredContainerInstancesCount int    `json:"registeredContainerInstancesCount"`
	} `json:"clusters"`
}

// Clusters enumerates container clusters in one region. This is the one
// list-then-describe enumerator: ARNs first, then a batch describe for
// task and service counts.
func Clusters(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var list listClustersResponse
	if err := api.PostJSON(ctx, region, awsapi.ServiceECS, "ListClusters", nil, &list); err != nil {
		return nil, &EnumerationError{Kind: KindCluster, Region: region, Err: err}
	}
	if len(list.ClusterArns) == 0 {
		return nil, nil
	}

	var desc describeClustersResponse
	req := describeClustersRequest{Clusters: list.ClusterArns}
	if err := api.PostJSON(ctx, region, awsapi.ServiceECS, "DescribeClusters", req, &desc); err != nil {
		return nil, &EnumerationError{Kind: KindCluster, Region: region, Err: err}
	}

	var out []Descriptor
	for _, c := range desc.Clusters {
		if c.ClusterArn == "" || c.Status != "ACTIVE" {
			continue
		}
		name := c.ClusterName
		if name == "" {
			if i := strings.LastIndex(c.ClusterArn, "/"); i >= 0 {
				name = c.ClusterArn[i+1:]
			}
		}
		out = append(out, Descriptor{
			Kind:   KindCluster,
			ID:     c.ClusterArn,
			Name:   name,
			Region: region,
			Attrs: map[string]any{
				"state":                c.Status,
				"running_tasks":        c.RunningTasksCount,
				"active_services":      c.ActiveServicesCount,
				"registered_instances": c.RegisteredContainerInstancesCount,
			},
		})
	}
	return out, nil
}
