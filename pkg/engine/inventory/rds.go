package inventory

import (
	"context"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

const defaultDatabaseClass = "db.t3.micro"

type describeDBInstancesResponse struct {
	Result struct {
		Instances []struct {
			Identifier string `xml:"DBInstanceIdentifier"`
			Class      string `xml:"DBInstanceClass"`
			Engine     string `xml:"Engine"`
			Status     string `xml:"DBInstanceStatus"`
			MultiAZ    bool   `xml:"MultiAZ"`
			Storage    int    `xml:"AllocatedStorage"`
			Created    string `xml:"InstanceCreateTime"`
		} `xml:"DBInstances>DBInstance"`
	} `xml:"DescribeDBInstancesResult"`
}

// Databases enumerates managed database instances in one region.
func Databases(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var resp describeDBInstancesResponse
	if err := api.QueryXML(ctx, region, awsapi.ServiceRDS, "DescribeDBInstances", nil, &resp); err != nil {
		return nil, &EnumerationError{Kind: KindDatabase, Region: region, Err: err}
	}

	var out []Descriptor
	for _, db := range resp.Result.Instances {
		if db.Identifier == "" || db.Status != "available" {
			continue
		}
		class := db.Class
		if class == "" {
			class = defaultDatabaseClass
		}
		out = append(out, Descriptor{
			Kind:   KindDatabase,
			ID:     db.Identifier,
			Name:   db.Identifier,
			Region: region,
			Attrs: map[string]any{
				"instance_class": class,
				"engine":         db.Engine,
				"state":          db.Status,
				"multi_az":       db.MultiAZ,
				"storage_gb":     db.Storage,
				"created":        parseTime(db.Created),
			},
		})
	}
	return out, nil
}
