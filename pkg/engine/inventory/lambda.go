package inventory

import (
	"context"
	"net/url"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

type listFunctionsResponse struct {
	Functions []struct {
		FunctionName string `json:"FunctionName"`
		FunctionArn  string `json:"FunctionArn"`
		Runtime      string `json:"Runtime"`
		MemorySize   int    `json:"MemorySize"`
		LastModified string `json:"LastModified"`
	} `json:"Functions"`
	NextMarker string `json:"NextMarker"`
}

// Functions enumerates serverless functions in one region, following the
// REST pagination marker.
func Functions(ctx context.Context, api *awsapi.Client, region string) ([]Descriptor, error) {
	var out []Descriptor
	marker := ""

	for {
		query := url.Values{"MaxItems": {"50"}}
		if marker != "" {
			query.Set("Marker", marker)
		}

		var resp listFunctionsResponse
		if err := api.GetJSON(ctx, region, awsapi.ServiceLambda, "/2015-03-31/functions/", query, &resp); err != nil {
			return nil, &EnumerationError{Kind: KindFunction, Region: region, Err: err}
		}

		for _, fn := range resp.Functions {
			if fn.FunctionName == "" {
				continue
			}
			memory := fn.MemorySize
			if memory == 0 {
				memory = 128
			}
			id := fn.FunctionArn
			if id == "" {
				id = fn.FunctionName
			}
			out = append(out, Descriptor{
				Kind:   KindFunction,
				ID:     id,
				Name:   fn.FunctionName,
				Region: region,
				Attrs: map[string]any{
					"runtime":   fn.Runtime,
					"memory_mb": memory,
					"modified":  parseTime(fn.LastModified),
				},
			})
		}

		if resp.NextMarker == "" {
			return out, nil
		}
		marker = resp.NextMarker
	}
}
