package anomaly

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/evo-uds/cloudsweep/pkg/engine/awsapi"
)

// The cost API is only served out of us-east-1.
const costRegion = "us-east-1"

const dateLayout = "2006-01-02"

type costRequest struct {
	TimePeriod  costPeriod  `json:"TimePeriod"`
	Granularity string      `json:"Granularity"`
	Metrics     []string    `json:"Metrics"`
	GroupBy     []costGroup `json:"GroupBy,omitempty"`
}

type costPeriod struct {
	Start string `json:"Start"`
	End   string `json:"End"`
}

type costGroup struct {
	Type string `json:"Type"`
	Key  string `json:"Key"`
}

type costMetric struct {
	Amount string `json:"Amount"`
	Unit   string `json:"Unit"`
}

type costResponse struct {
	ResultsByTime []struct {
		TimePeriod costPeriod `json:"TimePeriod"`
		Groups     []struct {
			Keys    []string              `json:"Keys"`
			Metrics map[string]costMetric `json:"Metrics"`
		} `json:"Groups"`
	} `json:"ResultsByTime"`
}

// CostSource pulls the per-service daily unblended spend series from the
// cost API.
type CostSource struct {
	api *awsapi.Client
}

func NewCostSource(api *awsapi.Client) *CostSource {
	return &CostSource{api: api}
}

// DailyCosts returns up to lookbackDays of history ending yesterday, grouped
// by service. Days the API omits, such as before the account existed, are
// simply absent from the result.
func (s *CostSource) DailyCosts(ctx context.Context, now time.Time, lookbackDays int) ([]DailyCost, error) {
	end := now.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -lookbackDays)

	req := costRequest{
		TimePeriod:  costPeriod{Start: start.Format(dateLayout), End: end.Format(dateLayout)},
		Granularity: "DAILY",
		Metrics:     []string{"UnblendedCost"},
		GroupBy:     []costGroup{{Type: "DIMENSION", Key: "SERVICE"}},
	}
	var resp costResponse
	if err := s.api.PostJSON(ctx, costRegion, awsapi.ServiceCE, "GetCostAndUsage", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch cost history: %w", err)
	}

	var out []DailyCost
	for _, r := range resp.ResultsByTime {
		date, err := time.Parse(dateLayout, r.TimePeriod.Start)
		if err != nil {
			return nil, fmt.Errorf("unparseable cost date %q: %w", r.TimePeriod.Start, err)
		}
		for _, g := range r.Groups {
			if len(g.Keys) == 0 {
				continue
			}
			total, ok := g.Metrics["UnblendedCost"]
			if !ok {
				continue
			}
			amount, err := strconv.ParseFloat(total.Amount, 64)
			if err != nil {
				return nil, fmt.Errorf("unparseable cost amount %q for %s on %s: %w",
					total.Amount, g.Keys[0], r.TimePeriod.Start, err)
			}
			out = append(out, DailyCost{Date: date, Service: g.Keys[0], Amount: amount})
		}
	}
	return out, nil
}
