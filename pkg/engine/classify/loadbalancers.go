package classify

import (
	"fmt"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// LoadBalancer flags balancers by request volume over the one-day window,
// with the same evidence-driven confidence ladder as Gateway.
func LoadBalancer(d inventory.Descriptor, requests *metrics.Sample, prices *pricing.Table, rules Rules) *Finding {
	monthly := prices.BalancerMonthly()

	if requests == nil || !requests.HasSum {
		return newFinding(d, WasteIdleBalancer, monthly, networkSeverity(monthly), 50,
			"No request data for this load balancer. Verify it still has targets.")
	}

	perDay := requests.Sum
	var f *Finding
	switch {
	case perDay < rules.BalancerIdleReqPerDay:
		f = newFinding(d, WasteIdleBalancer, monthly, networkSeverity(monthly), 90,
			fmt.Sprintf("Load balancer served %.0f requests in the last day. Delete it.", perDay))
	case perDay < rules.BalancerLowReqPerDay:
		f = newFinding(d, WasteLowTrafficLB, monthly, networkSeverity(monthly), 70,
			fmt.Sprintf("Load balancer served only %.0f requests in the last day. Consider consolidating.", perDay))
	default:
		return nil
	}
	f.Metrics = map[string]float64{"requests_per_day": perDay}
	return f
}
