package classify

import (
	"fmt"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// Byte-volume cutoffs over the one-day gateway window.
const (
	gatewayIdleBytes = 1 << 20 // under 1 MiB/day: nothing real flows through
	gatewayLowBytes  = 1 << 30 // under 1 GiB/day: too little to justify the hourly rate
)

// Gateway flags NAT gateways by how much traffic they actually process.
// Confidence tracks the strength of the evidence: a near-zero byte count
// is 90, a merely low one 70, and a missing sample only 50.
func Gateway(d inventory.Descriptor, bytes *metrics.Sample, prices *pricing.Table) *Finding {
	if bytes == nil || !bytes.HasSum {
		monthly := prices.GatewayMonthly(0)
		return newFinding(d, WasteIdleGateway, monthly, networkSeverity(monthly), 50,
			"No traffic data for this NAT gateway. Verify routes still need it.")
	}

	daily := bytes.Sum
	monthly := prices.GatewayMonthly(daily * 30)

	var f *Finding
	switch {
	case daily < gatewayIdleBytes:
		f = newFinding(d, WasteIdleGateway, monthly, networkSeverity(monthly), 90,
			"NAT gateway processed almost no traffic in the last day. Delete it and its routes.")
	case daily < gatewayLowBytes:
		f = newFinding(d, WasteLowTrafficGateway, monthly, networkSeverity(monthly), 70,
			fmt.Sprintf("NAT gateway processed only %.0f MB in the last day. Consider consolidating.", daily/(1<<20)))
	default:
		return nil
	}
	f.Metrics = map[string]float64{"bytes_per_day": daily}
	return f
}
