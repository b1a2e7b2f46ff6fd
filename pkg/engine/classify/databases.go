package classify

import (
	"fmt"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// Database applies the same CPU tiers as Instance to managed database
// instances. The connection count sample is attached as supporting
// evidence when present but does not change the tier.
func Database(d inventory.Descriptor, cpu, connections *metrics.Sample, prices *pricing.Table, rules Rules) *Finding {
	class := d.Str("instance_class", "")
	monthly := prices.DatabaseMonthly(class, d.Bool("multi_az"))

	if cpu == nil || !cpu.HasAverage {
		return newFinding(d, WastePotentialIdle, monthly, computeSeverity(monthly), 60,
			fmt.Sprintf("No CPU data for this %s database. Verify it is in use before acting.", class))
	}

	avg := cpu.Average
	var f *Finding
	switch {
	case avg < rules.IdleCPUPct && cpu.HasMaximum && cpu.Maximum < rules.IdleMaxCPUPct:
		f = newFinding(d, WasteIdleDatabase, monthly, computeSeverity(monthly), 95,
			fmt.Sprintf("Average CPU %.1f%%, peak %.1f%%. Snapshot and stop the database.", avg, cpu.Maximum))
	case avg < rules.UnderusedCPUPct:
		f = newFinding(d, WasteUnderusedDatabase, monthly, computeSeverity(monthly), 80,
			fmt.Sprintf("Average CPU %.1f%%. Downsize from %s to a smaller class.", avg, class))
	case avg < rules.LowCPUPct:
		f = newFinding(d, WasteUnderusedDatabase, monthly, computeSeverity(monthly), 65,
			fmt.Sprintf("Average CPU %.1f%%. Review whether %s is the right class.", avg, class))
	default:
		return nil
	}

	f.Metrics = map[string]float64{"cpu_avg": avg}
	if cpu.HasMaximum {
		f.Metrics["cpu_max"] = cpu.Maximum
	}
	if connections != nil && connections.HasAverage {
		f.Metrics["connections_avg"] = connections.Average
	}
	return f
}
