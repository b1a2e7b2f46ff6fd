package classify

import (
	"fmt"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// Instance flags running instances by CPU utilization over the compute
// window. With no sample the instance is still reported, at confidence 60:
// absent metrics are weaker evidence than an observed idle curve, never
// stronger.
func Instance(d inventory.Descriptor, cpu *metrics.Sample, prices *pricing.Table, rules Rules) *Finding {
	class := d.Str("instance_class", "")
	monthly := prices.InstanceMonthly(class)

	if cpu == nil || !cpu.HasAverage {
		return newFinding(d, WastePotentialIdle, monthly, computeSeverity(monthly), 60,
			fmt.Sprintf("No CPU data for this %s instance. Verify it is in use before acting.", class))
	}

	avg := cpu.Average
	var f *Finding
	switch {
	case avg < rules.IdleCPUPct && cpu.HasMaximum && cpu.Maximum < rules.IdleMaxCPUPct:
		f = newFinding(d, WasteIdleResource, monthly, computeSeverity(monthly), 95,
			fmt.Sprintf("Average CPU %.1f%%, peak %.1f%%. Stop or terminate the instance.", avg, cpu.Maximum))
	case avg < rules.UnderusedCPUPct:
		f = newFinding(d, WasteUnderutilized, monthly, computeSeverity(monthly), 80,
			fmt.Sprintf("Average CPU %.1f%%. Downsize from %s to a smaller class.", avg, class))
	case avg < rules.LowCPUPct:
		f = newFinding(d, WasteLowUtilization, monthly, computeSeverity(monthly), 65,
			fmt.Sprintf("Average CPU %.1f%%. Review whether %s is the right class.", avg, class))
	default:
		return nil
	}

	f.Metrics = map[string]float64{"cpu_avg": avg}
	if cpu.HasMaximum {
		f.Metrics["cpu_max"] = cpu.Maximum
	}
	return f
}
