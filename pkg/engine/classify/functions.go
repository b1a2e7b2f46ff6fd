package classify

import (
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/metrics"
)

// Function flags functions whose invocation count over the long window is
// exactly zero. A missing sample is not zero: without positive evidence of
// no invocations, nothing is flagged. Idle functions bill nothing, so the
// cost estimate is zero.
func Function(d inventory.Descriptor, invocations *metrics.Sample) *Finding {
	if invocations == nil || !invocations.HasSum || invocations.Sum != 0 {
		return nil
	}
	return newFinding(d, WasteUnusedFunction, 0, SeverityLow, 95,
		"Function had zero invocations in the last 30 days. Delete it or archive the code.")
}
