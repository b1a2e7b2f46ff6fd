package classify

import (
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
)

// Cluster flags container clusters that are completely empty: zero running
// tasks, zero services, and zero registered instances. An empty cluster
// costs nothing by itself, so the finding is informational with zero cost.
func Cluster(d inventory.Descriptor) *Finding {
	if d.Int("running_tasks", 0) != 0 ||
		d.Int("active_services", 0) != 0 ||
		d.Int("registered_instances", 0) != 0 {
		return nil
	}
	return newFinding(d, WasteIdleCluster, 0, SeverityLow, 85,
		"Cluster has no tasks, services, or instances. Delete it to reduce clutter.")
}
