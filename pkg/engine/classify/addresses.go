package classify

import (
	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// Address flags an elastic IP that is bound to neither an instance nor a
// network interface. An unassociated address is billed for doing nothing,
// so confidence is the highest of any classifier.
func Address(d inventory.Descriptor, prices *pricing.Table) *Finding {
	if d.Str("instance_id", "") != "" || d.Str("network_interface_id", "") != "" {
		return nil
	}
	monthly := prices.AddressMonthly()

	f := newFinding(d, WasteUnattachedAddress, monthly, storageSeverity(monthly), 98,
		"Elastic IP is not associated with anything. Release it.")
	f.AutoRemediable = true
	return f
}
