package classify

import (
	"fmt"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// Volume flags a block volume that is not attached to any instance.
// Attachment state is definitive, so confidence is fixed at 95.
func Volume(d inventory.Descriptor, prices *pricing.Table) *Finding {
	if d.Str("state", "") != "available" || d.Bool("attached") {
		return nil
	}
	sizeGB := d.Int("size_gb", 0)
	volType := d.Str("volume_type", "")
	monthly := prices.VolumeMonthly(volType, sizeGB)

	f := newFinding(d, WasteUnattachedVolume, monthly, storageSeverity(monthly), 95,
		fmt.Sprintf("Volume is unattached (%d GB %s). Snapshot it if the data matters, then delete it.", sizeGB, volType))
	f.AutoRemediable = true
	return f
}
