package classify

import (
	"fmt"
	"time"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
	"github.com/evo-uds/cloudsweep/pkg/engine/pricing"
)

// Snapshot flags snapshots older than the minimum age. Severity scales with
// age rather than cost: a year-old snapshot is high regardless of size.
// A zero creation time means the age is unknown and nothing is flagged.
func Snapshot(d inventory.Descriptor, prices *pricing.Table, now time.Time, rules Rules) *Finding {
	created := d.Time("created")
	if created.IsZero() {
		return nil
	}
	ageDays := int(now.Sub(created).Hours() / 24)
	if ageDays <= rules.SnapshotMinAgeDays {
		return nil
	}

	monthly := prices.SnapshotMonthly(d.Int("size_gb", 0))

	sev := SeverityLow
	switch {
	case ageDays > 365:
		sev = SeverityHigh
	case ageDays > 180:
		sev = SeverityMedium
	}

	f := newFinding(d, WasteOldSnapshot, monthly, sev, 90,
		fmt.Sprintf("Snapshot is %d days old. Delete it unless it backs an image or a retention policy.", ageDays))
	f.AutoRemediable = true
	return f
}
