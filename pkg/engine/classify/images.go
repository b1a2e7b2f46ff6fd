package classify

import (
	"fmt"
	"time"

	"github.com/evo-uds/cloudsweep/pkg/engine/inventory"
)

// Image flags machine images past the minimum age. Images carry their cost
// in backing snapshots billed elsewhere, so the estimate here is zero and
// severity follows age alone.
func Image(d inventory.Descriptor, now time.Time, rules Rules) *Finding {
	created := d.Time("created")
	if created.IsZero() {
		return nil
	}
	ageDays := int(now.Sub(created).Hours() / 24)
	if ageDays <= rules.ImageMinAgeDays {
		return nil
	}

	sev := SeverityMedium
	if ageDays > rules.ImageHighAgeDays {
		sev = SeverityHigh
	}

	return newFinding(d, WasteOldImage, 0, sev, 85,
		fmt.Sprintf("Image is %d days old. Deregister it and delete its backing snapshots if nothing launches from it.", ageDays))
}
