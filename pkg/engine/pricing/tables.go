// Package pricing holds the rate tables used to estimate monthly waste.
// A Table is built once at startup — optionally hydrated from the provider
// pricing API — and is immutable afterwards, so concurrent region tasks
// share it without locks.
package pricing

// HoursPerMonth is the flat-rate month used across all hourly estimates.
const HoursPerMonth = 730

// Table is a read-only rate lookup.
type Table struct {
	volumeGBMonth   map[string]float64
	snapshotGBMonth float64
	addressHourly   float64
	instanceHourly  map[string]float64
	databaseHourly  map[string]float64
	gatewayHourly   float64
	gatewayPerGB    float64
	balancerHourly  float64
}

// Default returns the built-in on-demand rate table (us-east-1 list prices).
func Default() *Table {
	return &Table{
		volumeGBMonth: map[string]float64{
			"gp2":      0.10,
			"gp3":      0.08,
			"io1":      0.125,
			"io2":      0.125,
			"st1":      0.045,
			"sc1":      0.015,
			"standard": 0.05,
		},
		snapshotGBMonth: 0.05,
		addressHourly:   0.005,
		instanceHourly: map[string]float64{
			"t3.micro":   0.0104,
			"t3.small":   0.0208,
			"t3.medium":  0.0416,
			"t3.large":   0.0832,
			"m5.large":   0.096,
			"m5.xlarge":  0.192,
			"m5.2xlarge": 0.384,
			"c5.large":   0.085,
			"c5.xlarge":  0.17,
			"r5.large":   0.126,
			"r5.xlarge":  0.252,
		},
		databaseHourly: map[string]float64{
			"db.t3.micro":  0.017,
			"db.t3.small":  0.034,
			"db.t3.medium": 0.068,
			"db.m5.large":  0.171,
			"db.m5.xlarge": 0.342,
			"db.r5.large":  0.25,
			"db.r5.xlarge": 0.50,
		},
		gatewayHourly:  0.045,
		gatewayPerGB:   0.045,
		balancerHourly: 0.0225,
	}
}

// VolumeMonthly estimates the monthly cost of a volume. Unknown tiers fall
// back to the magnetic rate, the cheapest, so estimates never overstate.
func (t *Table) VolumeMonthly(volumeType string, sizeGB int) float64 {
	rate, ok := t.volumeGBMonth[volumeType]
	if !ok {
		rate = t.volumeGBMonth["standard"]
	}
	return rate * float64(sizeGB)
}

// SnapshotMonthly estimates the monthly cost of a snapshot.
func (t *Table) SnapshotMonthly(sizeGB int) float64 {
	return t.snapshotGBMonth * float64(sizeGB)
}

// AddressMonthly is the fixed monthly cost of an unattached address.
func (t *Table) AddressMonthly() float64 {
	return t.addressHourly * HoursPerMonth
}

// InstanceMonthly estimates the monthly cost of a compute instance.
// Unknown classes use the baseline class rate.
func (t *Table) InstanceMonthly(instanceClass string) float64 {
	rate, ok := t.instanceHourly[instanceClass]
	if !ok {
		rate = t.instanceHourly["t3.micro"]
	}
	return rate * HoursPerMonth
}

// DatabaseMonthly estimates the monthly cost of a managed database.
// Multi-zone deployments bill both instances.
func (t *Table) DatabaseMonthly(instanceClass string, multiAZ bool) float64 {
	rate, ok := t.databaseHourly[instanceClass]
	if !ok {
		rate = t.databaseHourly["db.t3.micro"]
	}
	cost := rate * HoursPerMonth
	if multiAZ {
		cost *= 2
	}
	return cost
}

// GatewayMonthly estimates the monthly cost of a NAT gateway given the
// bytes it processed over the metric window, extrapolated to a month.
func (t *Table) GatewayMonthly(monthlyBytesProcessed float64) float64 {
	const gb = 1024 * 1024 * 1024
	return t.gatewayHourly*HoursPerMonth + (monthlyBytesProcessed/gb)*t.gatewayPerGB
}

// BalancerMonthly is the base monthly cost of a load balancer.
func (t *Table) BalancerMonthly() float64 {
	return t.balancerHourly * HoursPerMonth
}
