package classify

// Rules holds the tunable classification thresholds. The zero value is not
// usable; start from DefaultRules and override from configuration.
type Rules struct {
	SnapshotMinAgeDays int

	ImageMinAgeDays  int
	ImageHighAgeDays int

	IdleCPUPct      float64
	IdleMaxCPUPct   float64
	UnderusedCPUPct float64
	LowCPUPct       float64

	BalancerIdleReqPerDay float64
	BalancerLowReqPerDay  float64
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		SnapshotMinAgeDays:    90,
		ImageMinAgeDays:       365,
		ImageHighAgeDays:      730,
		IdleCPUPct:            5,
		IdleMaxCPUPct:         10,
		UnderusedCPUPct:       15,
		LowCPUPct:             30,
		BalancerIdleReqPerDay: 100,
		BalancerLowReqPerDay:  1000,
	}
}
