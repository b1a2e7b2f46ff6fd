// Package anomaly flags days whose spend deviates sharply from the
// per-service baseline. Detection is pure arithmetic over a daily cost
// series; fetching the series is the CostSource's job.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DailyCost is one day of spend for one service.
type DailyCost struct {
	Date    time.Time `json:"date"`
	Service string    `json:"service"`
	Amount  float64   `json:"amount"`
}

// Severity buckets anomalies by how far spend strayed from baseline.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is one flagged service-day.
type Anomaly struct {
	Date         time.Time `json:"date"`
	Service      string    `json:"service"`
	Amount       float64   `json:"amount"`
	Baseline     float64   `json:"baseline"`
	DeviationPct float64   `json:"deviation_pct"`
	Direction    string    `json:"direction"`
	Severity     Severity  `json:"severity"`
}

const (
	DirectionSpike = "spike"
	DirectionDrop  = "drop"
)

// Summary is always produced, anomalies or not.
type Summary struct {
	DaysObserved     int              `json:"days_observed"`
	ServicesObserved int              `json:"services_observed"`
	BySeverity       map[Severity]int `json:"by_severity"`
	Spikes           int              `json:"spikes"`
	Drops            int              `json:"drops"`
	// TotalDeviation is the sum of absolute dollar deviations across all
	// flagged days.
	TotalDeviation float64 `json:"total_deviation"`
}

// Result is the outcome of one detection pass. A short series is reported
// through Insufficient, not an error: there is nothing wrong, just nothing
// to judge yet.
type Result struct {
	Anomalies    []Anomaly `json:"anomalies"`
	Insufficient bool      `json:"insufficient"`
	Message      string    `json:"message,omitempty"`
	Summary      Summary   `json:"summary"`
}

// Detector holds the detection thresholds.
type Detector struct {
	// MinHistory is the number of distinct days needed before any day can
	// be judged, and the number of prior days a service needs before one
	// of its days is judged.
	MinHistory int
	// ThresholdPct is the absolute deviation, in percent, above which a
	// day is flagged.
	ThresholdPct float64
}

func NewDetector(minHistoryDays int, thresholdPct float64) *Detector {
	return &Detector{MinHistory: minHistoryDays, ThresholdPct: thresholdPct}
}

// Detect evaluates each service-day against the mean of that service's
// preceding days. Days with fewer than MinHistory predecessors only feed
// the baseline. A zero baseline cannot produce a deviation and is skipped.
func (d *Detector) Detect(records []DailyCost) *Result {
	days := map[time.Time]struct{}{}
	services := map[string][]DailyCost{}
	for _, r := range records {
		days[r.Date] = struct{}{}
		services[r.Service] = append(services[r.Service], r)
	}

	res := &Result{Summary: Summary{
		DaysObserved:     len(days),
		ServicesObserved: len(services),
		BySeverity:       map[Severity]int{},
	}}
	if len(days) < d.MinHistory {
		res.Insufficient = true
		res.Message = fmt.Sprintf("insufficient cost history: have %d days, need %d", len(days), d.MinHistory)
		return res
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		series := services[name]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

		var sum float64
		for i, day := range series {
			if i >= d.MinHistory {
				baseline := sum / float64(i)
				if baseline > 0 {
					dev := (day.Amount - baseline) / baseline * 100
					if math.Abs(dev) > d.ThresholdPct {
						res.Anomalies = append(res.Anomalies, Anomaly{
							Date:         day.Date,
							Service:      name,
							Amount:       day.Amount,
							Baseline:     baseline,
							DeviationPct: dev,
							Direction:    direction(dev),
							Severity:     severityFor(math.Abs(dev)),
						})
					}
				}
			}
			sum += day.Amount
		}
	}

	for _, a := range res.Anomalies {
		res.Summary.BySeverity[a.Severity]++
		if a.Direction == DirectionSpike {
			res.Summary.Spikes++
		} else {
			res.Summary.Drops++
		}
		res.Summary.TotalDeviation += math.Abs(a.Amount - a.Baseline)
	}
	return res
}

func direction(devPct float64) string {
	if devPct < 0 {
		return DirectionDrop
	}
	return DirectionSpike
}

// severityFor buckets by absolute deviation. The caller guarantees the
// deviation already cleared the flagging threshold.
func severityFor(absDevPct float64) Severity {
	switch {
	case absDevPct > 75:
		return SeverityCritical
	case absDevPct > 50:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
