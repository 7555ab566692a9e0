package domain

import "time"

// FundamentalRecord holds per-symbol financial statement and ratio fields.
// The source table is wide; metrics are keyed by their column name.
type FundamentalRecord struct {
	Symbol       string
	SnapshotDate time.Time
	Metrics      map[string]float64
}

// FieldValues returns a copy of the metric map.
func (f *FundamentalRecord) FieldValues() map[string]float64 {
	out := make(map[string]float64, len(f.Metrics))
	for k, v := range f.Metrics {
		out[k] = v
	}
	return out
}

// AnalystTarget is the latest analyst price target summary for a symbol.
type AnalystTarget struct {
	Symbol       string
	SnapshotDate time.Time
	Low          *float64
	Mean         *float64
	Median       *float64
	High         *float64
	Analysts     int
}

// EarningsDate is the next scheduled earnings date for a symbol.
type EarningsDate struct {
	Symbol       string
	NextEarnings time.Time
}
