package domain

import "time"

// Tier is the expected update frequency of a field.
type Tier string

const (
	TierMaster  Tier = "Master"
	TierDaily   Tier = "Daily"
	TierWeekly  Tier = "Weekly"
	TierMonthly Tier = "Monthly"
)

// DefaultTier applies to fields without a classification.
const DefaultTier = TierDaily

// IsValid checks if the tier is a known value.
func (t Tier) IsValid() bool {
	switch t {
	case TierMaster, TierDaily, TierWeekly, TierMonthly:
		return true
	}
	return false
}

// FieldClassification maps (table, field) to a tier.
// Corresponds to data_aging_classification table.
type FieldClassification struct {
	TableName     string
	FieldName     string
	Tier          Tier
	TierEntryDate time.Time
}

// MasterDataEntry records when an entity was first and last seen.
// Corresponds to master_data table.
type MasterDataEntry struct {
	TableName string
	EntityKey string
	FromDate  time.Time // first seen, never overwritten
	ToDate    time.Time // last seen
}

// HistoryDepthDays returns the number of days of history available as of asOf.
func (m *MasterDataEntry) HistoryDepthDays(asOf time.Time) int {
	if asOf.Before(m.FromDate) {
		return 0
	}
	return int(asOf.Sub(m.FromDate).Hours() / 24)
}
