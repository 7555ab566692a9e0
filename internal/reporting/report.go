package reporting

import (
	"time"

	"options-data-lab/internal/domain"
)

// Report is the offline screening report.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	SnapshotDate time.Time // primary provider's current date; zero when no data

	// Coverage of the merged chain
	Coverage Coverage

	// Screens
	MarriedPuts []*domain.MarriedPutCandidate // ranked within symbol
	IVLeaders   []*domain.IVStat              // latest stats passing the IV filter
	Streaks     []*domain.DividendStreak      // symbols with a classified streak

	// Change log activity since the previous snapshot
	Changes []ChangeRow
}

// Coverage counts merged rows and provider presence.
type Coverage struct {
	Contracts          int
	Symbols            int
	WithYahoo          int
	WithBarchart       int
	WithUnderlying     int
	ExtrinsicAnomalies int
}

// ChangeRow aggregates change log entries by operation and table.
type ChangeRow struct {
	OperationType string
	TableName     string
	Entries       int
	AffectedRows  int64
}
