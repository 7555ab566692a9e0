package ingestion

import (
	"context"
	"errors"
)

// ErrSourceUnavailable marks a source that could not be reached this cycle.
// The source is skipped; it is not a pipeline failure.
var ErrSourceUnavailable = errors.New("source unavailable")

// Raw table names a Source can deliver.
const (
	TableOptions        = "options"
	TableStocks         = "stocks"
	TableFundamentals   = "fundamentals"
	TableDividends      = "dividends"
	TableAnalystTargets = "analyst_targets"
	TableEarnings       = "earnings"
)

// Batch is one source's raw rows for one table, as delivered.
// Every row has one cell per header column.
type Batch struct {
	Source string
	Table  string
	Header []string
	Rows   [][]string
}

// Source provides raw tabular data from an external provider.
type Source interface {
	// Name identifies the source. Option sources are named after their provider.
	Name() string

	// Tables lists the tables this source delivers.
	Tables() []string

	// Fetch returns the current rows of a table.
	// Transport failures should wrap ErrSourceUnavailable.
	Fetch(ctx context.Context, table string) (*Batch, error)
}
