package storage

import (
	"context"
	"time"

	"options-data-lab/internal/domain"
)

// RawOptionStore provides access to option_quotes_raw storage.
// Raw rows are overwritten per collection cycle, one provider at a time.
type RawOptionStore interface {
	// Replace overwrites all raw rows of a provider with quotes.
	Replace(ctx context.Context, provider domain.Provider, quotes []*domain.OptionQuote) error

	// GetByProvider retrieves all raw rows of a provider, ordered by contract_id ASC.
	GetByProvider(ctx context.Context, provider domain.Provider) ([]*domain.OptionQuote, error)
}

// OptionHistoryStore provides access to option_quotes_history storage.
// Append-only, keyed by (snapshot_date, provider, contract_id).
type OptionHistoryStore interface {
	// InsertIgnore adds quotes, skipping keys that already exist.
	// Returns the number of rows actually inserted.
	InsertIgnore(ctx context.Context, quotes []*domain.OptionQuote) (int64, error)

	// LatestDate returns MAX(snapshot_date) for a provider. Returns ErrNotFound if empty.
	LatestDate(ctx context.Context, provider domain.Provider) (time.Time, error)

	// GetByDate retrieves a provider's rows for one snapshot date, ordered by contract_id ASC.
	GetByDate(ctx context.Context, provider domain.Provider, date time.Time) ([]*domain.OptionQuote, error)

	// GetCurrent retrieves a provider's rows at MAX(snapshot_date).
	GetCurrent(ctx context.Context, provider domain.Provider) ([]*domain.OptionQuote, error)

	// GetBySymbolRange retrieves a provider's rows for a symbol within [from, to] (inclusive),
	// ordered by snapshot_date ASC, contract_id ASC.
	GetBySymbolRange(ctx context.Context, provider domain.Provider, symbol string, from, to time.Time) ([]*domain.OptionQuote, error)

	// CountByDate returns the number of rows of a provider on one snapshot date.
	CountByDate(ctx context.Context, provider domain.Provider, date time.Time) (int64, error)
}

// RawStockStore provides access to stock_prices_raw storage.
type RawStockStore interface {
	// Replace overwrites all raw stock rows.
	Replace(ctx context.Context, snapshots []*domain.StockSnapshot) error

	// GetAll retrieves all raw stock rows, ordered by symbol ASC.
	GetAll(ctx context.Context) ([]*domain.StockSnapshot, error)
}

// StockHistoryStore provides access to stock_prices_history storage.
// Append-only, keyed by (snapshot_date, symbol).
type StockHistoryStore interface {
	// InsertIgnore adds snapshots, skipping keys that already exist.
	InsertIgnore(ctx context.Context, snapshots []*domain.StockSnapshot) (int64, error)

	// LatestDate returns MAX(snapshot_date). Returns ErrNotFound if empty.
	LatestDate(ctx context.Context) (time.Time, error)

	// GetCurrent retrieves all rows at MAX(snapshot_date), ordered by symbol ASC.
	GetCurrent(ctx context.Context) ([]*domain.StockSnapshot, error)

	// GetBySymbolRange retrieves rows for a symbol within [from, to], ordered by snapshot_date ASC.
	GetBySymbolRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.StockSnapshot, error)

	// Symbols returns all distinct symbols, ordered ASC.
	Symbols(ctx context.Context) ([]string, error)
}

// FundamentalStore provides access to fundamentals_raw and fundamentals_history storage.
type FundamentalStore interface {
	// Replace overwrites the raw fundamentals.
	Replace(ctx context.Context, records []*domain.FundamentalRecord) error

	// InsertHistoryIgnore appends records to history keyed by (snapshot_date, symbol).
	InsertHistoryIgnore(ctx context.Context, records []*domain.FundamentalRecord) (int64, error)

	// GetCurrent retrieves history rows at MAX(snapshot_date), ordered by symbol ASC.
	GetCurrent(ctx context.Context) ([]*domain.FundamentalRecord, error)
}

// ReferenceStore provides access to analyst_targets and earnings_dates storage.
type ReferenceStore interface {
	// ReplaceAnalystTargets overwrites all analyst targets.
	ReplaceAnalystTargets(ctx context.Context, targets []*domain.AnalystTarget) error

	// ReplaceEarningsDates overwrites all earnings dates.
	ReplaceEarningsDates(ctx context.Context, dates []*domain.EarningsDate) error

	// GetAnalystTargets retrieves all targets, ordered by symbol ASC.
	GetAnalystTargets(ctx context.Context) ([]*domain.AnalystTarget, error)

	// GetEarningsDates retrieves all earnings dates, ordered by symbol ASC.
	GetEarningsDates(ctx context.Context) ([]*domain.EarningsDate, error)
}

// DividendStore provides access to dividend_payouts storage.
type DividendStore interface {
	// InsertIgnore adds payouts keyed by (symbol, ex_date), skipping existing keys.
	InsertIgnore(ctx context.Context, payouts []*domain.DividendPayout) (int64, error)

	// GetBySymbol retrieves payouts for a symbol, ordered by ex_date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.DividendPayout, error)

	// Symbols returns all symbols with at least one payout, ordered ASC.
	Symbols(ctx context.Context) ([]string, error)
}

// MasterDataStore provides access to master_data storage.
type MasterDataStore interface {
	// Backfill inserts missing entries and extends to_date of existing ones.
	// An existing from_date is never overwritten. Returns rows inserted.
	Backfill(ctx context.Context, entries []*domain.MasterDataEntry) (int64, error)

	// Get retrieves an entry. Returns ErrNotFound if not exists.
	Get(ctx context.Context, tableName, entityKey string) (*domain.MasterDataEntry, error)

	// GetByTable retrieves all entries of a table, ordered by entity_key ASC.
	GetByTable(ctx context.Context, tableName string) ([]*domain.MasterDataEntry, error)
}

// ClassificationStore provides access to data_aging_classification storage.
type ClassificationStore interface {
	// Upsert inserts or updates a classification, always refreshing tier and tier_entry_date.
	Upsert(ctx context.Context, c *domain.FieldClassification) error

	// Get retrieves a classification. Returns ErrNotFound if not exists.
	Get(ctx context.Context, tableName, fieldName string) (*domain.FieldClassification, error)

	// GetByTable retrieves all classifications of a table, ordered by field_name ASC.
	GetByTable(ctx context.Context, tableName string) ([]*domain.FieldClassification, error)
}

// ChangeLogStore provides access to data_change_log storage. Append-only.
type ChangeLogStore interface {
	// Append adds an entry. ID and Timestamp are assigned when zero.
	Append(ctx context.Context, e *domain.ChangeLogEntry) error

	// GetByRunID retrieves entries of one run, ordered by id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ChangeLogEntry, error)

	// GetSince retrieves entries with timestamp >= since, ordered by id ASC.
	GetSince(ctx context.Context, since time.Time) ([]*domain.ChangeLogEntry, error)
}

// IVStatStore provides access to implied volatility statistics storage.
type IVStatStore interface {
	// Upsert replaces the stats of the given (symbol, date) keys.
	Upsert(ctx context.Context, stats []*domain.IVStat) error

	// GetBySymbol retrieves stats for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.IVStat, error)

	// GetLatest retrieves the most recent stat per symbol, ordered by symbol ASC.
	GetLatest(ctx context.Context) ([]*domain.IVStat, error)
}

// VolatilityStore provides access to historical volatility storage.
type VolatilityStore interface {
	// Upsert replaces the points of the given (symbol, date) keys.
	Upsert(ctx context.Context, points []*domain.VolatilityPoint) error

	// GetBySymbol retrieves points for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.VolatilityPoint, error)
}

// DividendStreakStore provides access to dividend_streaks storage.
type DividendStreakStore interface {
	// ReplaceAll overwrites all streaks.
	ReplaceAll(ctx context.Context, streaks []*domain.DividendStreak) error

	// Get retrieves a symbol's streak. Returns ErrNotFound if not exists.
	Get(ctx context.Context, symbol string) (*domain.DividendStreak, error)

	// GetAll retrieves all streaks, ordered by symbol ASC.
	GetAll(ctx context.Context) ([]*domain.DividendStreak, error)
}

// MergedOptionReader exposes the as-of-latest merged option view.
type MergedOptionReader interface {
	// GetMerged retrieves merged rows at the primary provider's MAX(snapshot_date),
	// optionally filtered by symbol (empty = all), ordered by contract_id ASC.
	GetMerged(ctx context.Context, symbol string) ([]*domain.MergedOption, error)
}
