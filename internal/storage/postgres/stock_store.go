package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

const stockColumns = `symbol, snapshot_date, open, high, low, close, volume,
	dividends, stock_splits, live_price, price_source, captured_at`

var stockColumnNames = []string{
	"symbol", "snapshot_date", "open", "high", "low", "close", "volume",
	"dividends", "stock_splits", "live_price", "price_source", "captured_at",
}

func stockValues(s *domain.StockSnapshot) []any {
	capturedAt := s.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.SnapshotDate
	}
	return []any{
		s.Symbol, day(s.SnapshotDate), s.Open, s.High, s.Low, s.Close, s.Volume,
		s.Dividends, s.StockSplits, s.LivePrice, s.PriceSource, capturedAt.UTC(),
	}
}

// RawStockStore implements storage.RawStockStore using PostgreSQL.
type RawStockStore struct {
	pool *Pool
}

// NewRawStockStore creates a new RawStockStore.
func NewRawStockStore(pool *Pool) *RawStockStore {
	return &RawStockStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawStockStore = (*RawStockStore)(nil)

// Replace overwrites all raw stock rows.
func (s *RawStockStore) Replace(ctx context.Context, snapshots []*domain.StockSnapshot) error {
	seen := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[snap.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[snap.Symbol] = struct{}{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE stock_prices_raw`); err != nil {
			return fmt.Errorf("clear raw stocks: %w", err)
		}
		if len(snapshots) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"stock_prices_raw"}, stockColumnNames,
			pgx.CopyFromSlice(len(snapshots), func(i int) ([]any, error) {
				return stockValues(snapshots[i]), nil
			}))
		if err != nil {
			return fmt.Errorf("copy raw stocks: %w", err)
		}
		return nil
	})
}

// GetAll retrieves all raw stock rows, ordered by symbol ASC.
func (s *RawStockStore) GetAll(ctx context.Context) ([]*domain.StockSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stockColumns+` FROM stock_prices_raw ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get raw stocks: %w", err)
	}
	defer rows.Close()

	return scanStocks(rows)
}

// StockHistoryStore implements storage.StockHistoryStore using PostgreSQL.
type StockHistoryStore struct {
	pool *Pool
}

// NewStockHistoryStore creates a new StockHistoryStore.
func NewStockHistoryStore(pool *Pool) *StockHistoryStore {
	return &StockHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StockHistoryStore = (*StockHistoryStore)(nil)

// InsertIgnore adds snapshots, skipping keys that already exist.
func (s *StockHistoryStore) InsertIgnore(ctx context.Context, snapshots []*domain.StockSnapshot) (int64, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.Symbol == "" || snap.SnapshotDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := day(snap.SnapshotDate).Format(time.DateOnly) + "|" + snap.Symbol
		if _, ok := seen[key]; ok {
			return 0, storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	query := `INSERT INTO stock_prices_history (` + stockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (snapshot_date, symbol) DO NOTHING`

	b := &pgx.Batch{}
	for _, snap := range snapshots {
		b.Queue(query, stockValues(snap)...)
	}
	n, err := sendBatch(ctx, s.pool, b)
	if err != nil {
		return 0, fmt.Errorf("insert stock history: %w", err)
	}
	return n, nil
}

// LatestDate returns MAX(snapshot_date). Returns ErrNotFound if empty.
func (s *StockHistoryStore) LatestDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(snapshot_date) FROM stock_prices_history`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("latest stock history date: %w", err)
	}
	if latest == nil {
		return time.Time{}, storage.ErrNotFound
	}
	return *latest, nil
}

// GetCurrent retrieves all rows at MAX(snapshot_date) via stock_prices_current.
func (s *StockHistoryStore) GetCurrent(ctx context.Context) ([]*domain.StockSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stockColumns+` FROM stock_prices_current ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get current stocks: %w", err)
	}
	defer rows.Close()

	return scanStocks(rows)
}

// GetBySymbolRange retrieves rows for a symbol within [from, to], ordered by snapshot_date ASC.
func (s *StockHistoryStore) GetBySymbolRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.StockSnapshot, error) {
	query := `SELECT ` + stockColumns + `
		FROM stock_prices_history
		WHERE symbol = $1 AND snapshot_date >= $2 AND snapshot_date <= $3
		ORDER BY snapshot_date ASC`

	rows, err := s.pool.Query(ctx, query, symbol, day(from), day(to))
	if err != nil {
		return nil, fmt.Errorf("get stock history by symbol range: %w", err)
	}
	defer rows.Close()

	return scanStocks(rows)
}

// Symbols returns all distinct symbols, ordered ASC.
func (s *StockHistoryStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM stock_prices_history ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get stock symbols: %w", err)
	}
	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect stock symbols: %w", err)
	}
	return symbols, nil
}

func scanStocks(rows pgx.Rows) ([]*domain.StockSnapshot, error) {
	var snapshots []*domain.StockSnapshot

	for rows.Next() {
		var s domain.StockSnapshot
		err := rows.Scan(
			&s.Symbol, &s.SnapshotDate, &s.Open, &s.High, &s.Low, &s.Close, &s.Volume,
			&s.Dividends, &s.StockSplits, &s.LivePrice, &s.PriceSource, &s.CapturedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stock snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock snapshots: %w", err)
	}
	return snapshots, nil
}
