package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// FundamentalStore implements storage.FundamentalStore using PostgreSQL.
// Metrics are stored as a JSONB object.
type FundamentalStore struct {
	pool *Pool
}

// NewFundamentalStore creates a new FundamentalStore.
func NewFundamentalStore(pool *Pool) *FundamentalStore {
	return &FundamentalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FundamentalStore = (*FundamentalStore)(nil)

func metricsJSON(r *domain.FundamentalRecord) ([]byte, error) {
	metrics := r.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	return json.Marshal(metrics)
}

// Replace overwrites the raw fundamentals.
func (s *FundamentalStore) Replace(ctx context.Context, records []*domain.FundamentalRecord) error {
	for _, r := range records {
		if r == nil || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE fundamentals_raw`); err != nil {
			return fmt.Errorf("clear raw fundamentals: %w", err)
		}
		for _, r := range records {
			metrics, err := metricsJSON(r)
			if err != nil {
				return fmt.Errorf("encode %s metrics: %w", r.Symbol, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO fundamentals_raw (symbol, snapshot_date, metrics) VALUES ($1, $2, $3)`,
				r.Symbol, day(r.SnapshotDate), metrics)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert raw fundamentals: %w", err)
			}
		}
		return nil
	})
}

// InsertHistoryIgnore appends records keyed by (snapshot_date, symbol).
func (s *FundamentalStore) InsertHistoryIgnore(ctx context.Context, records []*domain.FundamentalRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(records))
	b := &pgx.Batch{}
	for _, r := range records {
		if r == nil || r.Symbol == "" || r.SnapshotDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := day(r.SnapshotDate).Format(time.DateOnly) + "|" + r.Symbol
		if _, ok := seen[key]; ok {
			return 0, storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}

		metrics, err := metricsJSON(r)
		if err != nil {
			return 0, fmt.Errorf("encode %s metrics: %w", r.Symbol, err)
		}
		b.Queue(`INSERT INTO fundamentals_history (symbol, snapshot_date, metrics)
			VALUES ($1, $2, $3)
			ON CONFLICT (snapshot_date, symbol) DO NOTHING`,
			r.Symbol, day(r.SnapshotDate), metrics)
	}

	n, err := sendBatch(ctx, s.pool, b)
	if err != nil {
		return 0, fmt.Errorf("insert fundamentals history: %w", err)
	}
	return n, nil
}

// GetCurrent retrieves history rows at MAX(snapshot_date), ordered by symbol ASC.
func (s *FundamentalStore) GetCurrent(ctx context.Context) ([]*domain.FundamentalRecord, error) {
	query := `SELECT symbol, snapshot_date, metrics
		FROM fundamentals_history
		WHERE snapshot_date = (SELECT MAX(snapshot_date) FROM fundamentals_history)
		ORDER BY symbol ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get current fundamentals: %w", err)
	}
	defer rows.Close()

	var records []*domain.FundamentalRecord
	for rows.Next() {
		var r domain.FundamentalRecord
		var metrics []byte
		if err := rows.Scan(&r.Symbol, &r.SnapshotDate, &metrics); err != nil {
			return nil, fmt.Errorf("scan fundamentals: %w", err)
		}
		if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
			return nil, fmt.Errorf("decode %s metrics: %w", r.Symbol, err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fundamentals: %w", err)
	}
	return records, nil
}
