package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// ReferenceStore implements storage.ReferenceStore using PostgreSQL.
type ReferenceStore struct {
	pool *Pool
}

// NewReferenceStore creates a new ReferenceStore.
func NewReferenceStore(pool *Pool) *ReferenceStore {
	return &ReferenceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferenceStore = (*ReferenceStore)(nil)

// ReplaceAnalystTargets overwrites all analyst targets.
func (s *ReferenceStore) ReplaceAnalystTargets(ctx context.Context, targets []*domain.AnalystTarget) error {
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[t.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[t.Symbol] = struct{}{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE analyst_targets`); err != nil {
			return fmt.Errorf("clear analyst targets: %w", err)
		}
		if len(targets) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"analyst_targets"},
			[]string{"symbol", "snapshot_date", "low", "mean", "median", "high", "analysts"},
			pgx.CopyFromSlice(len(targets), func(i int) ([]any, error) {
				t := targets[i]
				return []any{t.Symbol, day(t.SnapshotDate), t.Low, t.Mean, t.Median, t.High, t.Analysts}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy analyst targets: %w", err)
		}
		return nil
	})
}

// ReplaceEarningsDates overwrites all earnings dates.
func (s *ReferenceStore) ReplaceEarningsDates(ctx context.Context, dates []*domain.EarningsDate) error {
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if d == nil || d.Symbol == "" || d.NextEarnings.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[d.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[d.Symbol] = struct{}{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE earnings_dates`); err != nil {
			return fmt.Errorf("clear earnings dates: %w", err)
		}
		if len(dates) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"earnings_dates"},
			[]string{"symbol", "earnings_date"},
			pgx.CopyFromSlice(len(dates), func(i int) ([]any, error) {
				return []any{dates[i].Symbol, day(dates[i].NextEarnings)}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy earnings dates: %w", err)
		}
		return nil
	})
}

// GetAnalystTargets retrieves all targets, ordered by symbol ASC.
func (s *ReferenceStore) GetAnalystTargets(ctx context.Context) ([]*domain.AnalystTarget, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, snapshot_date, low, mean, median, high, analysts
		FROM analyst_targets ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get analyst targets: %w", err)
	}
	defer rows.Close()

	var targets []*domain.AnalystTarget
	for rows.Next() {
		var t domain.AnalystTarget
		if err := rows.Scan(&t.Symbol, &t.SnapshotDate, &t.Low, &t.Mean, &t.Median, &t.High, &t.Analysts); err != nil {
			return nil, fmt.Errorf("scan analyst target: %w", err)
		}
		targets = append(targets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyst targets: %w", err)
	}
	return targets, nil
}

// GetEarningsDates retrieves all earnings dates, ordered by symbol ASC.
func (s *ReferenceStore) GetEarningsDates(ctx context.Context) ([]*domain.EarningsDate, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, earnings_date FROM earnings_dates ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get earnings dates: %w", err)
	}

	dates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.EarningsDate, error) {
		var d domain.EarningsDate
		err := row.Scan(&d.Symbol, &d.NextEarnings)
		return &d, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect earnings dates: %w", err)
	}
	return dates, nil
}
