package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// DividendStore implements storage.DividendStore using PostgreSQL.
type DividendStore struct {
	pool *Pool
}

// NewDividendStore creates a new DividendStore.
func NewDividendStore(pool *Pool) *DividendStore {
	return &DividendStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DividendStore = (*DividendStore)(nil)

// InsertIgnore adds payouts keyed by (symbol, ex_date), skipping existing keys.
func (s *DividendStore) InsertIgnore(ctx context.Context, payouts []*domain.DividendPayout) (int64, error) {
	if len(payouts) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(payouts))
	b := &pgx.Batch{}
	for _, p := range payouts {
		if p == nil || p.Symbol == "" || p.ExDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := p.Symbol + "|" + day(p.ExDate).Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			return 0, storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		b.Queue(`INSERT INTO dividend_payouts (symbol, ex_date, amount)
			VALUES ($1, $2, $3)
			ON CONFLICT (symbol, ex_date) DO NOTHING`,
			p.Symbol, day(p.ExDate), p.Amount)
	}

	n, err := sendBatch(ctx, s.pool, b)
	if err != nil {
		return 0, fmt.Errorf("insert dividends: %w", err)
	}
	return n, nil
}

// GetBySymbol retrieves payouts for a symbol, ordered by ex_date ASC.
func (s *DividendStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.DividendPayout, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, ex_date, amount FROM dividend_payouts WHERE symbol = $1 ORDER BY ex_date ASC`,
		symbol)
	if err != nil {
		return nil, fmt.Errorf("get dividends: %w", err)
	}

	payouts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.DividendPayout, error) {
		var p domain.DividendPayout
		err := row.Scan(&p.Symbol, &p.ExDate, &p.Amount)
		return &p, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect dividends: %w", err)
	}
	return payouts, nil
}

// Symbols returns all symbols with at least one payout, ordered ASC.
func (s *DividendStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM dividend_payouts ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get dividend symbols: %w", err)
	}
	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect dividend symbols: %w", err)
	}
	return symbols, nil
}
