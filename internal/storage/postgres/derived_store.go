package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// IVStatStore implements storage.IVStatStore over iv_stats_daily.
type IVStatStore struct {
	pool *Pool
}

// NewIVStatStore creates a new IVStatStore.
func NewIVStatStore(pool *Pool) *IVStatStore {
	return &IVStatStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IVStatStore = (*IVStatStore)(nil)

const ivStatColumns = `symbol, date, expiration_date, put_contract_id, call_contract_id,
	atm_iv, iv_high, iv_low, iv_rank, iv_percentile, window_days`

// Upsert replaces the stats of the given (symbol, date) keys.
func (s *IVStatStore) Upsert(ctx context.Context, stats []*domain.IVStat) error {
	if len(stats) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(stats))
	b := &pgx.Batch{}
	for _, st := range stats {
		if st == nil || st.Symbol == "" || st.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := st.Symbol + "|" + day(st.Date).Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		b.Queue(`INSERT INTO iv_stats_daily (`+ivStatColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (symbol, date) DO UPDATE SET
				expiration_date = EXCLUDED.expiration_date,
				put_contract_id = EXCLUDED.put_contract_id,
				call_contract_id = EXCLUDED.call_contract_id,
				atm_iv = EXCLUDED.atm_iv,
				iv_high = EXCLUDED.iv_high,
				iv_low = EXCLUDED.iv_low,
				iv_rank = EXCLUDED.iv_rank,
				iv_percentile = EXCLUDED.iv_percentile,
				window_days = EXCLUDED.window_days`,
			st.Symbol, day(st.Date), day(st.Expiration), st.PutContractID, st.CallContractID,
			st.ATMIV, st.High, st.Low, st.Rank, st.Percentile, st.WindowDays)
	}

	if _, err := sendBatch(ctx, s.pool, b); err != nil {
		if isCheckViolation(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("upsert iv stats: %w", err)
	}
	return nil
}

// GetBySymbol retrieves stats for a symbol, ordered by date ASC.
func (s *IVStatStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.IVStat, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ivStatColumns+`
		FROM iv_stats_daily WHERE symbol = $1 ORDER BY date ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("get iv stats: %w", err)
	}

	stats, err := pgx.CollectRows(rows, scanIVStat)
	if err != nil {
		return nil, fmt.Errorf("collect iv stats: %w", err)
	}
	return stats, nil
}

// GetLatest retrieves the most recent stat per symbol, ordered by symbol ASC.
func (s *IVStatStore) GetLatest(ctx context.Context) ([]*domain.IVStat, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT ON (symbol) `+ivStatColumns+`
		FROM iv_stats_daily ORDER BY symbol ASC, date DESC`)
	if err != nil {
		return nil, fmt.Errorf("get latest iv stats: %w", err)
	}

	stats, err := pgx.CollectRows(rows, scanIVStat)
	if err != nil {
		return nil, fmt.Errorf("collect latest iv stats: %w", err)
	}
	return stats, nil
}

func scanIVStat(row pgx.CollectableRow) (*domain.IVStat, error) {
	var st domain.IVStat
	err := row.Scan(&st.Symbol, &st.Date, &st.Expiration, &st.PutContractID, &st.CallContractID,
		&st.ATMIV, &st.High, &st.Low, &st.Rank, &st.Percentile, &st.WindowDays)
	return &st, err
}

// VolatilityStore implements storage.VolatilityStore over historical_volatility.
type VolatilityStore struct {
	pool *Pool
}

// NewVolatilityStore creates a new VolatilityStore.
func NewVolatilityStore(pool *Pool) *VolatilityStore {
	return &VolatilityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VolatilityStore = (*VolatilityStore)(nil)

// Upsert replaces the points of the given (symbol, date) keys.
func (s *VolatilityStore) Upsert(ctx context.Context, points []*domain.VolatilityPoint) error {
	if len(points) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(points))
	b := &pgx.Batch{}
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := p.Symbol + "|" + day(p.Date).Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		b.Queue(`INSERT INTO historical_volatility (symbol, date, volatility, returns)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (symbol, date) DO UPDATE SET
				volatility = EXCLUDED.volatility,
				returns = EXCLUDED.returns`,
			p.Symbol, day(p.Date), p.Volatility, p.Returns)
	}

	if _, err := sendBatch(ctx, s.pool, b); err != nil {
		return fmt.Errorf("upsert historical volatility: %w", err)
	}
	return nil
}

// GetBySymbol retrieves points for a symbol, ordered by date ASC.
func (s *VolatilityStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.VolatilityPoint, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, date, volatility, returns
		FROM historical_volatility WHERE symbol = $1 ORDER BY date ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("get historical volatility: %w", err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.VolatilityPoint, error) {
		var p domain.VolatilityPoint
		err := row.Scan(&p.Symbol, &p.Date, &p.Volatility, &p.Returns)
		return &p, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect historical volatility: %w", err)
	}
	return points, nil
}

// DividendStreakStore implements storage.DividendStreakStore over dividend_streaks.
type DividendStreakStore struct {
	pool *Pool
}

// NewDividendStreakStore creates a new DividendStreakStore.
func NewDividendStreakStore(pool *Pool) *DividendStreakStore {
	return &DividendStreakStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DividendStreakStore = (*DividendStreakStore)(nil)

// ReplaceAll overwrites all streaks.
func (s *DividendStreakStore) ReplaceAll(ctx context.Context, streaks []*domain.DividendStreak) error {
	seen := make(map[string]struct{}, len(streaks))
	for _, st := range streaks {
		if st == nil || st.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[st.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[st.Symbol] = struct{}{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE dividend_streaks`); err != nil {
			return fmt.Errorf("clear dividend streaks: %w", err)
		}
		if len(streaks) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"dividend_streaks"},
			[]string{"symbol", "years", "classification", "reference_year", "excluded_payouts"},
			pgx.CopyFromSlice(len(streaks), func(i int) ([]any, error) {
				st := streaks[i]
				return []any{st.Symbol, st.Years, string(st.Classification), st.ReferenceYear, st.ExcludedPayouts}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy dividend streaks: %w", err)
		}
		return nil
	})
}

// Get retrieves a symbol's streak. Returns ErrNotFound if not exists.
func (s *DividendStreakStore) Get(ctx context.Context, symbol string) (*domain.DividendStreak, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, years, classification, reference_year, excluded_payouts
		FROM dividend_streaks WHERE symbol = $1`, symbol)
	if err != nil {
		return nil, fmt.Errorf("get dividend streak: %w", err)
	}

	st, err := pgx.CollectExactlyOneRow(rows, scanStreak)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get dividend streak: %w", err)
	}
	return st, nil
}

// GetAll retrieves all streaks, ordered by symbol ASC.
func (s *DividendStreakStore) GetAll(ctx context.Context) ([]*domain.DividendStreak, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, years, classification, reference_year, excluded_payouts
		FROM dividend_streaks ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("get dividend streaks: %w", err)
	}

	streaks, err := pgx.CollectRows(rows, scanStreak)
	if err != nil {
		return nil, fmt.Errorf("collect dividend streaks: %w", err)
	}
	return streaks, nil
}

func scanStreak(row pgx.CollectableRow) (*domain.DividendStreak, error) {
	var st domain.DividendStreak
	var class string
	if err := row.Scan(&st.Symbol, &st.Years, &class, &st.ReferenceYear, &st.ExcludedPayouts); err != nil {
		return nil, err
	}
	st.Classification = domain.StreakClass(class)
	return &st, nil
}
