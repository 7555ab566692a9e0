package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

const optionColumns = `provider, snapshot_date, contract_id, symbol, option_type, strike, expiration_date,
	bid, ask, last, theoretical, volume, open_interest,
	delta, gamma, theta, vega, rho, implied_volatility`

var optionColumnNames = []string{
	"provider", "snapshot_date", "contract_id", "symbol", "option_type", "strike", "expiration_date",
	"bid", "ask", "last", "theoretical", "volume", "open_interest",
	"delta", "gamma", "theta", "vega", "rho", "implied_volatility",
}

func optionValues(q *domain.OptionQuote) []any {
	return []any{
		string(q.Provider), day(q.SnapshotDate), q.ContractID, q.Symbol, string(q.Type), q.Strike, day(q.Expiration),
		q.Bid, q.Ask, q.Last, q.Theoretical, q.Volume, q.OpenInterest,
		q.Delta, q.Gamma, q.Theta, q.Vega, q.Rho, q.ImpliedVolatility,
	}
}

// validateQuotes checks a batch before it reaches the database. An empty
// provider means a history batch, which may span providers but needs dates.
func validateQuotes(quotes []*domain.OptionQuote, provider domain.Provider) error {
	seen := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		if q == nil || q.ContractID == "" {
			return storage.ErrInvalidInput
		}
		if provider != "" && q.Provider != provider {
			return storage.ErrInvalidInput
		}
		if provider == "" && q.SnapshotDate.IsZero() {
			return storage.ErrInvalidInput
		}
		key := day(q.SnapshotDate).Format(time.DateOnly) + "|" + string(q.Provider) + "|" + q.ContractID
		if _, ok := seen[key]; ok {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}
	return nil
}

// RawOptionStore implements storage.RawOptionStore using PostgreSQL.
type RawOptionStore struct {
	pool *Pool
}

// NewRawOptionStore creates a new RawOptionStore.
func NewRawOptionStore(pool *Pool) *RawOptionStore {
	return &RawOptionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawOptionStore = (*RawOptionStore)(nil)

// Replace overwrites all raw rows of a provider with quotes in one transaction.
func (s *RawOptionStore) Replace(ctx context.Context, provider domain.Provider, quotes []*domain.OptionQuote) error {
	if err := validateQuotes(quotes, provider); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM option_quotes_raw WHERE provider = $1`, string(provider)); err != nil {
			return fmt.Errorf("clear raw %s quotes: %w", provider, err)
		}
		if len(quotes) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"option_quotes_raw"}, optionColumnNames,
			pgx.CopyFromSlice(len(quotes), func(i int) ([]any, error) {
				return optionValues(quotes[i]), nil
			}))
		if err != nil {
			return fmt.Errorf("copy raw %s quotes: %w", provider, err)
		}
		return nil
	})
}

// GetByProvider retrieves all raw rows of a provider, ordered by contract_id ASC.
func (s *RawOptionStore) GetByProvider(ctx context.Context, provider domain.Provider) ([]*domain.OptionQuote, error) {
	query := `SELECT ` + optionColumns + `
		FROM option_quotes_raw
		WHERE provider = $1
		ORDER BY contract_id ASC`

	rows, err := s.pool.Query(ctx, query, string(provider))
	if err != nil {
		return nil, fmt.Errorf("get raw quotes: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// OptionHistoryStore implements storage.OptionHistoryStore using PostgreSQL.
type OptionHistoryStore struct {
	pool *Pool
}

// NewOptionHistoryStore creates a new OptionHistoryStore.
func NewOptionHistoryStore(pool *Pool) *OptionHistoryStore {
	return &OptionHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptionHistoryStore = (*OptionHistoryStore)(nil)

// InsertIgnore adds quotes, skipping keys that already exist.
func (s *OptionHistoryStore) InsertIgnore(ctx context.Context, quotes []*domain.OptionQuote) (int64, error) {
	if len(quotes) == 0 {
		return 0, nil
	}
	if err := validateQuotes(quotes, ""); err != nil {
		return 0, err
	}

	query := `INSERT INTO option_quotes_history (` + optionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (snapshot_date, provider, contract_id) DO NOTHING`

	b := &pgx.Batch{}
	for _, q := range quotes {
		b.Queue(query, optionValues(q)...)
	}
	n, err := sendBatch(ctx, s.pool, b)
	if err != nil {
		return 0, fmt.Errorf("insert option history: %w", err)
	}
	return n, nil
}

// LatestDate returns MAX(snapshot_date) for a provider.
func (s *OptionHistoryStore) LatestDate(ctx context.Context, provider domain.Provider) (time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(snapshot_date) FROM option_quotes_history WHERE provider = $1`,
		string(provider)).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest option history date: %w", err)
	}
	if latest == nil {
		return time.Time{}, storage.ErrNotFound
	}
	return *latest, nil
}

// GetByDate retrieves a provider's rows for one snapshot date, ordered by contract_id ASC.
func (s *OptionHistoryStore) GetByDate(ctx context.Context, provider domain.Provider, date time.Time) ([]*domain.OptionQuote, error) {
	query := `SELECT ` + optionColumns + `
		FROM option_quotes_history
		WHERE provider = $1 AND snapshot_date = $2
		ORDER BY contract_id ASC`

	rows, err := s.pool.Query(ctx, query, string(provider), day(date))
	if err != nil {
		return nil, fmt.Errorf("get option history by date: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// GetCurrent retrieves a provider's rows at MAX(snapshot_date) via option_quotes_current.
func (s *OptionHistoryStore) GetCurrent(ctx context.Context, provider domain.Provider) ([]*domain.OptionQuote, error) {
	query := `SELECT ` + optionColumns + `
		FROM option_quotes_current
		WHERE provider = $1
		ORDER BY contract_id ASC`

	rows, err := s.pool.Query(ctx, query, string(provider))
	if err != nil {
		return nil, fmt.Errorf("get current quotes: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// GetBySymbolRange retrieves a provider's rows for a symbol within [from, to] (inclusive).
func (s *OptionHistoryStore) GetBySymbolRange(ctx context.Context, provider domain.Provider, symbol string, from, to time.Time) ([]*domain.OptionQuote, error) {
	query := `SELECT ` + optionColumns + `
		FROM option_quotes_history
		WHERE provider = $1 AND symbol = $2 AND snapshot_date >= $3 AND snapshot_date <= $4
		ORDER BY snapshot_date ASC, contract_id ASC`

	rows, err := s.pool.Query(ctx, query, string(provider), symbol, day(from), day(to))
	if err != nil {
		return nil, fmt.Errorf("get option history by symbol range: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// CountByDate returns the number of rows of a provider on one snapshot date.
func (s *OptionHistoryStore) CountByDate(ctx context.Context, provider domain.Provider, date time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM option_quotes_history WHERE provider = $1 AND snapshot_date = $2`,
		string(provider), day(date)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count option history: %w", err)
	}
	return n, nil
}

// scanQuotes scans multiple rows into a slice of OptionQuote.
func scanQuotes(rows pgx.Rows) ([]*domain.OptionQuote, error) {
	var quotes []*domain.OptionQuote

	for rows.Next() {
		var q domain.OptionQuote
		var provider, typ string

		err := rows.Scan(
			&provider, &q.SnapshotDate, &q.ContractID, &q.Symbol, &typ, &q.Strike, &q.Expiration,
			&q.Bid, &q.Ask, &q.Last, &q.Theoretical, &q.Volume, &q.OpenInterest,
			&q.Delta, &q.Gamma, &q.Theta, &q.Vega, &q.Rho, &q.ImpliedVolatility,
		)
		if err != nil {
			return nil, fmt.Errorf("scan option quote: %w", err)
		}
		q.Provider = domain.Provider(provider)
		q.Type = domain.ContractType(typ)
		quotes = append(quotes, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option quotes: %w", err)
	}
	return quotes, nil
}
