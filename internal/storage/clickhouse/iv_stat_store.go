package clickhouse

import (
	"context"
	"fmt"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// IVStatStore implements storage.IVStatStore using ClickHouse.
// Rows live in a ReplacingMergeTree; a later Upsert of the same
// (symbol, date) supersedes the earlier one and reads use FINAL.
type IVStatStore struct {
	conn *Conn
}

// NewIVStatStore creates a new IVStatStore.
func NewIVStatStore(conn *Conn) *IVStatStore {
	return &IVStatStore{conn: conn}
}

// Compile-time interface check.
var _ storage.IVStatStore = (*IVStatStore)(nil)

// Upsert replaces the stats of the given (symbol, date) keys.
func (s *IVStatStore) Upsert(ctx context.Context, stats []*domain.IVStat) error {
	if len(stats) == 0 {
		return nil
	}

	type key struct {
		symbol string
		date   int64
	}
	seen := make(map[key]struct{}, len(stats))
	for _, st := range stats {
		k := key{st.Symbol, dateOnly(st.Date).Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO iv_stats (
			symbol, date, expiration_date, put_contract_id, call_contract_id,
			atm_iv, iv_high, iv_low, iv_rank, iv_percentile, window_days
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range stats {
		err = batch.Append(
			st.Symbol, dateOnly(st.Date), dateOnly(st.Expiration),
			st.PutContractID, st.CallContractID,
			st.ATMIV, st.High, st.Low, st.Rank, st.Percentile, uint32(st.WindowDays),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves stats for a symbol, ordered by date ASC.
func (s *IVStatStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.IVStat, error) {
	query := `
		SELECT symbol, date, expiration_date, put_contract_id, call_contract_id,
		       atm_iv, iv_high, iv_low, iv_rank, iv_percentile, window_days
		FROM iv_stats FINAL
		WHERE symbol = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query iv stats by symbol: %w", err)
	}
	defer rows.Close()

	return scanIVStats(rows)
}

// GetLatest retrieves the most recent stat per symbol, ordered by symbol ASC.
func (s *IVStatStore) GetLatest(ctx context.Context) ([]*domain.IVStat, error) {
	query := `
		SELECT symbol, date, expiration_date, put_contract_id, call_contract_id,
		       atm_iv, iv_high, iv_low, iv_rank, iv_percentile, window_days
		FROM iv_stats FINAL
		ORDER BY symbol ASC, date DESC
		LIMIT 1 BY symbol
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest iv stats: %w", err)
	}
	defer rows.Close()

	return scanIVStats(rows)
}

func scanIVStats(rows chRows) ([]*domain.IVStat, error) {
	var stats []*domain.IVStat

	for rows.Next() {
		var st domain.IVStat
		var windowDays uint32

		err := rows.Scan(
			&st.Symbol, &st.Date, &st.Expiration, &st.PutContractID, &st.CallContractID,
			&st.ATMIV, &st.High, &st.Low, &st.Rank, &st.Percentile, &windowDays,
		)
		if err != nil {
			return nil, fmt.Errorf("scan iv stat row: %w", err)
		}

		st.Date = dateOnly(st.Date)
		st.Expiration = dateOnly(st.Expiration)
		st.WindowDays = int(windowDays)
		stats = append(stats, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iv stat rows: %w", err)
	}
	return stats, nil
}
