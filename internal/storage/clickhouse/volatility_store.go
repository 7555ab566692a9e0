package clickhouse

import (
	"context"
	"fmt"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// VolatilityStore implements storage.VolatilityStore using ClickHouse.
type VolatilityStore struct {
	conn *Conn
}

// NewVolatilityStore creates a new VolatilityStore.
func NewVolatilityStore(conn *Conn) *VolatilityStore {
	return &VolatilityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VolatilityStore = (*VolatilityStore)(nil)

// Upsert replaces the points of the given (symbol, date) keys.
func (s *VolatilityStore) Upsert(ctx context.Context, points []*domain.VolatilityPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO historical_volatility (symbol, date, volatility, returns)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Symbol, dateOnly(p.Date), p.Volatility, uint32(p.Returns)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves points for a symbol, ordered by date ASC.
func (s *VolatilityStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.VolatilityPoint, error) {
	query := `
		SELECT symbol, date, volatility, returns
		FROM historical_volatility FINAL
		WHERE symbol = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query volatility by symbol: %w", err)
	}
	defer rows.Close()

	var points []*domain.VolatilityPoint
	for rows.Next() {
		var p domain.VolatilityPoint
		var returns uint32
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Volatility, &returns); err != nil {
			return nil, fmt.Errorf("scan volatility row: %w", err)
		}
		p.Date = dateOnly(p.Date)
		p.Returns = int(returns)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volatility rows: %w", err)
	}
	return points, nil
}
