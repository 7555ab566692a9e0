package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// MasterDataStore implements storage.MasterDataStore using PostgreSQL.
type MasterDataStore struct {
	pool *Pool
}

// NewMasterDataStore creates a new MasterDataStore.
func NewMasterDataStore(pool *Pool) *MasterDataStore {
	return &MasterDataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MasterDataStore = (*MasterDataStore)(nil)

// Backfill inserts missing entries and extends to_date of existing ones.
// The update never touches from_date; xmax = 0 marks a fresh insert.
func (s *MasterDataStore) Backfill(ctx context.Context, entries []*domain.MasterDataEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	for _, e := range entries {
		if e == nil || e.TableName == "" || e.EntityKey == "" || e.FromDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
	}

	query := `INSERT INTO master_data (table_name, entity_key, from_date, to_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (table_name, entity_key)
		DO UPDATE SET to_date = GREATEST(master_data.to_date, EXCLUDED.to_date)
		RETURNING (xmax = 0)`

	var inserted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			toDate := e.ToDate
			if toDate.IsZero() || toDate.Before(e.FromDate) {
				toDate = e.FromDate
			}
			var fresh bool
			if err := tx.QueryRow(ctx, query, e.TableName, e.EntityKey, day(e.FromDate), day(toDate)).Scan(&fresh); err != nil {
				return fmt.Errorf("backfill %s/%s: %w", e.TableName, e.EntityKey, err)
			}
			if fresh {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Get retrieves an entry. Returns ErrNotFound if not exists.
func (s *MasterDataStore) Get(ctx context.Context, tableName, entityKey string) (*domain.MasterDataEntry, error) {
	var e domain.MasterDataEntry
	err := s.pool.QueryRow(ctx,
		`SELECT table_name, entity_key, from_date, to_date FROM master_data
		WHERE table_name = $1 AND entity_key = $2`,
		tableName, entityKey).Scan(&e.TableName, &e.EntityKey, &e.FromDate, &e.ToDate)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get master data: %w", err)
	}
	return &e, nil
}

// GetByTable retrieves all entries of a table, ordered by entity_key ASC.
func (s *MasterDataStore) GetByTable(ctx context.Context, tableName string) ([]*domain.MasterDataEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name, entity_key, from_date, to_date FROM master_data
		WHERE table_name = $1 ORDER BY entity_key ASC`, tableName)
	if err != nil {
		return nil, fmt.Errorf("get master data by table: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.MasterDataEntry, error) {
		var e domain.MasterDataEntry
		err := row.Scan(&e.TableName, &e.EntityKey, &e.FromDate, &e.ToDate)
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect master data: %w", err)
	}
	return entries, nil
}
