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

// ChangeLogStore implements storage.ChangeLogStore using PostgreSQL.
// IDs come from the BIGSERIAL column; additional_data is JSONB.
type ChangeLogStore struct {
	pool *Pool
}

// NewChangeLogStore creates a new ChangeLogStore.
func NewChangeLogStore(pool *Pool) *ChangeLogStore {
	return &ChangeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ChangeLogStore = (*ChangeLogStore)(nil)

// Append adds an entry and writes back the assigned ID and Timestamp.
func (s *ChangeLogStore) Append(ctx context.Context, e *domain.ChangeLogEntry) error {
	if e == nil || e.OperationType == "" || e.TableName == "" {
		return storage.ErrInvalidInput
	}

	var data []byte
	if e.AdditionalData != nil {
		var err error
		if data, err = json.Marshal(e.AdditionalData); err != nil {
			return fmt.Errorf("encode change log data: %w", err)
		}
	}

	var ts *time.Time
	if !e.Timestamp.IsZero() {
		t := e.Timestamp.UTC()
		ts = &t
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO data_change_log (run_id, timestamp, operation_type, table_name, affected_rows, additional_data)
		VALUES ($1, COALESCE($2, now()), $3, $4, $5, $6)
		RETURNING id, timestamp`,
		e.RunID, ts, e.OperationType, e.TableName, e.AffectedRows, data,
	).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

// GetByRunID retrieves entries of one run, ordered by id ASC.
func (s *ChangeLogStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ChangeLogEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, run_id, timestamp, operation_type, table_name, affected_rows, additional_data
		FROM data_change_log WHERE run_id = $1 ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get change log by run: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanChangeLog)
	if err != nil {
		return nil, fmt.Errorf("collect change log: %w", err)
	}
	return entries, nil
}

// GetSince retrieves entries with timestamp >= since, ordered by id ASC.
func (s *ChangeLogStore) GetSince(ctx context.Context, since time.Time) ([]*domain.ChangeLogEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, run_id, timestamp, operation_type, table_name, affected_rows, additional_data
		FROM data_change_log WHERE timestamp >= $1 ORDER BY id ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("get change log since: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanChangeLog)
	if err != nil {
		return nil, fmt.Errorf("collect change log: %w", err)
	}
	return entries, nil
}

func scanChangeLog(row pgx.CollectableRow) (*domain.ChangeLogEntry, error) {
	var e domain.ChangeLogEntry
	var data []byte
	if err := row.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.OperationType, &e.TableName, &e.AffectedRows, &data); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.AdditionalData); err != nil {
			return nil, fmt.Errorf("decode change log %d data: %w", e.ID, err)
		}
	}
	return &e, nil
}
