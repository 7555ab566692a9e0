package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// ClassificationStore implements storage.ClassificationStore using PostgreSQL.
type ClassificationStore struct {
	pool *Pool
}

// NewClassificationStore creates a new ClassificationStore.
func NewClassificationStore(pool *Pool) *ClassificationStore {
	return &ClassificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClassificationStore = (*ClassificationStore)(nil)

// Upsert inserts or updates a classification.
func (s *ClassificationStore) Upsert(ctx context.Context, c *domain.FieldClassification) error {
	if c == nil || c.TableName == "" || c.FieldName == "" || !c.Tier.IsValid() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO data_aging_classification (table_name, field_name, tier, tier_entry_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (table_name, field_name)
		DO UPDATE SET tier = EXCLUDED.tier, tier_entry_date = EXCLUDED.tier_entry_date`,
		c.TableName, c.FieldName, string(c.Tier), day(c.TierEntryDate))
	if err != nil {
		if isCheckViolation(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("upsert classification: %w", err)
	}
	return nil
}

// Get retrieves a classification. Returns ErrNotFound if not exists.
func (s *ClassificationStore) Get(ctx context.Context, tableName, fieldName string) (*domain.FieldClassification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name, field_name, tier, tier_entry_date FROM data_aging_classification
		WHERE table_name = $1 AND field_name = $2`, tableName, fieldName)
	if err != nil {
		return nil, fmt.Errorf("get classification: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClassification)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get classification: %w", err)
	}
	return c, nil
}

// GetByTable retrieves all classifications of a table, ordered by field_name ASC.
func (s *ClassificationStore) GetByTable(ctx context.Context, tableName string) ([]*domain.FieldClassification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name, field_name, tier, tier_entry_date FROM data_aging_classification
		WHERE table_name = $1 ORDER BY field_name ASC`, tableName)
	if err != nil {
		return nil, fmt.Errorf("get classifications: %w", err)
	}

	result, err := pgx.CollectRows(rows, scanClassification)
	if err != nil {
		return nil, fmt.Errorf("collect classifications: %w", err)
	}
	return result, nil
}

func scanClassification(row pgx.CollectableRow) (*domain.FieldClassification, error) {
	var c domain.FieldClassification
	var tier string
	if err := row.Scan(&c.TableName, &c.FieldName, &tier, &c.TierEntryDate); err != nil {
		return nil, err
	}
	c.Tier = domain.Tier(tier)
	return &c, nil
}
