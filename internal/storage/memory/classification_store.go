package memory

import (
	"context"
	"sort"
	"sync"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// ClassificationStore is an in-memory implementation of storage.ClassificationStore.
type ClassificationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FieldClassification
}

// NewClassificationStore creates a new in-memory classification store.
func NewClassificationStore() *ClassificationStore {
	return &ClassificationStore{data: make(map[string]*domain.FieldClassification)}
}

// Upsert inserts or updates a classification.
func (s *ClassificationStore) Upsert(_ context.Context, c *domain.FieldClassification) error {
	if c == nil || c.TableName == "" || c.FieldName == "" || !c.Tier.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.data[masterKey(c.TableName, c.FieldName)] = &cp
	return nil
}

// Get retrieves a classification. Returns ErrNotFound if not exists.
func (s *ClassificationStore) Get(_ context.Context, tableName, fieldName string) (*domain.FieldClassification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[masterKey(tableName, fieldName)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetByTable retrieves all classifications of a table, ordered by field_name ASC.
func (s *ClassificationStore) GetByTable(_ context.Context, tableName string) ([]*domain.FieldClassification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FieldClassification
	for _, c := range s.data {
		if c.TableName == tableName {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FieldName < result[j].FieldName
	})
	return result, nil
}

var _ storage.ClassificationStore = (*ClassificationStore)(nil)
