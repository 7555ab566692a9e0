package memory

import (
	"context"
	"sort"
	"sync"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// MasterDataStore is an in-memory implementation of storage.MasterDataStore.
type MasterDataStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MasterDataEntry // keyed by (table_name, entity_key)
}

// NewMasterDataStore creates a new in-memory master data store.
func NewMasterDataStore() *MasterDataStore {
	return &MasterDataStore{data: make(map[string]*domain.MasterDataEntry)}
}

func masterKey(table, key string) string {
	return table + "|" + key
}

// Backfill inserts missing entries and extends to_date of existing ones.
// from_date of an existing entry is never touched.
func (s *MasterDataStore) Backfill(_ context.Context, entries []*domain.MasterDataEntry) (int64, error) {
	for _, e := range entries {
		if e == nil || e.TableName == "" || e.EntityKey == "" || e.FromDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int64
	for _, e := range entries {
		key := masterKey(e.TableName, e.EntityKey)
		toDate := e.ToDate
		if toDate.IsZero() {
			toDate = e.FromDate
		}
		existing, ok := s.data[key]
		if !ok {
			c := *e
			c.ToDate = toDate
			s.data[key] = &c
			inserted++
			continue
		}
		if toDate.After(existing.ToDate) {
			existing.ToDate = toDate
		}
	}
	return inserted, nil
}

// Get retrieves an entry. Returns ErrNotFound if not exists.
func (s *MasterDataStore) Get(_ context.Context, tableName, entityKey string) (*domain.MasterDataEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[masterKey(tableName, entityKey)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *e
	return &c, nil
}

// GetByTable retrieves all entries of a table, ordered by entity_key ASC.
func (s *MasterDataStore) GetByTable(_ context.Context, tableName string) ([]*domain.MasterDataEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MasterDataEntry
	for _, e := range s.data {
		if e.TableName == tableName {
			c := *e
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EntityKey < result[j].EntityKey
	})
	return result, nil
}

var _ storage.MasterDataStore = (*MasterDataStore)(nil)
