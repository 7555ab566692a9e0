package memory

import (
	"context"
	"sort"
	"sync"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// DividendStore is an in-memory implementation of storage.DividendStore.
type DividendStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DividendPayout // keyed by (symbol, ex_date)
}

// NewDividendStore creates a new in-memory dividend store.
func NewDividendStore() *DividendStore {
	return &DividendStore{data: make(map[string]*domain.DividendPayout)}
}

// InsertIgnore adds payouts, skipping existing keys.
func (s *DividendStore) InsertIgnore(_ context.Context, payouts []*domain.DividendPayout) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(payouts))
	for _, p := range payouts {
		if p == nil || p.Symbol == "" || p.ExDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := symbolDateKey(p.Symbol, p.ExDate)
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	var inserted int64
	for _, p := range payouts {
		key := symbolDateKey(p.Symbol, p.ExDate)
		if _, exists := s.data[key]; exists {
			continue
		}
		c := *p
		s.data[key] = &c
		inserted++
	}
	return inserted, nil
}

// GetBySymbol retrieves payouts for a symbol, ordered by ex_date ASC.
func (s *DividendStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.DividendPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DividendPayout
	for _, p := range s.data {
		if p.Symbol == symbol {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExDate.Before(result[j].ExDate)
	})
	return result, nil
}

// Symbols returns all symbols with at least one payout.
func (s *DividendStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, p := range s.data {
		set[p.Symbol] = struct{}{}
	}
	return sortedKeys(set), nil
}

var _ storage.DividendStore = (*DividendStore)(nil)
