package memory

import (
	"context"
	"sort"
	"sync"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// IVStatStore is an in-memory implementation of storage.IVStatStore.
type IVStatStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IVStat // keyed by (symbol, date)
}

// NewIVStatStore creates a new in-memory IV stat store.
func NewIVStatStore() *IVStatStore {
	return &IVStatStore{data: make(map[string]*domain.IVStat)}
}

// Upsert replaces the stats of the given keys.
func (s *IVStatStore) Upsert(_ context.Context, stats []*domain.IVStat) error {
	for _, st := range stats {
		if st == nil || st.Symbol == "" || st.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range stats {
		c := *st
		s.data[symbolDateKey(st.Symbol, st.Date)] = &c
	}
	return nil
}

// GetBySymbol retrieves stats for a symbol, ordered by date ASC.
func (s *IVStatStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.IVStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IVStat
	for _, st := range s.data {
		if st.Symbol == symbol {
			c := *st
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetLatest retrieves the most recent stat per symbol, ordered by symbol ASC.
func (s *IVStatStore) GetLatest(_ context.Context) ([]*domain.IVStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*domain.IVStat)
	for _, st := range s.data {
		if cur, ok := latest[st.Symbol]; !ok || st.Date.After(cur.Date) {
			latest[st.Symbol] = st
		}
	}
	result := make([]*domain.IVStat, 0, len(latest))
	for _, st := range latest {
		c := *st
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.IVStatStore = (*IVStatStore)(nil)

// VolatilityStore is an in-memory implementation of storage.VolatilityStore.
type VolatilityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.VolatilityPoint
}

// NewVolatilityStore creates a new in-memory volatility store.
func NewVolatilityStore() *VolatilityStore {
	return &VolatilityStore{data: make(map[string]*domain.VolatilityPoint)}
}

// Upsert replaces the points of the given keys.
func (s *VolatilityStore) Upsert(_ context.Context, points []*domain.VolatilityPoint) error {
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		c := *p
		s.data[symbolDateKey(p.Symbol, p.Date)] = &c
	}
	return nil
}

// GetBySymbol retrieves points for a symbol, ordered by date ASC.
func (s *VolatilityStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.VolatilityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VolatilityPoint
	for _, p := range s.data {
		if p.Symbol == symbol {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

var _ storage.VolatilityStore = (*VolatilityStore)(nil)

// DividendStreakStore is an in-memory implementation of storage.DividendStreakStore.
type DividendStreakStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DividendStreak
}

// NewDividendStreakStore creates a new in-memory dividend streak store.
func NewDividendStreakStore() *DividendStreakStore {
	return &DividendStreakStore{data: make(map[string]*domain.DividendStreak)}
}

// ReplaceAll overwrites all streaks.
func (s *DividendStreakStore) ReplaceAll(_ context.Context, streaks []*domain.DividendStreak) error {
	next := make(map[string]*domain.DividendStreak, len(streaks))
	for _, st := range streaks {
		if st == nil || st.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := next[st.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		c := *st
		next[st.Symbol] = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = next
	return nil
}

// Get retrieves a symbol's streak. Returns ErrNotFound if not exists.
func (s *DividendStreakStore) Get(_ context.Context, symbol string) (*domain.DividendStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.data[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *st
	return &c, nil
}

// GetAll retrieves all streaks, ordered by symbol ASC.
func (s *DividendStreakStore) GetAll(_ context.Context) ([]*domain.DividendStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DividendStreak, 0, len(s.data))
	for _, st := range s.data {
		c := *st
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.DividendStreakStore = (*DividendStreakStore)(nil)
