package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// RawStockStore is an in-memory implementation of storage.RawStockStore.
type RawStockStore struct {
	mu   sync.RWMutex
	data []*domain.StockSnapshot
}

// NewRawStockStore creates a new in-memory raw stock store.
func NewRawStockStore() *RawStockStore {
	return &RawStockStore{}
}

// Replace overwrites all raw stock rows.
func (s *RawStockStore) Replace(_ context.Context, snapshots []*domain.StockSnapshot) error {
	seen := make(map[string]struct{}, len(snapshots))
	rows := make([]*domain.StockSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[snap.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[snap.Symbol] = struct{}{}
		c := *snap
		rows = append(rows, &c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = rows
	return nil
}

// GetAll retrieves all raw stock rows, ordered by symbol ASC.
func (s *RawStockStore) GetAll(_ context.Context) ([]*domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.StockSnapshot, 0, len(s.data))
	for _, snap := range s.data {
		c := *snap
		result = append(result, &c)
	}
	sortStocks(result)
	return result, nil
}

var _ storage.RawStockStore = (*RawStockStore)(nil)

// StockHistoryStore is an in-memory implementation of storage.StockHistoryStore.
type StockHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StockSnapshot // keyed by (snapshot_date, symbol)
}

// NewStockHistoryStore creates a new in-memory stock history store.
func NewStockHistoryStore() *StockHistoryStore {
	return &StockHistoryStore{data: make(map[string]*domain.StockSnapshot)}
}

// InsertIgnore adds snapshots, skipping keys that already exist.
func (s *StockHistoryStore) InsertIgnore(_ context.Context, snapshots []*domain.StockSnapshot) (int64, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.Symbol == "" || snap.SnapshotDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := stockKey(snap)
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	var inserted int64
	for _, snap := range snapshots {
		key := stockKey(snap)
		if _, exists := s.data[key]; exists {
			continue
		}
		c := *snap
		s.data[key] = &c
		inserted++
	}
	return inserted, nil
}

// LatestDate returns MAX(snapshot_date).
func (s *StockHistoryStore) LatestDate(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestLocked()
}

func (s *StockHistoryStore) latestLocked() (time.Time, error) {
	var latest time.Time
	for _, snap := range s.data {
		if snap.SnapshotDate.After(latest) {
			latest = snap.SnapshotDate
		}
	}
	if latest.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

// GetCurrent retrieves all rows at MAX(snapshot_date).
func (s *StockHistoryStore) GetCurrent(_ context.Context) ([]*domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest, err := s.latestLocked()
	if err != nil {
		return nil, nil
	}
	day := dayKey(latest)
	var result []*domain.StockSnapshot
	for _, snap := range s.data {
		if dayKey(snap.SnapshotDate) == day {
			c := *snap
			result = append(result, &c)
		}
	}
	sortStocks(result)
	return result, nil
}

// GetBySymbolRange retrieves rows for a symbol within [from, to], ordered by snapshot_date ASC.
func (s *StockHistoryStore) GetBySymbolRange(_ context.Context, symbol string, from, to time.Time) ([]*domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StockSnapshot
	for _, snap := range s.data {
		if snap.Symbol == symbol && inRange(snap.SnapshotDate, from, to) {
			c := *snap
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SnapshotDate.Before(result[j].SnapshotDate)
	})
	return result, nil
}

// Symbols returns all distinct symbols, ordered ASC.
func (s *StockHistoryStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, snap := range s.data {
		set[snap.Symbol] = struct{}{}
	}
	return sortedKeys(set), nil
}

var _ storage.StockHistoryStore = (*StockHistoryStore)(nil)

func sortStocks(ss []*domain.StockSnapshot) {
	sort.Slice(ss, func(i, j int) bool {
		return ss[i].Symbol < ss[j].Symbol
	})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
