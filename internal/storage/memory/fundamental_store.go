package memory

import (
	"context"
	"sync"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// FundamentalStore is an in-memory implementation of storage.FundamentalStore.
type FundamentalStore struct {
	mu      sync.RWMutex
	raw     []*domain.FundamentalRecord
	history map[string]*domain.FundamentalRecord // keyed by (symbol, snapshot_date)
}

// NewFundamentalStore creates a new in-memory fundamental store.
func NewFundamentalStore() *FundamentalStore {
	return &FundamentalStore{history: make(map[string]*domain.FundamentalRecord)}
}

func copyFundamental(r *domain.FundamentalRecord) *domain.FundamentalRecord {
	c := *r
	c.Metrics = r.FieldValues()
	return &c
}

// Replace overwrites the raw fundamentals.
func (s *FundamentalStore) Replace(_ context.Context, records []*domain.FundamentalRecord) error {
	rows := make([]*domain.FundamentalRecord, 0, len(records))
	for _, r := range records {
		if r == nil || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		rows = append(rows, copyFundamental(r))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = rows
	return nil
}

// InsertHistoryIgnore appends records keyed by (snapshot_date, symbol).
func (s *FundamentalStore) InsertHistoryIgnore(_ context.Context, records []*domain.FundamentalRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Symbol == "" || r.SnapshotDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := symbolDateKey(r.Symbol, r.SnapshotDate)
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	var inserted int64
	for _, r := range records {
		key := symbolDateKey(r.Symbol, r.SnapshotDate)
		if _, exists := s.history[key]; exists {
			continue
		}
		s.history[key] = copyFundamental(r)
		inserted++
	}
	return inserted, nil
}

// GetCurrent retrieves history rows at MAX(snapshot_date), ordered by symbol ASC.
func (s *FundamentalStore) GetCurrent(_ context.Context) ([]*domain.FundamentalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, r := range s.history {
		if r.SnapshotDate.After(latest) {
			latest = r.SnapshotDate
		}
	}
	if latest.IsZero() {
		return nil, nil
	}

	bySymbol := make(map[string]*domain.FundamentalRecord)
	for _, r := range s.history {
		if r.SnapshotDate.Equal(latest) {
			bySymbol[r.Symbol] = r
		}
	}
	set := make(map[string]struct{}, len(bySymbol))
	for sym := range bySymbol {
		set[sym] = struct{}{}
	}
	result := make([]*domain.FundamentalRecord, 0, len(bySymbol))
	for _, sym := range sortedKeys(set) {
		result = append(result, copyFundamental(bySymbol[sym]))
	}
	return result, nil
}

var _ storage.FundamentalStore = (*FundamentalStore)(nil)
