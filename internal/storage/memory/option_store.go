package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// RawOptionStore is an in-memory implementation of storage.RawOptionStore.
type RawOptionStore struct {
	mu   sync.RWMutex
	data map[domain.Provider][]*domain.OptionQuote
}

// NewRawOptionStore creates a new in-memory raw option store.
func NewRawOptionStore() *RawOptionStore {
	return &RawOptionStore{data: make(map[domain.Provider][]*domain.OptionQuote)}
}

// Replace overwrites all raw rows of a provider with quotes.
func (s *RawOptionStore) Replace(_ context.Context, provider domain.Provider, quotes []*domain.OptionQuote) error {
	seen := make(map[string]struct{}, len(quotes))
	rows := make([]*domain.OptionQuote, 0, len(quotes))
	for _, q := range quotes {
		if q == nil || q.ContractID == "" || q.Provider != provider {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[q.ContractID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[q.ContractID] = struct{}{}
		c := *q
		rows = append(rows, &c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[provider] = rows
	return nil
}

// GetByProvider retrieves all raw rows of a provider, ordered by contract_id ASC.
func (s *RawOptionStore) GetByProvider(_ context.Context, provider domain.Provider) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OptionQuote, 0, len(s.data[provider]))
	for _, q := range s.data[provider] {
		c := *q
		result = append(result, &c)
	}
	sortQuotes(result)
	return result, nil
}

var _ storage.RawOptionStore = (*RawOptionStore)(nil)

// OptionHistoryStore is an in-memory implementation of storage.OptionHistoryStore.
type OptionHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptionQuote // keyed by (snapshot_date, provider, contract_id)
}

// NewOptionHistoryStore creates a new in-memory option history store.
func NewOptionHistoryStore() *OptionHistoryStore {
	return &OptionHistoryStore{data: make(map[string]*domain.OptionQuote)}
}

// InsertIgnore adds quotes, skipping keys that already exist.
func (s *OptionHistoryStore) InsertIgnore(_ context.Context, quotes []*domain.OptionQuote) (int64, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		if q == nil || q.ContractID == "" || q.SnapshotDate.IsZero() {
			return 0, storage.ErrInvalidInput
		}
		key := quoteKey(q)
		if _, exists := batchKeys[key]; exists {
			return 0, storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	var inserted int64
	for _, q := range quotes {
		key := quoteKey(q)
		if _, exists := s.data[key]; exists {
			continue
		}
		c := *q
		s.data[key] = &c
		inserted++
	}
	return inserted, nil
}

// LatestDate returns MAX(snapshot_date) for a provider.
func (s *OptionHistoryStore) LatestDate(_ context.Context, provider domain.Provider) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestLocked(provider)
}

func (s *OptionHistoryStore) latestLocked(provider domain.Provider) (time.Time, error) {
	var latest time.Time
	for _, q := range s.data {
		if q.Provider == provider && q.SnapshotDate.After(latest) {
			latest = q.SnapshotDate
		}
	}
	if latest.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

// GetByDate retrieves a provider's rows for one snapshot date.
func (s *OptionHistoryStore) GetByDate(_ context.Context, provider domain.Provider, date time.Time) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byDateLocked(provider, date), nil
}

func (s *OptionHistoryStore) byDateLocked(provider domain.Provider, date time.Time) []*domain.OptionQuote {
	day := dayKey(date)
	var result []*domain.OptionQuote
	for _, q := range s.data {
		if q.Provider == provider && dayKey(q.SnapshotDate) == day {
			c := *q
			result = append(result, &c)
		}
	}
	sortQuotes(result)
	return result
}

// GetCurrent retrieves a provider's rows at MAX(snapshot_date).
func (s *OptionHistoryStore) GetCurrent(_ context.Context, provider domain.Provider) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest, err := s.latestLocked(provider)
	if err != nil {
		return nil, nil
	}
	return s.byDateLocked(provider, latest), nil
}

// GetBySymbolRange retrieves a provider's rows for a symbol within [from, to].
func (s *OptionHistoryStore) GetBySymbolRange(_ context.Context, provider domain.Provider, symbol string, from, to time.Time) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptionQuote
	for _, q := range s.data {
		if q.Provider == provider && q.Symbol == symbol && inRange(q.SnapshotDate, from, to) {
			c := *q
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SnapshotDate.Equal(result[j].SnapshotDate) {
			return result[i].SnapshotDate.Before(result[j].SnapshotDate)
		}
		return result[i].ContractID < result[j].ContractID
	})
	return result, nil
}

// CountByDate returns the number of rows of a provider on one snapshot date.
func (s *OptionHistoryStore) CountByDate(_ context.Context, provider domain.Provider, date time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byDateLocked(provider, date))), nil
}

var _ storage.OptionHistoryStore = (*OptionHistoryStore)(nil)

func sortQuotes(qs []*domain.OptionQuote) {
	sort.Slice(qs, func(i, j int) bool {
		return qs[i].ContractID < qs[j].ContractID
	})
}
