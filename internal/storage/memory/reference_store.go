package memory

import (
	"context"
	"sort"
	"sync"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// ReferenceStore is an in-memory implementation of storage.ReferenceStore.
type ReferenceStore struct {
	mu       sync.RWMutex
	targets  []*domain.AnalystTarget
	earnings []*domain.EarningsDate
}

// NewReferenceStore creates a new in-memory reference store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{}
}

// ReplaceAnalystTargets overwrites all analyst targets.
func (s *ReferenceStore) ReplaceAnalystTargets(_ context.Context, targets []*domain.AnalystTarget) error {
	rows := make([]*domain.AnalystTarget, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[t.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[t.Symbol] = struct{}{}
		c := *t
		rows = append(rows, &c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = rows
	return nil
}

// ReplaceEarningsDates overwrites all earnings dates.
func (s *ReferenceStore) ReplaceEarningsDates(_ context.Context, dates []*domain.EarningsDate) error {
	rows := make([]*domain.EarningsDate, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if d == nil || d.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[d.Symbol]; ok {
			return storage.ErrDuplicateKey
		}
		seen[d.Symbol] = struct{}{}
		c := *d
		rows = append(rows, &c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.earnings = rows
	return nil
}

// GetAnalystTargets retrieves all targets, ordered by symbol ASC.
func (s *ReferenceStore) GetAnalystTargets(_ context.Context) ([]*domain.AnalystTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AnalystTarget, 0, len(s.targets))
	for _, t := range s.targets {
		c := *t
		result = append(result, &c)
	}
	return result, nil
}

// GetEarningsDates retrieves all earnings dates, ordered by symbol ASC.
func (s *ReferenceStore) GetEarningsDates(_ context.Context) ([]*domain.EarningsDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.EarningsDate, 0, len(s.earnings))
	for _, d := range s.earnings {
		c := *d
		result = append(result, &c)
	}
	return result, nil
}

var _ storage.ReferenceStore = (*ReferenceStore)(nil)
