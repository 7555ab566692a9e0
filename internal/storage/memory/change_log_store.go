package memory

import (
	"context"
	"sync"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// ChangeLogStore is an in-memory implementation of storage.ChangeLogStore.
type ChangeLogStore struct {
	mu     sync.RWMutex
	data   []*domain.ChangeLogEntry
	nextID int64
	now    func() time.Time
}

// NewChangeLogStore creates a new in-memory change log store.
func NewChangeLogStore() *ChangeLogStore {
	return &ChangeLogStore{nextID: 1, now: time.Now}
}

func copyEntry(e *domain.ChangeLogEntry) *domain.ChangeLogEntry {
	c := *e
	if e.AdditionalData != nil {
		c.AdditionalData = make(map[string]any, len(e.AdditionalData))
		for k, v := range e.AdditionalData {
			c.AdditionalData[k] = v
		}
	}
	return &c
}

// Append adds an entry, assigning ID and Timestamp when zero.
func (s *ChangeLogStore) Append(_ context.Context, e *domain.ChangeLogEntry) error {
	if e == nil || e.OperationType == "" || e.TableName == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == 0 {
		e.ID = s.nextID
	}
	if e.ID >= s.nextID {
		s.nextID = e.ID + 1
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.data = append(s.data, copyEntry(e))
	return nil
}

// GetByRunID retrieves entries of one run, ordered by id ASC.
func (s *ChangeLogStore) GetByRunID(_ context.Context, runID string) ([]*domain.ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ChangeLogEntry
	for _, e := range s.data {
		if e.RunID == runID {
			result = append(result, copyEntry(e))
		}
	}
	return result, nil
}

// GetSince retrieves entries with timestamp >= since, ordered by id ASC.
func (s *ChangeLogStore) GetSince(_ context.Context, since time.Time) ([]*domain.ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ChangeLogEntry
	for _, e := range s.data {
		if !e.Timestamp.Before(since) {
			result = append(result, copyEntry(e))
		}
	}
	return result, nil
}

var _ storage.ChangeLogStore = (*ChangeLogStore)(nil)
