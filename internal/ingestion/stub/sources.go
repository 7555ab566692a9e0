// Package stub provides in-memory ingestion sources for tests.
package stub

import (
	"context"
	"fmt"
	"sort"

	"options-data-lab/internal/ingestion"
)

// Source returns fixed in-memory batches.
// Rows can be intentionally unordered or duplicated to test ingestion.
// Implements ingestion.Source interface.
type Source struct {
	name    string
	batches map[string]*ingestion.Batch

	// Unavailable makes every Fetch fail with ingestion.ErrSourceUnavailable.
	Unavailable bool

	// Calls counts Fetch calls per table.
	Calls map[string]int
}

// NewSource creates a stub source with no tables.
func NewSource(name string) *Source {
	return &Source{
		name:    name,
		batches: make(map[string]*ingestion.Batch),
		Calls:   make(map[string]int),
	}
}

// With adds a table. Returns the source for chaining.
func (s *Source) With(table string, header []string, rows ...[]string) *Source {
	s.batches[table] = &ingestion.Batch{Source: s.name, Table: table, Header: header, Rows: rows}
	return s
}

// Name implements ingestion.Source.
func (s *Source) Name() string { return s.name }

// Tables implements ingestion.Source.
func (s *Source) Tables() []string {
	out := make([]string, 0, len(s.batches))
	for t := range s.batches {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Fetch implements ingestion.Source. Returns a copy to prevent mutation.
func (s *Source) Fetch(_ context.Context, table string) (*ingestion.Batch, error) {
	s.Calls[table]++
	if s.Unavailable {
		return nil, fmt.Errorf("%w: %s is down", ingestion.ErrSourceUnavailable, s.name)
	}
	b, ok := s.batches[table]
	if !ok {
		return nil, fmt.Errorf("stub %s has no table %s", s.name, table)
	}
	c := *b
	c.Header = append([]string(nil), b.Header...)
	c.Rows = make([][]string, len(b.Rows))
	for i, r := range b.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	return &c, nil
}
