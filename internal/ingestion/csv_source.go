package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// CSVSource reads provider exports from a directory, one <table>.csv file per table.
// A missing directory means the provider did not deliver this cycle.
type CSVSource struct {
	name string
	dir  string
}

// NewCSVSource creates a source named name reading from dir.
func NewCSVSource(name, dir string) *CSVSource {
	return &CSVSource{name: name, dir: dir}
}

// Name implements Source.
func (s *CSVSource) Name() string { return s.name }

// Tables implements Source. Only tables with a file present are listed.
func (s *CSVSource) Tables() []string {
	var out []string
	for table := range Schemas {
		if _, err := os.Stat(s.path(table)); err == nil {
			out = append(out, table)
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		// Let Fetch report the source as unavailable.
		return []string{TableOptions}
	}
	return out
}

func (s *CSVSource) path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// Fetch implements Source.
func (s *CSVSource) Fetch(ctx context.Context, table string) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.name, err)
	}

	f, err := os.Open(s.path(table))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s has no %s export", ErrSourceUnavailable, s.name, table)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(f, s.name, table)
}

// ReadCSV reads a header row followed by data rows.
// Row width is not enforced here; Validate reports ragged rows as drift.
func ReadCSV(r io.Reader, source, table string) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s/%s: empty file", ErrSchemaDrift, source, table)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s header: %w", source, table, err)
	}

	b := &Batch{Source: source, Table: table, Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", source, table, err)
		}
		b.Rows = append(b.Rows, row)
	}
	return b, nil
}
