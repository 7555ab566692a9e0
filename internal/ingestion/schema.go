package ingestion

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaDrift is returned when a batch's columns do not match the table contract.
// It is fatal for that table only.
var ErrSchemaDrift = errors.New("schema drift")

// Schema is the column contract of one raw table.
type Schema struct {
	Required []string
	Optional []string
}

// Schemas holds the fixed column set of every raw table.
var Schemas = map[string]Schema{
	TableOptions: {
		Required: []string{"symbol", "option_type", "strike", "expiration_date"},
		Optional: []string{
			"contract_id", "bid", "ask", "last", "theoretical", "volume", "open_interest",
			"delta", "gamma", "theta", "vega", "rho", "implied_volatility",
		},
	},
	TableStocks: {
		Required: []string{"symbol", "close"},
		Optional: []string{
			"date", "open", "high", "low", "volume", "dividends", "stock_splits",
			"live_price", "price_source",
		},
	},
	TableFundamentals: {
		Required: []string{"symbol"},
	},
	TableDividends: {
		Required: []string{"symbol", "ex_date", "amount"},
	},
	TableAnalystTargets: {
		Required: []string{"symbol"},
		Optional: []string{"low", "mean", "median", "high", "analysts"},
	},
	TableEarnings: {
		Required: []string{"symbol", "earnings_date"},
	},
}

// wide tables accept any additional numeric column.
var wide = map[string]bool{TableFundamentals: true}

// Columns maps normalized column names to their index in a batch.
type Columns map[string]int

// Validate checks a batch against its table's schema and returns the column index.
// Missing required columns, unknown columns, duplicate columns and ragged rows
// all report ErrSchemaDrift.
func Validate(b *Batch) (Columns, error) {
	schema, ok := Schemas[b.Table]
	if !ok {
		return nil, fmt.Errorf("%s: unknown table %q: %w", b.Source, b.Table, ErrSchemaDrift)
	}

	allowed := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, c := range schema.Required {
		allowed[c] = true
	}
	for _, c := range schema.Optional {
		allowed[c] = true
	}

	cols := make(Columns, len(b.Header))
	var unknown []string
	for i, h := range b.Header {
		name := NormalizeColumn(h)
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("%s.%s: duplicate column %q: %w", b.Source, b.Table, name, ErrSchemaDrift)
		}
		cols[name] = i
		if !allowed[name] && !wide[b.Table] {
			unknown = append(unknown, name)
		}
	}

	var missing []string
	for _, c := range schema.Required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%s.%s: missing %v, unexpected %v: %w", b.Source, b.Table, missing, unknown, ErrSchemaDrift)
	}

	for i, row := range b.Rows {
		if len(row) != len(b.Header) {
			return nil, fmt.Errorf("%s.%s: row %d has %d cells, header has %d: %w",
				b.Source, b.Table, i+1, len(row), len(b.Header), ErrSchemaDrift)
		}
	}
	return cols, nil
}

// NormalizeColumn lowercases a header and maps separators to underscores.
// "Open Interest", "open-interest" and "openInterest" are not equivalent;
// only case and separators are normalized.
func NormalizeColumn(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}
