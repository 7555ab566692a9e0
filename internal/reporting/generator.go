package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/screening"
	"options-data-lab/internal/storage"
)

// PricedReader returns the priced option view.
type PricedReader interface {
	GetPriced(ctx context.Context, symbol string) ([]*domain.PricedOption, error)
}

// Generator produces reports from stored data.
type Generator struct {
	priced    PricedReader
	ivStats   storage.IVStatStore
	streaks   storage.DividendStreakStore
	changeLog storage.ChangeLogStore
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	priced PricedReader,
	ivStats storage.IVStatStore,
	streaks storage.DividendStreakStore,
	changeLog storage.ChangeLogStore,
) *Generator {
	return &Generator{
		priced:    priced,
		ivStats:   ivStats,
		streaks:   streaks,
		changeLog: changeLog,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Params selects the screens of a report.
type Params struct {
	MarriedPut screening.MarriedPutParams
	IVFilter   screening.IVFilterParams
	// ChangesSince bounds the change log section; zero means the last 24 hours.
	ChangesSince time.Time
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context, p Params) (*Report, error) {
	rows, err := g.priced.GetPriced(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load priced options: %w", err)
	}

	report := &Report{GeneratedAt: g.now(), Coverage: coverage(rows)}
	if len(rows) > 0 {
		report.SnapshotDate = rows[0].SnapshotDate
	}

	if report.MarriedPuts, err = screening.MarriedPuts(rows, p.MarriedPut); err != nil {
		return nil, err
	}

	latest, err := g.ivStats.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load iv stats: %w", err)
	}
	if report.IVLeaders, err = screening.IVFilter(latest, p.IVFilter); err != nil {
		return nil, err
	}
	sort.SliceStable(report.IVLeaders, func(i, j int) bool {
		return report.IVLeaders[i].Rank > report.IVLeaders[j].Rank
	})

	streaks, err := g.streaks.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dividend streaks: %w", err)
	}
	for _, s := range streaks {
		if s.Classification != domain.StreakNone {
			report.Streaks = append(report.Streaks, s)
		}
	}
	sort.SliceStable(report.Streaks, func(i, j int) bool {
		return report.Streaks[i].Years > report.Streaks[j].Years
	})

	since := p.ChangesSince
	if since.IsZero() {
		since = report.GeneratedAt.Add(-24 * time.Hour)
	}
	entries, err := g.changeLog.GetSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load change log: %w", err)
	}
	report.Changes = summarizeChanges(entries)

	return report, nil
}

func coverage(rows []*domain.PricedOption) Coverage {
	var c Coverage
	symbols := make(map[string]struct{})
	for _, r := range rows {
		c.Contracts++
		symbols[r.Symbol] = struct{}{}
		if r.HasYahoo {
			c.WithYahoo++
		}
		if r.HasBarchart {
			c.WithBarchart++
		}
		if r.HasStock {
			c.WithUnderlying++
		}
		if r.ExtrinsicAnomaly {
			c.ExtrinsicAnomalies++
		}
	}
	c.Symbols = len(symbols)
	return c
}

func summarizeChanges(entries []*domain.ChangeLogEntry) []ChangeRow {
	type key struct{ op, table string }
	byKey := make(map[key]*ChangeRow)
	for _, e := range entries {
		k := key{e.OperationType, e.TableName}
		row, ok := byKey[k]
		if !ok {
			row = &ChangeRow{OperationType: e.OperationType, TableName: e.TableName}
			byKey[k] = row
		}
		row.Entries++
		row.AffectedRows += e.AffectedRows
	}

	out := make([]ChangeRow, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OperationType != out[j].OperationType {
			return out[i].OperationType < out[j].OperationType
		}
		return out[i].TableName < out[j].TableName
	})
	return out
}
