// Package history copies each cycle's raw rows into the append-only
// history tables and maintains the master-data registry.
//
// History rows are keyed by (snapshot_date, entity_key) and written with
// insert-or-ignore semantics: the first successful write of a day stands
// and reruns of the same day change nothing.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"options-data-lab/internal/aging"
	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
	"options-data-lab/internal/storage"
)

// Stores groups the stores used by the historizer.
type Stores struct {
	RawOptions     storage.RawOptionStore
	OptionHistory  storage.OptionHistoryStore
	RawStocks      storage.RawStockStore
	StockHistory   storage.StockHistoryStore
	Fundamentals   storage.FundamentalStore
	MasterData     storage.MasterDataStore
	ChangeLog      storage.ChangeLogStore
	Classification storage.ClassificationStore
}

// Result describes one table's historization.
type Result struct {
	Table        string
	SnapshotDate time.Time
	Candidates   int   // raw rows offered
	Stale        int   // raw rows from an earlier cycle, not historized
	Inserted     int64 // new history rows
	Ignored      int64 // rows already present for the day
	NewEntities  int64 // master-data entries created
	FieldChanges int   // slow-tier fields that changed since the previous snapshot
	Skipped      bool  // weekend, nothing written
}

// Historizer snapshots raw tables into history.
type Historizer struct {
	stores   Stores
	registry *aging.Registry
	logger   *zap.SugaredLogger
}

// New creates a historizer.
func New(stores Stores, logger *zap.SugaredLogger) *Historizer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Historizer{
		stores:   stores,
		registry: aging.NewRegistry(stores.Classification, logger),
		logger:   logger,
	}
}

// ShouldSkip reports whether daily historization is skipped on asOf.
func ShouldSkip(asOf time.Time) bool {
	wd := asOf.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Options historizes the raw quotes of one provider.
func (h *Historizer) Options(ctx context.Context, runID string, provider domain.Provider, asOf time.Time) (*Result, error) {
	day := osi.Day(asOf)
	table := aging.TableOptionQuotes + "_history"
	res := &Result{Table: table, SnapshotDate: day}
	if ShouldSkip(day) {
		res.Skipped = true
		return res, h.logSkip(ctx, runID, table, day, string(provider))
	}

	raw, err := h.stores.RawOptions.GetByProvider(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("load raw %s quotes: %w", provider, err)
	}
	// Raw rows left over from an earlier cycle are never historized as today.
	rows := make([]*domain.OptionQuote, 0, len(raw))
	for _, q := range raw {
		if !osi.Day(q.SnapshotDate).Equal(day) {
			res.Stale++
			continue
		}
		c := *q
		c.SnapshotDate = day
		rows = append(rows, &c)
	}
	res.Candidates = len(rows)

	previous, err := h.previousOptions(ctx, provider, day)
	if err != nil {
		return nil, err
	}

	if res.Inserted, err = h.stores.OptionHistory.InsertIgnore(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert %s history: %w", provider, err)
	}
	res.Ignored = int64(len(rows)) - res.Inserted

	entries := make([]*domain.MasterDataEntry, 0, len(rows))
	current := make(map[string]map[string]float64, len(rows))
	for _, q := range rows {
		entries = append(entries, &domain.MasterDataEntry{
			TableName: aging.TableOptionQuotes,
			EntityKey: q.ContractID,
			FromDate:  day,
			ToDate:    day,
		})
		current[q.ContractID] = q.FieldValues()
	}
	if res.NewEntities, err = h.stores.MasterData.Backfill(ctx, entries); err != nil {
		return nil, fmt.Errorf("backfill option master data: %w", err)
	}

	if res.FieldChanges, err = h.recordFieldChanges(ctx, runID, aging.TableOptionQuotes, previous, current); err != nil {
		return nil, err
	}
	return res, h.logInsert(ctx, runID, res, map[string]any{"provider": string(provider)})
}

func (h *Historizer) previousOptions(ctx context.Context, provider domain.Provider, day time.Time) (map[string]map[string]float64, error) {
	latest, err := h.stores.OptionHistory.LatestDate(ctx, provider)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s history date: %w", provider, err)
	}
	if !latest.Before(day) {
		return nil, nil
	}
	prev, err := h.stores.OptionHistory.GetByDate(ctx, provider, latest)
	if err != nil {
		return nil, fmt.Errorf("load previous %s snapshot: %w", provider, err)
	}
	out := make(map[string]map[string]float64, len(prev))
	for _, q := range prev {
		out[q.ContractID] = q.FieldValues()
	}
	return out, nil
}

// Stocks historizes the raw stock prices.
func (h *Historizer) Stocks(ctx context.Context, runID string, asOf time.Time) (*Result, error) {
	day := osi.Day(asOf)
	table := aging.TableStockPrices + "_history"
	res := &Result{Table: table, SnapshotDate: day}
	if ShouldSkip(day) {
		res.Skipped = true
		return res, h.logSkip(ctx, runID, table, day, "")
	}

	raw, err := h.stores.RawStocks.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load raw stock prices: %w", err)
	}
	rows := make([]*domain.StockSnapshot, 0, len(raw))
	for _, s := range raw {
		if !osi.Day(s.SnapshotDate).Equal(day) {
			res.Stale++
			continue
		}
		c := *s
		c.SnapshotDate = day
		rows = append(rows, &c)
	}
	res.Candidates = len(rows)

	prev, err := h.stores.StockHistory.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous stock snapshot: %w", err)
	}
	previous := make(map[string]map[string]float64, len(prev))
	for _, s := range prev {
		if s.SnapshotDate.Before(day) {
			previous[s.Symbol] = s.FieldValues()
		}
	}

	if res.Inserted, err = h.stores.StockHistory.InsertIgnore(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert stock history: %w", err)
	}
	res.Ignored = int64(len(rows)) - res.Inserted

	entries := make([]*domain.MasterDataEntry, 0, len(rows))
	current := make(map[string]map[string]float64, len(rows))
	for _, s := range rows {
		entries = append(entries, &domain.MasterDataEntry{
			TableName: aging.TableStockPrices,
			EntityKey: s.Symbol,
			FromDate:  day,
			ToDate:    day,
		})
		current[s.Symbol] = s.FieldValues()
	}
	if res.NewEntities, err = h.stores.MasterData.Backfill(ctx, entries); err != nil {
		return nil, fmt.Errorf("backfill stock master data: %w", err)
	}
	if res.FieldChanges, err = h.recordFieldChanges(ctx, runID, aging.TableStockPrices, previous, current); err != nil {
		return nil, err
	}
	return res, h.logInsert(ctx, runID, res, nil)
}

// Fundamentals historizes the given fundamentals, which the caller has
// already written to the raw table.
func (h *Historizer) Fundamentals(ctx context.Context, runID string, records []*domain.FundamentalRecord, asOf time.Time) (*Result, error) {
	day := osi.Day(asOf)
	table := aging.TableFundamentals + "_history"
	res := &Result{Table: table, SnapshotDate: day, Candidates: len(records)}
	if ShouldSkip(day) {
		res.Skipped = true
		return res, h.logSkip(ctx, runID, table, day, "")
	}

	previous := make(map[string]map[string]float64)
	prev, err := h.stores.Fundamentals.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous fundamentals: %w", err)
	}
	for _, r := range prev {
		if r.SnapshotDate.Before(day) {
			previous[r.Symbol] = r.FieldValues()
		}
	}

	rows := make([]*domain.FundamentalRecord, 0, len(records))
	current := make(map[string]map[string]float64, len(records))
	for _, r := range records {
		c := *r
		c.SnapshotDate = day
		c.Metrics = r.FieldValues()
		rows = append(rows, &c)
		current[r.Symbol] = c.Metrics
	}
	if res.Inserted, err = h.stores.Fundamentals.InsertHistoryIgnore(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert fundamentals history: %w", err)
	}
	res.Ignored = int64(len(rows)) - res.Inserted

	if res.FieldChanges, err = h.recordFieldChanges(ctx, runID, aging.TableFundamentals, previous, current); err != nil {
		return nil, err
	}
	return res, h.logInsert(ctx, runID, res, nil)
}

func (h *Historizer) recordFieldChanges(ctx context.Context, runID, table string, previous, current map[string]map[string]float64) (int, error) {
	if len(previous) == 0 {
		return 0, nil
	}
	tiers, err := h.registry.Tiers(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("load %s tiers: %w", table, err)
	}
	changes := aging.DetectChanges(tiers, previous, current)
	if len(changes) == 0 {
		return 0, nil
	}

	counts := aging.CountByField(changes)
	fields := make(map[string]any, len(counts))
	for f, n := range counts {
		fields[f] = n
	}
	h.logger.Infow("slow-tier fields changed", "table", table, "changes", len(changes))
	err = h.stores.ChangeLog.Append(ctx, &domain.ChangeLogEntry{
		RunID:          runID,
		OperationType:  domain.OperationFieldChange,
		TableName:      table,
		AffectedRows:   int64(len(changes)),
		AdditionalData: map[string]any{"fields": fields},
	})
	if err != nil {
		return 0, fmt.Errorf("log field changes: %w", err)
	}
	return len(changes), nil
}

func (h *Historizer) logInsert(ctx context.Context, runID string, res *Result, extra map[string]any) error {
	data := map[string]any{
		"snapshot_date": res.SnapshotDate.Format("2006-01-02"),
		"candidates":    res.Candidates,
		"stale":         res.Stale,
		"ignored":       res.Ignored,
		"new_entities":  res.NewEntities,
	}
	for k, v := range extra {
		data[k] = v
	}
	if res.Stale > 0 {
		h.logger.Warnw("stale raw rows not historized", "table", res.Table, "rows", res.Stale)
	}
	h.logger.Infow("historized", "table", res.Table, "inserted", res.Inserted, "ignored", res.Ignored)
	if err := h.stores.ChangeLog.Append(ctx, &domain.ChangeLogEntry{
		RunID:          runID,
		OperationType:  domain.OperationInsert,
		TableName:      res.Table,
		AffectedRows:   res.Inserted,
		AdditionalData: data,
	}); err != nil {
		return fmt.Errorf("log %s insert: %w", res.Table, err)
	}
	return nil
}

func (h *Historizer) logSkip(ctx context.Context, runID, table string, day time.Time, provider string) error {
	data := map[string]any{"reason": "weekend", "snapshot_date": day.Format("2006-01-02")}
	if provider != "" {
		data["provider"] = provider
	}
	h.logger.Infow("skipping historization", "table", table, "reason", "weekend")
	if err := h.stores.ChangeLog.Append(ctx, &domain.ChangeLogEntry{
		RunID:          runID,
		OperationType:  domain.OperationSkip,
		TableName:      table,
		AdditionalData: data,
	}); err != nil {
		return fmt.Errorf("log %s skip: %w", table, err)
	}
	return nil
}
