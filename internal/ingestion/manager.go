package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/observability"
	"options-data-lab/internal/osi"
	"options-data-lab/internal/storage"
)

// maxLoggedKeys caps the duplicate keys copied into one change-log entry.
const maxLoggedKeys = 20

// storedTables maps a source table to the table its rows are written to.
var storedTables = map[string]string{
	TableOptions:        "option_quotes_raw",
	TableStocks:         "stock_prices_raw",
	TableFundamentals:   "fundamentals_raw",
	TableDividends:      "dividend_payouts",
	TableAnalystTargets: "analyst_targets",
	TableEarnings:       "earnings_dates",
}

// StoredTable returns the storage table of a source table.
func StoredTable(table string) string {
	if t, ok := storedTables[table]; ok {
		return t
	}
	return table
}

// Stores groups the raw stores written by ingestion.
type Stores struct {
	RawOptions   storage.RawOptionStore
	RawStocks    storage.RawStockStore
	Fundamentals storage.FundamentalStore
	Reference    storage.ReferenceStore
	Dividends    storage.DividendStore
	ChangeLog    storage.ChangeLogStore
}

// TableReport is the outcome of one (source, table) pair.
type TableReport struct {
	Source     string
	Table      string
	Rows       int
	Duplicates int  // rows dropped by the duplicate tie-break
	Skipped    bool // source unavailable
	Err        error
}

// Report is the outcome of one collection cycle.
type Report struct {
	RunID        string
	SnapshotDate time.Time
	Tables       []TableReport

	// Fundamentals are the decoded records, handed on to historization.
	Fundamentals []*domain.FundamentalRecord
}

// Failed returns the tables that were rejected or could not be stored.
func (r *Report) Failed() []TableReport {
	var out []TableReport
	for _, t := range r.Tables {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// SkippedSources returns the names of unavailable sources, sorted.
func (r *Report) SkippedSources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.Tables {
		if t.Skipped && !seen[t.Source] {
			seen[t.Source] = true
			out = append(out, t.Source)
		}
	}
	sort.Strings(out)
	return out
}

// Manager orchestrates ingestion from sources to raw storage.
// An unavailable source is skipped and a drifted table is rejected;
// neither stops the rest of the cycle.
type Manager struct {
	sources []Source
	stores  Stores
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewManager creates a new ingestion manager. Sources are visited in name order.
func NewManager(sources []Source, stores Stores, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	sorted := append([]Source(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	return &Manager{
		sources: sorted,
		stores:  stores,
		logger:  logger,
		now:     time.Now,
	}
}

// Collect fetches every table of every source, limited to tables when given,
// and replaces the raw rows. Only context cancellation aborts the cycle;
// per-table failures are returned in the report.
func (m *Manager) Collect(ctx context.Context, runID string, asOf time.Time, tables ...string) (*Report, error) {
	want := make(map[string]bool, len(tables))
	for _, t := range tables {
		want[t] = true
	}
	report := &Report{RunID: runID, SnapshotDate: osi.Day(asOf)}

	for _, src := range m.sources {
		for _, table := range src.Tables() {
			if len(want) > 0 && !want[table] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			tr, unavailable := m.collectTable(ctx, runID, src, table, asOf, report)
			report.Tables = append(report.Tables, tr)
			if unavailable {
				break
			}
		}
	}
	return report, nil
}

func (m *Manager) collectTable(ctx context.Context, runID string, src Source, table string, asOf time.Time, report *Report) (TableReport, bool) {
	tr := TableReport{Source: src.Name(), Table: table}

	batch, err := src.Fetch(ctx, table)
	if errors.Is(err, ErrSourceUnavailable) {
		tr.Skipped = true
		if err := m.skipSource(ctx, runID, src, err); err != nil {
			tr.Err = err
		}
		return tr, true
	}
	if err != nil {
		tr.Err = fmt.Errorf("fetch %s/%s: %w", src.Name(), table, err)
		m.logger.Errorw("fetch failed", "source", src.Name(), "table", table, "error", err)
		tr.Err = m.clearRaw(ctx, src.Name(), table, tr.Err)
		return tr, false
	}
	if batch.Source == "" {
		batch.Source = src.Name()
	}
	if batch.Table == "" {
		batch.Table = table
	}

	tr.Rows, tr.Duplicates, err = m.store(ctx, runID, batch, asOf, report)
	switch {
	case errors.Is(err, ErrSchemaDrift), errors.Is(err, ErrInvalidRow):
		tr.Err = err
		observability.RecordSchemaDrift(src.Name(), table)
		m.logger.Errorw("table rejected", "source", src.Name(), "table", table, "error", err)
		if logErr := m.append(ctx, runID, domain.OperationSchemaDrift, table, 0, map[string]any{
			"source": src.Name(),
			"error":  err.Error(),
		}); logErr != nil {
			tr.Err = errors.Join(err, logErr)
		}
		tr.Err = m.clearRaw(ctx, src.Name(), table, tr.Err)
	case err != nil:
		tr.Err = fmt.Errorf("store %s/%s: %w", src.Name(), table, err)
		m.logger.Errorw("store failed", "source", src.Name(), "table", table, "error", err)
		tr.Err = m.clearRaw(ctx, src.Name(), table, tr.Err)
	default:
		observability.RecordIngested(src.Name(), table, tr.Rows)
		m.logger.Infow("ingested", "source", src.Name(), "table", table, "rows", tr.Rows)
	}
	return tr, false
}

// skipSource logs an unavailable source and clears its raw option rows so that
// the merged view reports it as absent.
func (m *Manager) skipSource(ctx context.Context, runID string, src Source, cause error) error {
	observability.RecordSourceSkipped(src.Name())
	m.logger.Warnw("source unavailable, skipping", "source", src.Name(), "error", cause)

	provider := domain.Provider(src.Name())
	if provider.IsValid() && m.stores.RawOptions != nil {
		if err := m.stores.RawOptions.Replace(ctx, provider, nil); err != nil {
			return fmt.Errorf("clear raw %s quotes: %w", provider, err)
		}
	}
	return m.append(ctx, runID, domain.OperationSkip, TableOptions, 0, map[string]any{
		"source": src.Name(),
		"reason": cause.Error(),
	})
}

// clearRaw empties the raw rows a failed table would otherwise leave behind
// from the previous cycle. Returns cause, joined with any clearing error.
func (m *Manager) clearRaw(ctx context.Context, source, table string, cause error) error {
	var err error
	switch table {
	case TableOptions:
		provider := domain.Provider(source)
		if !provider.IsValid() || m.stores.RawOptions == nil {
			return cause
		}
		if err = m.stores.RawOptions.Replace(ctx, provider, nil); err != nil {
			err = fmt.Errorf("clear raw %s quotes: %w", provider, err)
		}
	case TableStocks:
		if m.stores.RawStocks == nil {
			return cause
		}
		if err = m.stores.RawStocks.Replace(ctx, nil); err != nil {
			err = fmt.Errorf("clear raw stock prices: %w", err)
		}
	default:
		return cause
	}
	if err != nil {
		return errors.Join(cause, err)
	}
	m.logger.Warnw("raw rows cleared after failed table", "source", source, "table", table)
	return cause
}

func (m *Manager) store(ctx context.Context, runID string, b *Batch, asOf time.Time, report *Report) (int, int, error) {
	switch b.Table {
	case TableOptions:
		return m.storeOptions(ctx, runID, b, asOf)
	case TableStocks:
		return m.storeStocks(ctx, runID, b, asOf)
	case TableFundamentals:
		records, err := DecodeFundamentals(b, asOf)
		if err != nil {
			return 0, 0, err
		}
		if err := m.stores.Fundamentals.Replace(ctx, records); err != nil {
			return 0, 0, err
		}
		report.Fundamentals = records
		return len(records), 0, m.logReplace(ctx, runID, b, len(records))
	case TableDividends:
		payouts, err := DecodeDividends(b)
		if err != nil {
			return 0, 0, err
		}
		n, err := m.stores.Dividends.InsertIgnore(ctx, payouts)
		if err != nil {
			return 0, 0, err
		}
		return len(payouts), 0, m.append(ctx, runID, domain.OperationInsert, b.Table, n, map[string]any{
			"source":  b.Source,
			"ignored": int64(len(payouts)) - n,
		})
	case TableAnalystTargets:
		targets, err := DecodeAnalystTargets(b, asOf)
		if err != nil {
			return 0, 0, err
		}
		if err := m.stores.Reference.ReplaceAnalystTargets(ctx, targets); err != nil {
			return 0, 0, err
		}
		return len(targets), 0, m.logReplace(ctx, runID, b, len(targets))
	case TableEarnings:
		dates, err := DecodeEarnings(b)
		if err != nil {
			return 0, 0, err
		}
		if err := m.stores.Reference.ReplaceEarningsDates(ctx, dates); err != nil {
			return 0, 0, err
		}
		return len(dates), 0, m.logReplace(ctx, runID, b, len(dates))
	}
	return 0, 0, fmt.Errorf("%w: unknown table %q", ErrSchemaDrift, b.Table)
}

func (m *Manager) storeOptions(ctx context.Context, runID string, b *Batch, asOf time.Time) (int, int, error) {
	provider := domain.Provider(b.Source)
	if !provider.IsValid() {
		return 0, 0, fmt.Errorf("%w: option source %q is not a known provider", storage.ErrInvalidInput, b.Source)
	}
	quotes, err := DecodeOptions(b, provider, asOf)
	if err != nil {
		return 0, 0, err
	}

	kept, dups := DedupeQuotes(quotes)
	if len(dups) > 0 {
		m.logger.Warnw("duplicate contracts in batch", "source", b.Source, "keys", len(dups))
		if err := m.append(ctx, runID, domain.OperationAnomaly, b.Table, int64(len(quotes)-len(kept)), map[string]any{
			"source": b.Source,
			"keys":   truncate(dups),
		}); err != nil {
			return 0, 0, err
		}
	}

	if err := m.stores.RawOptions.Replace(ctx, provider, kept); err != nil {
		return 0, 0, err
	}
	return len(kept), len(quotes) - len(kept), m.logReplace(ctx, runID, b, len(kept))
}

func (m *Manager) storeStocks(ctx context.Context, runID string, b *Batch, asOf time.Time) (int, int, error) {
	snapshots, err := DecodeStocks(b, asOf, m.now())
	if err != nil {
		return 0, 0, err
	}
	kept, dups := DedupeStocks(snapshots)
	if len(dups) > 0 {
		if err := m.append(ctx, runID, domain.OperationAnomaly, b.Table, int64(len(snapshots)-len(kept)), map[string]any{
			"source": b.Source,
			"keys":   truncate(dups),
		}); err != nil {
			return 0, 0, err
		}
	}
	if err := m.stores.RawStocks.Replace(ctx, kept); err != nil {
		return 0, 0, err
	}
	return len(kept), len(snapshots) - len(kept), m.logReplace(ctx, runID, b, len(kept))
}

// DedupeQuotes keeps one quote per contract id, chosen by OptionQuote.Outranks,
// and returns the ids that had duplicates. Output stays in contract order.
func DedupeQuotes(quotes []*domain.OptionQuote) ([]*domain.OptionQuote, []string) {
	dups := DuplicateKeys(quotes)
	if len(dups) == 0 {
		return quotes, nil
	}
	best := make(map[string]*domain.OptionQuote, len(quotes))
	order := make([]string, 0, len(quotes))
	for _, q := range quotes {
		cur, ok := best[q.ContractID]
		if !ok {
			order = append(order, q.ContractID)
			best[q.ContractID] = q
			continue
		}
		if q.Outranks(cur) {
			best[q.ContractID] = q
		}
	}
	out := make([]*domain.OptionQuote, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out, dups
}

// DedupeStocks keeps one snapshot per symbol, preferring a row that carries a price.
func DedupeStocks(snapshots []*domain.StockSnapshot) ([]*domain.StockSnapshot, []string) {
	best := make(map[string]*domain.StockSnapshot, len(snapshots))
	order := make([]string, 0, len(snapshots))
	var dups []string
	for _, s := range snapshots {
		cur, ok := best[s.Symbol]
		if !ok {
			order = append(order, s.Symbol)
			best[s.Symbol] = s
			continue
		}
		if len(dups) == 0 || dups[len(dups)-1] != s.Symbol {
			dups = append(dups, s.Symbol)
		}
		if cur.Price() == nil && s.Price() != nil {
			best[s.Symbol] = s
		}
	}
	out := make([]*domain.StockSnapshot, 0, len(order))
	for _, sym := range order {
		out = append(out, best[sym])
	}
	return out, dups
}

func truncate(keys []string) []string {
	if len(keys) > maxLoggedKeys {
		return keys[:maxLoggedKeys]
	}
	return keys
}

func (m *Manager) logReplace(ctx context.Context, runID string, b *Batch, rows int) error {
	return m.append(ctx, runID, domain.OperationReplace, b.Table, int64(rows), map[string]any{"source": b.Source})
}

func (m *Manager) append(ctx context.Context, runID, op, table string, rows int64, data map[string]any) error {
	if m.stores.ChangeLog == nil {
		return nil
	}
	if err := m.stores.ChangeLog.Append(ctx, &domain.ChangeLogEntry{
		RunID:          runID,
		OperationType:  op,
		TableName:      StoredTable(table),
		AffectedRows:   rows,
		AdditionalData: data,
	}); err != nil {
		return fmt.Errorf("log %s %s: %w", op, table, err)
	}
	return nil
}
