package ingestion_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/ingestion"
	"options-data-lab/internal/ingestion/stub"
	"options-data-lab/internal/storage/memory"
)

var (
	optionHeader = []string{"symbol", "option_type", "strike", "expiration_date", "bid", "ask", "open_interest"}
	stockHeader  = []string{"symbol", "close", "live_price"}
	asOf         = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
)

type fixture struct {
	stores    ingestion.Stores
	rawOpts   *memory.RawOptionStore
	rawStocks *memory.RawStockStore
	changeLog *memory.ChangeLogStore
}

func newFixture() *fixture {
	f := &fixture{
		rawOpts:   memory.NewRawOptionStore(),
		rawStocks: memory.NewRawStockStore(),
		changeLog: memory.NewChangeLogStore(),
	}
	f.stores = ingestion.Stores{
		RawOptions:   f.rawOpts,
		RawStocks:    f.rawStocks,
		Fundamentals: memory.NewFundamentalStore(),
		Reference:    memory.NewReferenceStore(),
		Dividends:    memory.NewDividendStore(),
		ChangeLog:    f.changeLog,
	}
	return f
}

func operations(t *testing.T, f *fixture, runID string) map[string]int {
	t.Helper()
	entries, err := f.changeLog.GetByRunID(context.Background(), runID)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, e := range entries {
		out[e.OperationType]++
	}
	return out
}

func TestManager_DuplicateContractsKeepBestRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader,
		[]string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10"},
		[]string{"AAPL", "C", "150", "2026-04-17", "1.05", "1.25", "500"},
		[]string{"AAPL", "put", "140", "2026-04-17", "0.80", "0.90", "20"},
	)

	m := ingestion.NewManager([]ingestion.Source{src}, f.stores, nil)
	report, err := m.Collect(ctx, "run-1", asOf)
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	assert.NoError(t, report.Tables[0].Err)
	assert.Equal(t, 2, report.Tables[0].Rows)
	assert.Equal(t, 1, report.Tables[0].Duplicates)

	raw, err := f.rawOpts.GetByProvider(ctx, domain.ProviderMassive)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	for _, q := range raw {
		if q.Type == domain.ContractTypeCall {
			require.NotNil(t, q.OpenInterest)
			assert.Equal(t, int64(500), *q.OpenInterest)
		}
		assert.True(t, q.SnapshotDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	}

	ops := operations(t, f, "run-1")
	assert.Equal(t, 1, ops[domain.OperationAnomaly])
	assert.Equal(t, 1, ops[domain.OperationReplace])
}

func TestManager_UnavailableSourceIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.rawOpts.Replace(ctx, domain.ProviderYahoo, []*domain.OptionQuote{{
		Provider: domain.ProviderYahoo, ContractID: "AAPL260417C00150000", Symbol: "AAPL",
		Type: domain.ContractTypeCall, Strike: 150, Expiration: time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC),
	}}))

	yahoo := stub.NewSource("yahoo").
		With(ingestion.TableOptions, optionHeader).
		With(ingestion.TableStocks, stockHeader)
	yahoo.Unavailable = true
	massive := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader,
		[]string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10"})

	m := ingestion.NewManager([]ingestion.Source{yahoo, massive}, f.stores, nil)
	report, err := m.Collect(ctx, "run-2", asOf)
	require.NoError(t, err)

	assert.Empty(t, report.Failed())
	assert.Equal(t, []string{"yahoo"}, report.SkippedSources())
	assert.Equal(t, 1, yahoo.Calls[ingestion.TableOptions]+yahoo.Calls[ingestion.TableStocks],
		"a skipped source is not asked for its remaining tables")

	stale, err := f.rawOpts.GetByProvider(ctx, domain.ProviderYahoo)
	require.NoError(t, err)
	assert.Empty(t, stale, "skipped provider's previous raw rows are cleared")

	fresh, err := f.rawOpts.GetByProvider(ctx, domain.ProviderMassive)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
	assert.Equal(t, 1, operations(t, f, "run-2")[domain.OperationSkip])
}

func TestManager_SchemaDriftRejectsOnlyThatTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := stub.NewSource("yahoo").
		With(ingestion.TableOptions, append(optionHeader, "surprise"),
			[]string{"AAPL", "call", "150", "2026-04-17", "1.00", "1.20", "10", "x"}).
		With(ingestion.TableStocks, stockHeader,
			[]string{"AAPL", "180.5", "181.0"},
			[]string{"MSFT", "410", ""})

	m := ingestion.NewManager([]ingestion.Source{src}, f.stores, nil)
	report, err := m.Collect(ctx, "run-3", asOf)
	require.NoError(t, err)

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, ingestion.TableOptions, failed[0].Table)
	assert.ErrorIs(t, failed[0].Err, ingestion.ErrSchemaDrift)

	stocks, err := f.rawStocks.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stocks, 2)
	assert.Equal(t, 1, operations(t, f, "run-3")[domain.OperationSchemaDrift])
}

func TestManager_RejectedTableClearsRawRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	yesterday := asOf.AddDate(0, 0, -1)
	require.NoError(t, f.rawOpts.Replace(ctx, domain.ProviderYahoo, []*domain.OptionQuote{
		{Provider: domain.ProviderYahoo, SnapshotDate: yesterday, ContractID: "AAPL260417C00150000", Symbol: "AAPL"},
	}))
	require.NoError(t, f.rawStocks.Replace(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: yesterday},
	}))

	src := stub.NewSource("yahoo").
		With(ingestion.TableOptions, append(append([]string{}, optionHeader...), "surprise"),
			[]string{"AAPL", "call", "150", "2026-04-17", "9.10", "9.30", "10", "x"}).
		With(ingestion.TableStocks, append(append([]string{}, stockHeader...), "surprise"),
			[]string{"AAPL", "180.5", "181.0", "x"})

	m := ingestion.NewManager([]ingestion.Source{src}, f.stores, nil)
	report, err := m.Collect(ctx, "run-5", asOf)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 2)

	quotes, err := f.rawOpts.GetByProvider(ctx, domain.ProviderYahoo)
	require.NoError(t, err)
	assert.Empty(t, quotes, "yesterday's quotes must not stay in raw")
	stocks, err := f.rawStocks.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stocks)
}

func TestManager_InvalidRowRejectsTable(t *testing.T) {
	f := newFixture()
	src := stub.NewSource("massive").With(ingestion.TableOptions, optionHeader,
		[]string{"AAPL", "call", "abc", "2026-04-17", "1.00", "1.20", "10"})

	m := ingestion.NewManager([]ingestion.Source{src}, f.stores, nil)
	report, err := m.Collect(context.Background(), "run-4", asOf)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, ingestion.ErrInvalidRow)
}

func TestManager_TableFilter(t *testing.T) {
	f := newFixture()
	src := stub.NewSource("yahoo").
		With(ingestion.TableOptions, optionHeader).
		With(ingestion.TableStocks, stockHeader, []string{"AAPL", "180.5", ""})

	m := ingestion.NewManager([]ingestion.Source{src}, f.stores, nil)
	report, err := m.Collect(context.Background(), "run-5", asOf, ingestion.TableStocks)
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	assert.Equal(t, ingestion.TableStocks, report.Tables[0].Table)
	assert.Zero(t, src.Calls[ingestion.TableOptions])
}

func TestManager_ReferenceAndFundamentals(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := stub.NewSource("yahoo").
		With(ingestion.TableFundamentals, []string{"symbol", "trailing_pe", "sector"},
			[]string{"AAPL", "31.2", "Technology"}).
		With(ingestion.TableEarnings, []string{"symbol", "earnings_date"},
			[]string{"AAPL", "2026-04-30"}).
		With(ingestion.TableDividends, []string{"symbol", "ex_date", "amount"},
			[]string{"AAPL", "2026-02-09", "0.26"})

	m := ingestion.NewManager([]ingestion.Source{src}, f.stores, nil)
	report, err := m.Collect(ctx, "run-6", asOf)
	require.NoError(t, err)
	assert.Empty(t, report.Failed())

	require.Len(t, report.Fundamentals, 1)
	assert.Equal(t, 31.2, report.Fundamentals[0].Metrics["trailing_pe"])
	_, hasSector := report.Fundamentals[0].Metrics["sector"]
	assert.False(t, hasSector)

	earnings, err := f.stores.Reference.GetEarningsDates(ctx)
	require.NoError(t, err)
	require.Len(t, earnings, 1)

	payouts, err := f.stores.Dividends.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, 0.26, payouts[0].Amount)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	content := "Symbol,Option Type,Strike,Expiration Date,Bid,Ask\n" +
		"AAPL,call,150,2026-04-17,1.00,1.20\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "options.csv"), []byte(content), 0o644))

	src := ingestion.NewCSVSource("barchart", dir)
	assert.Equal(t, []string{ingestion.TableOptions}, src.Tables())

	b, err := src.Fetch(context.Background(), ingestion.TableOptions)
	require.NoError(t, err)
	assert.Len(t, b.Rows, 1)

	quotes, err := ingestion.DecodeOptions(b, domain.ProviderBarchart, asOf)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 150.0, quotes[0].Strike)
}

func TestCSVSource_MissingDirectoryIsUnavailable(t *testing.T) {
	src := ingestion.NewCSVSource("yahoo", filepath.Join(t.TempDir(), "missing"))
	_, err := src.Fetch(context.Background(), ingestion.TableOptions)
	assert.ErrorIs(t, err, ingestion.ErrSourceUnavailable)
}
