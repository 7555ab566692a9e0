package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/aging"
	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage/memory"
)

var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

type fixture struct {
	stores Stores
	h      *Historizer
}

func newFixture() *fixture {
	stores := Stores{
		RawOptions:     memory.NewRawOptionStore(),
		OptionHistory:  memory.NewOptionHistoryStore(),
		RawStocks:      memory.NewRawStockStore(),
		StockHistory:   memory.NewStockHistoryStore(),
		Fundamentals:   memory.NewFundamentalStore(),
		MasterData:     memory.NewMasterDataStore(),
		ChangeLog:      memory.NewChangeLogStore(),
		Classification: memory.NewClassificationStore(),
	}
	return &fixture{stores: stores, h: New(stores, nil)}
}

func rawQuotes(day time.Time, bid float64, ids ...string) []*domain.OptionQuote {
	var out []*domain.OptionQuote
	for _, id := range ids {
		out = append(out, &domain.OptionQuote{
			Provider:     domain.ProviderMassive,
			SnapshotDate: day,
			ContractID:   id,
			Symbol:       "AAPL",
			Type:         domain.ContractTypeCall,
			Strike:       150,
			Expiration:   time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
			Bid:          f(bid),
		})
	}
	return out
}

func TestOptions_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	require.NoError(t, fx.stores.RawOptions.Replace(ctx, domain.ProviderMassive, rawQuotes(monday, 5, "A", "B")))

	first, err := fx.h.Options(ctx, "run-1", domain.ProviderMassive, monday)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Inserted)
	assert.Equal(t, int64(2), first.NewEntities)

	// A retried run later the same day with fresher prices changes nothing.
	require.NoError(t, fx.stores.RawOptions.Replace(ctx, domain.ProviderMassive, rawQuotes(monday, 9, "A", "B")))
	second, err := fx.h.Options(ctx, "run-2", domain.ProviderMassive, monday.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(2), second.Ignored)

	n, err := fx.stores.OptionHistory.CountByDate(ctx, domain.ProviderMassive, monday)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := fx.stores.OptionHistory.GetByDate(ctx, domain.ProviderMassive, monday)
	require.NoError(t, err)
	assert.InDelta(t, 5, *rows[0].Bid, 1e-9, "first write of the day stands")
}

func TestOptions_MasterFirstSeenNeverOverwritten(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	require.NoError(t, fx.stores.RawOptions.Replace(ctx, domain.ProviderMassive, rawQuotes(monday, 5, "A")))
	_, err := fx.h.Options(ctx, "run-1", domain.ProviderMassive, monday)
	require.NoError(t, err)

	tuesday := monday.AddDate(0, 0, 1)
	require.NoError(t, fx.stores.RawOptions.Replace(ctx, domain.ProviderMassive, rawQuotes(tuesday, 5, "A", "B")))
	res, err := fx.h.Options(ctx, "run-2", domain.ProviderMassive, tuesday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.NewEntities)

	a, err := fx.stores.MasterData.Get(ctx, aging.TableOptionQuotes, "A")
	require.NoError(t, err)
	assert.Equal(t, monday, a.FromDate)
	assert.Equal(t, tuesday, a.ToDate)
	assert.Equal(t, 1, a.HistoryDepthDays(tuesday))

	b, err := fx.stores.MasterData.Get(ctx, aging.TableOptionQuotes, "B")
	require.NoError(t, err)
	assert.Equal(t, tuesday, b.FromDate)
}

func TestOptions_WeekendSkipped(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	saturday := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fx.stores.RawOptions.Replace(ctx, domain.ProviderMassive, rawQuotes(saturday, 5, "A")))
	res, err := fx.h.Options(ctx, "run-1", domain.ProviderMassive, saturday)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	_, err = fx.stores.OptionHistory.LatestDate(ctx, domain.ProviderMassive)
	assert.Error(t, err)

	log, err := fx.stores.ChangeLog.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, domain.OperationSkip, log[0].OperationType)
}

func TestOptions_StaleRawRowsNotHistorized(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	require.NoError(t, fx.stores.RawOptions.Replace(ctx, domain.ProviderMassive, rawQuotes(monday, 5, "A", "B")))
	_, err := fx.h.Options(ctx, "run-1", domain.ProviderMassive, monday)
	require.NoError(t, err)

	// No new raw rows arrived for tuesday: yesterday's quotes stay in raw.
	tuesday := monday.AddDate(0, 0, 1)
	res, err := fx.h.Options(ctx, "run-2", domain.ProviderMassive, tuesday)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Equal(t, 2, res.Stale)
	assert.Zero(t, res.Inserted)

	n, err := fx.stores.OptionHistory.CountByDate(ctx, domain.ProviderMassive, tuesday)
	require.NoError(t, err)
	assert.Zero(t, n)

	a, err := fx.stores.MasterData.Get(ctx, aging.TableOptionQuotes, "A")
	require.NoError(t, err)
	assert.Equal(t, monday, a.ToDate, "last seen is not extended by stale rows")
}

func TestStocks_StaleRawRowsNotHistorized(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	require.NoError(t, fx.stores.RawStocks.Replace(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: monday, Close: f(150)},
	}))
	_, err := fx.h.Stocks(ctx, "run-1", monday)
	require.NoError(t, err)

	res, err := fx.h.Stocks(ctx, "run-2", monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stale)
	assert.Zero(t, res.Inserted)

	history, err := fx.stores.StockHistory.GetBySymbolRange(ctx, "AAPL", monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, history, 1, "a repeated close would add a zero return to the volatility window")
}

func TestStocks_ChangeLogAndFieldChanges(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	_, err := aging.NewRegistry(fx.stores.Classification, nil).Seed(ctx, monday)
	require.NoError(t, err)

	require.NoError(t, fx.stores.RawStocks.Replace(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: monday, Close: f(150), Dividends: f(0)},
	}))
	_, err = fx.h.Stocks(ctx, "run-1", monday)
	require.NoError(t, err)

	require.NoError(t, fx.stores.RawStocks.Replace(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: monday.AddDate(0, 0, 1), Close: f(151), Dividends: f(0.26)},
	}))
	res, err := fx.h.Stocks(ctx, "run-2", monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, 1, res.FieldChanges, "close is Daily, dividends is Monthly")

	log, err := fx.stores.ChangeLog.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	ops := make([]string, 0, len(log))
	for _, e := range log {
		ops = append(ops, e.OperationType)
	}
	assert.Equal(t, []string{domain.OperationFieldChange, domain.OperationInsert}, ops)
}

func TestFundamentals_History(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	recs := []*domain.FundamentalRecord{{Symbol: "AAPL", Metrics: map[string]float64{"beta": 1.2}}}

	res, err := fx.h.Fundamentals(ctx, "run-1", recs, monday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)

	res, err = fx.h.Fundamentals(ctx, "run-2", recs, monday)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Inserted)

	cur, err := fx.stores.Fundamentals.GetCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, monday, cur[0].SnapshotDate)
}
