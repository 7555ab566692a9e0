package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

func TestStockHistoryStore_InsertIgnoreAndCurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStockHistoryStore(pool)

	n, err := store.InsertIgnore(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 14), Close: ptr(171.0), PriceSource: "close"},
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 15), Close: ptr(172.5), LivePrice: ptr(173.0), PriceSource: "live"},
		{Symbol: "MSFT", SnapshotDate: date(2024, 3, 15), Close: ptr(410.0)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.InsertIgnore(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 15), Close: ptr(999.0)},
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	current, err := store.GetCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "AAPL", current[0].Symbol)
	assert.InDelta(t, 173.0, *current[0].Price(), 0.0001)
	assert.Equal(t, "live", current[0].PriceSource)

	series, err := store.GetBySymbolRange(ctx, "AAPL", date(2024, 3, 1), date(2024, 3, 14))
	require.NoError(t, err)
	assert.Len(t, series, 1)

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestStockHistoryStore_LatestDateEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewStockHistoryStore(pool).LatestDate(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRawStockStore_Replace(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawStockStore(pool)

	require.NoError(t, store.Replace(ctx, []*domain.StockSnapshot{
		{Symbol: "MSFT", SnapshotDate: date(2024, 3, 15), Close: ptr(410.0)},
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 15), Close: ptr(172.5)},
	}))
	require.NoError(t, store.Replace(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 18), Close: ptr(173.0)},
	}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].SnapshotDate.Equal(date(2024, 3, 18)))

	err = store.Replace(ctx, []*domain.StockSnapshot{{Symbol: "AAPL"}, {Symbol: "AAPL"}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestFundamentalStore_HistoryRoundTripsMetrics(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFundamentalStore(pool)

	records := []*domain.FundamentalRecord{
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 15), Metrics: map[string]float64{"pe_ratio": 28.4, "beta": 1.2}},
		{Symbol: "KO", SnapshotDate: date(2024, 3, 15), Metrics: map[string]float64{"dividend_yield": 0.031}},
	}
	require.NoError(t, store.Replace(ctx, records))

	n, err := store.InsertHistoryIgnore(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertHistoryIgnore(ctx, records)
	require.NoError(t, err)
	assert.Zero(t, n)

	current, err := store.GetCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "AAPL", current[0].Symbol)
	assert.InDelta(t, 28.4, current[0].Metrics["pe_ratio"], 0.0001)
}

func TestReferenceStore_ReplaceAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReferenceStore(pool)

	require.NoError(t, store.ReplaceAnalystTargets(ctx, []*domain.AnalystTarget{
		{Symbol: "AAPL", SnapshotDate: date(2024, 3, 15), Mean: ptr(200.0), Analysts: 38},
	}))
	require.NoError(t, store.ReplaceEarningsDates(ctx, []*domain.EarningsDate{
		{Symbol: "AAPL", NextEarnings: date(2024, 5, 2)},
	}))

	targets, err := store.GetAnalystTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, 38, targets[0].Analysts)
	assert.Nil(t, targets[0].Low)

	dates, err := store.GetEarningsDates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.True(t, dates[0].NextEarnings.Equal(date(2024, 5, 2)))
}

func TestDividendStore_InsertIgnore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDividendStore(pool)

	payouts := []*domain.DividendPayout{
		{Symbol: "KO", ExDate: date(2023, 3, 14), Amount: 0.46},
		{Symbol: "KO", ExDate: date(2023, 6, 14), Amount: 0.46},
	}
	n, err := store.InsertIgnore(ctx, payouts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertIgnore(ctx, payouts)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := store.GetBySymbol(ctx, "KO")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ExDate.Before(got[1].ExDate))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"KO"}, symbols)
}
