package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/metrics"
)

func TestMergedReader_JoinsOnPrimarySnapshot(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	history := NewOptionHistoryStore(pool)
	stocks := NewStockHistoryStore(pool)
	reference := NewReferenceStore(pool)
	reader := NewMergedReader(pool)

	empty, err := reader.GetMerged(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	snap := date(2024, 3, 15)
	_, err = history.InsertIgnore(ctx, []*domain.OptionQuote{
		testQuote(domain.ProviderMassive, "AAPL240419P00150000", snap, 1.0),
		testQuote(domain.ProviderMassive, "AAPL240419P00155000", snap, 2.0),
		testQuote(domain.ProviderYahoo, "AAPL240419P00150000", snap, 1.1),
		// A secondary row from another day must not match.
		testQuote(domain.ProviderBarchart, "AAPL240419P00150000", date(2024, 3, 14), 0.9),
	})
	require.NoError(t, err)

	_, err = stocks.InsertIgnore(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: snap, Close: ptr(152.0)},
	})
	require.NoError(t, err)
	require.NoError(t, reference.ReplaceEarningsDates(ctx, []*domain.EarningsDate{
		{Symbol: "AAPL", NextEarnings: date(2024, 2, 1)},
		{Symbol: "AAPL", NextEarnings: date(2024, 5, 2)},
	}))

	merged, err := reader.GetMerged(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, merged, 2)

	first := merged[0]
	assert.Equal(t, "AAPL240419P00150000", first.ContractID)
	assert.Equal(t, domain.ContractTypePut, first.Type)
	assert.True(t, first.HasYahoo)
	assert.InDelta(t, 1.1, *first.YahooBid, 0.0001)
	assert.False(t, first.HasBarchart)
	assert.Nil(t, first.BarchartIV)
	assert.True(t, first.HasStock)
	assert.InDelta(t, 152.0, *first.UnderlyingPrice, 0.0001)
	assert.True(t, first.HasEarnings)
	assert.Equal(t, date(2024, 5, 2), first.EarningsDate.UTC(), "earnings already reported are skipped")
	assert.False(t, first.HasAnalystTarget)

	assert.False(t, merged[1].HasYahoo)

	other, err := reader.GetMerged(ctx, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMergedReader_Pricing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	snap := date(2024, 3, 15)

	q := testQuote(domain.ProviderMassive, "AAPL240419P00150000", snap, 1.0)
	q.Ask = ptr(1.2)
	_, err := NewOptionHistoryStore(pool).InsertIgnore(ctx, []*domain.OptionQuote{q})
	require.NoError(t, err)
	_, err = NewStockHistoryStore(pool).InsertIgnore(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: snap, Close: ptr(148.0)},
	})
	require.NoError(t, err)

	priced, err := NewMergedReader(pool).GetPriced(ctx, "")
	require.NoError(t, err)
	require.Len(t, priced, 1)

	p := priced[0]
	assert.Equal(t, 35, p.DaysToExpiration)
	assert.InDelta(t, 1.1, *p.Premium, 0.0001)
	assert.InDelta(t, 2.0, *p.Intrinsic, 0.0001)
	assert.InDelta(t, -0.9, *p.Extrinsic, 0.0001)
	assert.True(t, p.ExtrinsicAnomaly)
	assert.InDelta(t, -2.0, *p.Moneyness, 0.0001)
	require.NotNil(t, p.ExpectedMove)
}

func TestMergedReader_PricingRoundsLikeInProcess(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	snap := date(2024, 3, 15)

	q := testQuote(domain.ProviderMassive, "AAPL240419P00150000", snap, 1.0)
	q.Ask = ptr(1.2)
	_, err := NewOptionHistoryStore(pool).InsertIgnore(ctx, []*domain.OptionQuote{q})
	require.NoError(t, err)
	_, err = NewStockHistoryStore(pool).InsertIgnore(ctx, []*domain.StockSnapshot{
		{Symbol: "AAPL", SnapshotDate: snap, Close: ptr(148.123456)},
	})
	require.NoError(t, err)

	priced, err := NewMergedReader(pool).GetPriced(ctx, "")
	require.NoError(t, err)
	require.Len(t, priced, 1)

	got := priced[0]
	assert.InDelta(t, 1.8765, *got.Intrinsic, 1e-9)
	assert.InDelta(t, -0.7765, *got.Extrinsic, 1e-9)
	assert.InDelta(t, -1.8765, *got.Moneyness, 1e-9)

	want := metrics.Price(&got.MergedOption)
	assert.Equal(t, *want.Intrinsic, *got.Intrinsic)
	assert.Equal(t, *want.Extrinsic, *got.Extrinsic)
	assert.Equal(t, *want.Moneyness, *got.Moneyness)
	assert.Equal(t, want.ExtrinsicAnomaly, got.ExtrinsicAnomaly)
}
