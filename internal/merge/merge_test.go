package merge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage/memory"
)

var day = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }

func quote(p domain.Provider, id string, bid float64) *domain.OptionQuote {
	return &domain.OptionQuote{
		Provider:     p,
		SnapshotDate: day,
		ContractID:   id,
		Symbol:       "AAPL",
		Type:         domain.ContractTypeCall,
		Strike:       150,
		Expiration:   time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		Bid:          f(bid),
		Ask:          f(bid + 0.2),
	}
}

func TestMerge_PresenceFlags(t *testing.T) {
	in := Input{
		Primary: []*domain.OptionQuote{
			quote(domain.ProviderMassive, "AAPL260116C00150000", 5.0),
			quote(domain.ProviderMassive, "AAPL260116C00155000", 3.0),
		},
		Secondary: map[domain.Provider][]*domain.OptionQuote{
			domain.ProviderYahoo: {quote(domain.ProviderYahoo, "AAPL260116C00150000", 5.1)},
		},
	}
	nilBid := quote(domain.ProviderBarchart, "AAPL260116C00155000", 0)
	nilBid.Theoretical = nil
	in.Secondary[domain.ProviderBarchart] = []*domain.OptionQuote{nilBid}

	res := Merge(in)
	require.Len(t, res.Rows, 2)
	assert.Empty(t, res.Anomalies)

	first, second := res.Rows[0], res.Rows[1]
	assert.Equal(t, "AAPL260116C00150000", first.ContractID)
	assert.True(t, first.HasYahoo)
	assert.InDelta(t, 5.1, *first.YahooBid, 1e-9)
	assert.False(t, first.HasBarchart)
	assert.Nil(t, first.BarchartTheoretical)

	// Source present, value null.
	assert.True(t, second.HasBarchart)
	assert.Nil(t, second.BarchartTheoretical)
	assert.False(t, second.HasYahoo)
	assert.False(t, second.HasStock)
}

func TestMerge_NoPrimaryRows(t *testing.T) {
	res := Merge(Input{
		Secondary: map[domain.Provider][]*domain.OptionQuote{
			domain.ProviderYahoo: {quote(domain.ProviderYahoo, "AAPL260116C00150000", 5)},
		},
	})
	assert.Empty(t, res.Rows)
}

func TestMerge_DuplicateSecondaryRows(t *testing.T) {
	a := quote(domain.ProviderYahoo, "AAPL260116C00150000", 5.0)
	a.OpenInterest = i(10)
	b := quote(domain.ProviderYahoo, "AAPL260116C00150000", 4.0)
	b.OpenInterest = i(99)

	for _, order := range [][]*domain.OptionQuote{{a, b}, {b, a}} {
		res := Merge(Input{
			Primary:   []*domain.OptionQuote{quote(domain.ProviderMassive, "AAPL260116C00150000", 5)},
			Secondary: map[domain.Provider][]*domain.OptionQuote{domain.ProviderYahoo: order},
		})
		require.Len(t, res.Rows, 1, "one row per contract")
		assert.Equal(t, int64(99), *res.Rows[0].YahooOpenInterest)
		require.Len(t, res.Anomalies, 1)
		assert.Equal(t, Anomaly{Source: "yahoo", Key: "AAPL260116C00150000", Rows: 2}, res.Anomalies[0])
	}
}

func TestMerge_CompoundKeyFallback(t *testing.T) {
	y := quote(domain.ProviderYahoo, "", 5.2)
	res := Merge(Input{
		Primary:   []*domain.OptionQuote{quote(domain.ProviderMassive, "AAPL260116C00150000", 5)},
		Secondary: map[domain.Provider][]*domain.OptionQuote{domain.ProviderYahoo: {y}},
	})
	require.Len(t, res.Rows, 1)
	assert.True(t, res.Rows[0].HasYahoo)
}

func TestMerge_StockAndReference(t *testing.T) {
	earn := time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC)
	res := Merge(Input{
		Primary: []*domain.OptionQuote{quote(domain.ProviderMassive, "AAPL260116C00150000", 5)},
		Stocks: []*domain.StockSnapshot{
			{Symbol: "AAPL", SnapshotDate: day, Close: f(151), LivePrice: f(152.5)},
		},
		Earnings: []*domain.EarningsDate{{Symbol: "AAPL", NextEarnings: earn}},
		Targets:  []*domain.AnalystTarget{{Symbol: "AAPL", Mean: f(180)}},
	})
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.True(t, row.HasStock)
	assert.InDelta(t, 152.5, *row.UnderlyingPrice, 1e-9)
	assert.True(t, row.HasEarnings)
	assert.Equal(t, earn, *row.EarningsDate)
	assert.True(t, row.HasAnalystTarget)
	assert.InDelta(t, 180, *row.AnalystMeanTarget, 1e-9)
}

func TestMerge_PastEarningsIgnored(t *testing.T) {
	past := day.AddDate(0, 0, -10)
	next := day.AddDate(0, 0, 24)
	res := Merge(Input{
		Primary: []*domain.OptionQuote{quote(domain.ProviderMassive, "AAPL260116C00150000", 5)},
		Earnings: []*domain.EarningsDate{
			{Symbol: "AAPL", NextEarnings: past},
			{Symbol: "AAPL", NextEarnings: next},
			{Symbol: "AAPL", NextEarnings: next.AddDate(0, 3, 0)},
		},
	})
	require.Len(t, res.Rows, 1)
	require.True(t, res.Rows[0].HasEarnings)
	assert.Equal(t, next, *res.Rows[0].EarningsDate)

	onlyPast := Merge(Input{
		Primary:  []*domain.OptionQuote{quote(domain.ProviderMassive, "AAPL260116C00150000", 5)},
		Earnings: []*domain.EarningsDate{{Symbol: "AAPL", NextEarnings: past}},
	})
	require.Len(t, onlyPast.Rows, 1)
	assert.False(t, onlyPast.Rows[0].HasEarnings)
	assert.Nil(t, onlyPast.Rows[0].EarningsDate)
}

func TestMerge_EarningsOnMergeDateCounts(t *testing.T) {
	res := Merge(Input{
		Primary:  []*domain.OptionQuote{quote(domain.ProviderMassive, "AAPL260116C00150000", 5)},
		Earnings: []*domain.EarningsDate{{Symbol: "AAPL", NextEarnings: day}},
	})
	require.Len(t, res.Rows, 1)
	assert.True(t, res.Rows[0].HasEarnings)
}

func TestReader_UsesLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	options := memory.NewOptionHistoryStore()
	stocks := memory.NewStockHistoryStore()
	refs := memory.NewReferenceStore()

	old := quote(domain.ProviderMassive, "AAPL260116C00150000", 4)
	old.SnapshotDate = day.AddDate(0, 0, -1)
	_, err := options.InsertIgnore(ctx, []*domain.OptionQuote{
		old,
		quote(domain.ProviderMassive, "AAPL260116C00150000", 5),
		quote(domain.ProviderMassive, "AAPL260116C00155000", 3),
	})
	require.NoError(t, err)

	r := NewReader(options, stocks, refs, nil)
	rows, err := r.GetMerged(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, day, row.SnapshotDate)
	}

	rows, err = r.GetMerged(ctx, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReader_SkippedProviderIsAbsent(t *testing.T) {
	ctx := context.Background()
	options := memory.NewOptionHistoryStore()

	yesterday := quote(domain.ProviderYahoo, "AAPL260116C00150000", 4.9)
	yesterday.SnapshotDate = day.AddDate(0, 0, -1)
	_, err := options.InsertIgnore(ctx, []*domain.OptionQuote{
		yesterday,
		quote(domain.ProviderMassive, "AAPL260116C00150000", 5),
	})
	require.NoError(t, err)

	rows, err := NewReader(options, memory.NewStockHistoryStore(), memory.NewReferenceStore(), nil).GetMerged(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasYahoo)
	assert.Nil(t, rows[0].YahooBid)
}
