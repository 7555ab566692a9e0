package aging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
	"options-data-lab/internal/storage/memory"
)

func TestRegistry_DefaultsToDaily(t *testing.T) {
	r := NewRegistry(memory.NewClassificationStore(), nil)
	tier, err := r.TierOf(context.Background(), "option_quotes", "bid")
	require.NoError(t, err)
	assert.Equal(t, domain.TierDaily, tier)
}

func TestRegistry_UpsertRefreshesTierAndDate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewClassificationStore()
	r := NewRegistry(store, nil)

	d1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 1, 0)
	require.NoError(t, r.Classify(ctx, TableFundamentals, "beta", domain.TierWeekly, d1))
	require.NoError(t, r.Classify(ctx, TableFundamentals, "beta", domain.TierMonthly, d2))

	c, err := store.Get(ctx, TableFundamentals, "beta")
	require.NoError(t, err)
	assert.Equal(t, domain.TierMonthly, c.Tier)
	assert.Equal(t, d2, c.TierEntryDate)

	all, err := store.GetByTable(ctx, TableFundamentals)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegistry_RejectsUnknownTier(t *testing.T) {
	r := NewRegistry(memory.NewClassificationStore(), nil)
	err := r.Classify(context.Background(), "t", "f", domain.Tier("Hourly"), time.Now())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestRegistry_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewClassificationStore()
	r := NewRegistry(store, nil)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	n1, err := r.Seed(ctx, day)
	require.NoError(t, err)
	assert.Positive(t, n1)
	n2, err := r.Seed(ctx, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Zero(t, n2)

	c, err := store.Get(ctx, TableOptionQuotes, "strike")
	require.NoError(t, err)
	assert.True(t, c.TierEntryDate.Equal(day), "reseeding keeps the entry date")

	tiers, err := r.Tiers(ctx, TableOptionQuotes)
	require.NoError(t, err)
	assert.Equal(t, domain.TierMaster, tiers["strike"])
	assert.Len(t, tiers, len(DefaultClassifications[TableOptionQuotes]))
}

func TestDetectChanges(t *testing.T) {
	tiers := map[string]domain.Tier{
		"beta":         domain.TierWeekly,
		"total_assets": domain.TierMonthly,
		"close":        domain.TierDaily,
	}
	prev := map[string]map[string]float64{
		"AAPL": {"beta": 1.2, "total_assets": 100, "close": 10},
		"MSFT": {"beta": 0.9},
	}
	cur := map[string]map[string]float64{
		"AAPL": {"beta": 1.3, "total_assets": 100, "close": 11, "unclassified": 5},
		"MSFT": {"beta": 0.9},
		"NVDA": {"beta": 2.0},
	}

	changes := DetectChanges(tiers, prev, cur)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldChange{EntityKey: "AAPL", FieldName: "beta", Tier: domain.TierWeekly, Previous: 1.2, Current: 1.3}, changes[0])
	assert.Equal(t, map[string]int{"beta": 1}, CountByField(changes))
}
