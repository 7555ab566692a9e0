// Package aging maintains the data-aging classification of stored fields.
//
// Every (table, field) pair belongs to one tier describing how often the
// value is expected to change. Fields without a classification are Daily.
package aging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// Table names used as classification and master-data keys.
const (
	TableOptionQuotes = "option_quotes"
	TableStockPrices  = "stock_prices"
	TableFundamentals = "fundamentals"
)

// DefaultClassifications is the seed set applied by Seed.
// Fields not listed stay Daily.
var DefaultClassifications = map[string]map[string]domain.Tier{
	TableOptionQuotes: {
		"strike":      domain.TierMaster,
		"expiration":  domain.TierMaster,
		"option_type": domain.TierMaster,
		"symbol":      domain.TierMaster,
	},
	TableStockPrices: {
		"dividends":    domain.TierMonthly,
		"stock_splits": domain.TierMonthly,
	},
	TableFundamentals: {
		"shares_outstanding":    domain.TierMonthly,
		"total_revenue":         domain.TierMonthly,
		"net_income":            domain.TierMonthly,
		"total_assets":          domain.TierMonthly,
		"total_debt":            domain.TierMonthly,
		"book_value":            domain.TierMonthly,
		"dividend_rate":         domain.TierMonthly,
		"payout_ratio":          domain.TierMonthly,
		"employees":             domain.TierMonthly,
		"beta":                  domain.TierWeekly,
		"forward_eps":           domain.TierWeekly,
		"trailing_eps":          domain.TierWeekly,
		"recommendation_mean":   domain.TierWeekly,
		"number_of_analysts":    domain.TierWeekly,
		"short_ratio":           domain.TierWeekly,
		"held_by_institutions":  domain.TierWeekly,
		"held_by_insiders":      domain.TierWeekly,
		"fifty_two_week_high":   domain.TierDaily,
		"fifty_two_week_low":    domain.TierDaily,
		"market_capitalization": domain.TierDaily,
	},
}

// Registry reads and writes field classifications.
type Registry struct {
	store  storage.ClassificationStore
	logger *zap.SugaredLogger
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store storage.ClassificationStore, logger *zap.SugaredLogger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{store: store, logger: logger}
}

// Classify sets the tier of a field, refreshing its tier entry date.
func (r *Registry) Classify(ctx context.Context, table, field string, tier domain.Tier, entryDate time.Time) error {
	if !tier.IsValid() {
		return fmt.Errorf("classify %s.%s: unknown tier %q: %w", table, field, tier, storage.ErrInvalidInput)
	}
	return r.store.Upsert(ctx, &domain.FieldClassification{
		TableName:     table,
		FieldName:     field,
		Tier:          tier,
		TierEntryDate: entryDate,
	})
}

// TierOf returns the tier of a field, DefaultTier when unclassified.
func (r *Registry) TierOf(ctx context.Context, table, field string) (domain.Tier, error) {
	c, err := r.store.Get(ctx, table, field)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.DefaultTier, nil
	}
	if err != nil {
		return "", err
	}
	return c.Tier, nil
}

// Tiers returns the classified tiers of a table keyed by field name.
func (r *Registry) Tiers(ctx context.Context, table string) (map[string]domain.Tier, error) {
	cs, err := r.store.GetByTable(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Tier, len(cs))
	for _, c := range cs {
		out[c.FieldName] = c.Tier
	}
	return out, nil
}

// Seed classifies the DefaultClassifications fields that have no tier yet.
// Existing classifications keep their tier and entry date.
// Returns the number of fields written.
func (r *Registry) Seed(ctx context.Context, entryDate time.Time) (int, error) {
	tables := make([]string, 0, len(DefaultClassifications))
	for t := range DefaultClassifications {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	n := 0
	for _, table := range tables {
		fields := DefaultClassifications[table]
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		for _, field := range names {
			_, err := r.store.Get(ctx, table, field)
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return n, err
			}
			if err := r.Classify(ctx, table, field, fields[field], entryDate); err != nil {
				return n, err
			}
			n++
		}
	}
	r.logger.Debugw("seeded aging classifications", "fields", n)
	return n, nil
}
