package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
	"options-data-lab/internal/storage"
)

// ErrNoSymbols is returned when no tracked symbols are available for derivation.
var ErrNoSymbols = errors.New("no symbols available for derivation")

// Stores groups the stores the deriver reads from and writes to.
// Volatility may be nil when no time-series backend is configured.
type Stores struct {
	Options    storage.OptionHistoryStore
	Stocks     storage.StockHistoryStore
	Dividends  storage.DividendStore
	IVStats    storage.IVStatStore
	Volatility storage.VolatilityStore
	Streaks    storage.DividendStreakStore
}

// Summary reports what one derivation pass produced.
type Summary struct {
	Symbols          int
	IVStats          int
	VolatilityPoints int
	Streaks          int
	SkippedIV        []string // symbols without a qualifying monthly chain
}

// Deriver computes and persists the derived metric tables.
type Deriver struct {
	stores Stores
	logger *zap.SugaredLogger
}

// NewDeriver creates a new metrics deriver.
func NewDeriver(stores Stores, logger *zap.SugaredLogger) *Deriver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Deriver{stores: stores, logger: logger}
}

// Run derives IV stats, historical volatility and dividend streaks as of asOf.
func (d *Deriver) Run(ctx context.Context, asOf time.Time) (*Summary, error) {
	asOf = osi.Day(asOf)
	symbols, err := d.stores.Stocks.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	sum := &Summary{Symbols: len(symbols)}
	var ivStats []*domain.IVStat
	var hvPoints []*domain.VolatilityPoint
	for _, symbol := range symbols {
		stats, err := d.ivStatsFor(ctx, symbol, asOf)
		if err != nil {
			return nil, err
		}
		if len(stats) == 0 {
			sum.SkippedIV = append(sum.SkippedIV, symbol)
		}
		ivStats = append(ivStats, stats...)

		points, err := d.volatilityFor(ctx, symbol, asOf)
		if err != nil {
			return nil, err
		}
		hvPoints = append(hvPoints, points...)
	}

	if len(ivStats) > 0 {
		if err := d.stores.IVStats.Upsert(ctx, ivStats); err != nil {
			return nil, fmt.Errorf("store iv stats: %w", err)
		}
	}
	sum.IVStats = len(ivStats)

	if d.stores.Volatility != nil && len(hvPoints) > 0 {
		if err := d.stores.Volatility.Upsert(ctx, hvPoints); err != nil {
			return nil, fmt.Errorf("store historical volatility: %w", err)
		}
		sum.VolatilityPoints = len(hvPoints)
	}

	streaks, err := d.Streaks(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if err := d.stores.Streaks.ReplaceAll(ctx, streaks); err != nil {
		return nil, fmt.Errorf("store dividend streaks: %w", err)
	}
	sum.Streaks = len(streaks)

	d.logger.Infow("derived metrics",
		"as_of", asOf.Format("2006-01-02"),
		"symbols", sum.Symbols,
		"iv_stats", sum.IVStats,
		"hv_points", sum.VolatilityPoints,
		"streaks", sum.Streaks,
		"skipped_iv", len(sum.SkippedIV))
	return sum, nil
}

// ivStatsFor recomputes the symbol's daily ATM IV over the trailing two years
// so every day in the last year has a full window.
func (d *Deriver) ivStatsFor(ctx context.Context, symbol string, asOf time.Time) ([]*domain.IVStat, error) {
	quotes, err := d.stores.Options.GetBySymbolRange(ctx, domain.ProviderMassive, symbol, asOf.AddDate(-2, 0, 0), asOf)
	if err != nil {
		return nil, fmt.Errorf("load option history for %s: %w", symbol, err)
	}

	byDay := make(map[time.Time][]*domain.OptionQuote)
	for _, q := range quotes {
		day := osi.Day(q.SnapshotDate)
		byDay[day] = append(byDay[day], q)
	}
	series := make([]DailyATMIV, 0, len(byDay))
	for day, chain := range byDay {
		sel, ok := SelectATM(day, chain)
		if !ok {
			continue
		}
		series = append(series, DailyATMIV{Date: day, Selection: sel})
	}
	return IVStats(symbol, series), nil
}

func (d *Deriver) volatilityFor(ctx context.Context, symbol string, asOf time.Time) ([]*domain.VolatilityPoint, error) {
	history, err := d.stores.Stocks.GetBySymbolRange(ctx, symbol, asOf.AddDate(-1, 0, 0), asOf)
	if err != nil {
		return nil, fmt.Errorf("load price history for %s: %w", symbol, err)
	}
	var live *float64
	if n := len(history); n > 0 && osi.Day(history[n-1].SnapshotDate).Equal(asOf) {
		live = history[n-1].LivePrice
	}
	return VolatilitySeries(symbol, PriceSeries(history, live, asOf), HVWindow), nil
}

// Streaks computes the dividend streak of every symbol with payouts, ordered by symbol.
func (d *Deriver) Streaks(ctx context.Context, asOf time.Time) ([]*domain.DividendStreak, error) {
	symbols, err := d.stores.Dividends.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dividend symbols: %w", err)
	}
	sort.Strings(symbols)

	out := make([]*domain.DividendStreak, 0, len(symbols))
	for _, symbol := range symbols {
		payouts, err := d.stores.Dividends.GetBySymbol(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("load payouts for %s: %w", symbol, err)
		}
		out = append(out, Streak(symbol, payouts, asOf))
	}
	return out, nil
}
