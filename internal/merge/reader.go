package merge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

// Reader assembles merged rows from history and reference stores.
// The primary provider's MAX(snapshot_date) is the merge date; secondary
// providers join on their rows of that same date, so a provider skipped for
// the cycle shows as absent. Stock prices use their own MAX(snapshot_date).
type Reader struct {
	options   storage.OptionHistoryStore
	stocks    storage.StockHistoryStore
	reference storage.ReferenceStore
	logger    *zap.SugaredLogger
}

// NewReader creates a merged-view reader over the given stores.
func NewReader(options storage.OptionHistoryStore, stocks storage.StockHistoryStore, reference storage.ReferenceStore, logger *zap.SugaredLogger) *Reader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reader{options: options, stocks: stocks, reference: reference, logger: logger}
}

// Build loads every source's current rows and merges them.
func (r *Reader) Build(ctx context.Context) (Result, error) {
	primary, err := r.options.GetCurrent(ctx, domain.ProviderMassive)
	if err != nil {
		return Result{}, fmt.Errorf("load primary quotes: %w", err)
	}
	in := Input{
		Primary:   primary,
		Secondary: make(map[domain.Provider][]*domain.OptionQuote, len(domain.SecondaryProviders)),
	}
	if len(primary) == 0 {
		return Result{}, nil
	}

	date := CurrentDate(primary)
	for _, p := range domain.SecondaryProviders {
		quotes, err := r.options.GetByDate(ctx, p, date)
		if err != nil {
			return Result{}, fmt.Errorf("load %s quotes: %w", p, err)
		}
		in.Secondary[p] = quotes
	}
	if in.Stocks, err = r.stocks.GetCurrent(ctx); err != nil {
		return Result{}, fmt.Errorf("load stock prices: %w", err)
	}
	if in.Earnings, err = r.reference.GetEarningsDates(ctx); err != nil {
		return Result{}, fmt.Errorf("load earnings dates: %w", err)
	}
	if in.Targets, err = r.reference.GetAnalystTargets(ctx); err != nil {
		return Result{}, fmt.Errorf("load analyst targets: %w", err)
	}

	res := Merge(in)
	for _, a := range res.Anomalies {
		r.logger.Warnw("duplicate rows for join key", "source", a.Source, "key", a.Key, "rows", a.Rows)
	}
	return res, nil
}

// GetMerged implements storage.MergedOptionReader.
func (r *Reader) GetMerged(ctx context.Context, symbol string) ([]*domain.MergedOption, error) {
	res, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		return res.Rows, nil
	}
	var out []*domain.MergedOption
	for _, row := range res.Rows {
		if row.Symbol == symbol {
			out = append(out, row)
		}
	}
	return out, nil
}

var _ storage.MergedOptionReader = (*Reader)(nil)
