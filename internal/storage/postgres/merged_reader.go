package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

const mergedSelect = `snapshot_date, contract_id, symbol, option_type, strike, expiration_date,
	bid, ask, last, theoretical, volume, open_interest,
	delta, gamma, theta, vega, rho, implied_volatility,
	has_yahoo, yahoo_bid, yahoo_ask, yahoo_open_interest, yahoo_iv,
	has_barchart, barchart_theoretical, barchart_delta, barchart_iv, barchart_volume,
	has_stock, underlying_price, has_earnings, earnings_date,
	has_analyst_target, analyst_mean_target`

const pricingSelect = mergedSelect + `,
	days_to_expiration, premium, intrinsic_value, extrinsic_value,
	extrinsic_anomaly, moneyness, expected_move`

// MergedReader reads the option_data_merged and option_pricing views.
type MergedReader struct {
	pool *Pool
}

// NewMergedReader creates a new MergedReader.
func NewMergedReader(pool *Pool) *MergedReader {
	return &MergedReader{pool: pool}
}

// Compile-time interface check.
var _ storage.MergedOptionReader = (*MergedReader)(nil)

// GetMerged retrieves merged rows, optionally filtered by symbol, ordered by contract_id ASC.
func (r *MergedReader) GetMerged(ctx context.Context, symbol string) ([]*domain.MergedOption, error) {
	query := `SELECT ` + mergedSelect + `
		FROM option_data_merged
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY contract_id ASC`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get merged options: %w", err)
	}

	merged, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.MergedOption, error) {
		var m domain.MergedOption
		if err := row.Scan(mergedTargets(&m)...); err != nil {
			return nil, err
		}
		return &m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect merged options: %w", err)
	}
	return merged, nil
}

// GetPriced retrieves rows of the option_pricing view, optionally filtered by symbol.
func (r *MergedReader) GetPriced(ctx context.Context, symbol string) ([]*domain.PricedOption, error) {
	query := `SELECT ` + pricingSelect + `
		FROM option_pricing
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY contract_id ASC`

	rows, err := r.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get priced options: %w", err)
	}

	priced, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PricedOption, error) {
		var p domain.PricedOption
		targets := append(mergedTargets(&p.MergedOption),
			&p.DaysToExpiration, &p.Premium, &p.Intrinsic, &p.Extrinsic,
			&p.ExtrinsicAnomaly, &p.Moneyness, &p.ExpectedMove)
		if err := row.Scan(targets...); err != nil {
			return nil, err
		}
		return &p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect priced options: %w", err)
	}
	return priced, nil
}

// mergedTargets returns scan destinations in mergedSelect order.
func mergedTargets(m *domain.MergedOption) []any {
	return []any{
		&m.SnapshotDate, &m.ContractID, &m.Symbol, &m.Type, &m.Strike, &m.Expiration,
		&m.Bid, &m.Ask, &m.Last, &m.Theoretical, &m.Volume, &m.OpenInterest,
		&m.Delta, &m.Gamma, &m.Theta, &m.Vega, &m.Rho, &m.ImpliedVolatility,
		&m.HasYahoo, &m.YahooBid, &m.YahooAsk, &m.YahooOpenInterest, &m.YahooIV,
		&m.HasBarchart, &m.BarchartTheoretical, &m.BarchartDelta, &m.BarchartIV, &m.BarchartVolume,
		&m.HasStock, &m.UnderlyingPrice, &m.HasEarnings, &m.EarningsDate,
		&m.HasAnalystTarget, &m.AnalystMeanTarget,
	}
}
