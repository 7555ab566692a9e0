package metrics

import (
	"context"
	"math"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
	"options-data-lab/internal/storage"
)

// DaysToExpiration returns whole days between asOf and expiration.
// Negative for expired contracts.
func DaysToExpiration(asOf, expiration time.Time) int {
	return int(osi.Day(expiration).Sub(osi.Day(asOf)).Hours() / 24)
}

// Premium returns the theoretical price when present, otherwise the bid/ask
// midpoint. Returns nil when neither is available.
func Premium(theoretical, bid, ask *float64) *float64 {
	if theoretical != nil {
		v := *theoretical
		return &v
	}
	if bid == nil || ask == nil {
		return nil
	}
	v := round((*bid+*ask)/2, 4)
	return &v
}

// Intrinsic returns max(0, S-K) for calls and max(0, K-S) for puts.
func Intrinsic(t domain.ContractType, underlying, strike float64) float64 {
	if t == domain.ContractTypePut {
		return math.Max(0, strike-underlying)
	}
	return math.Max(0, underlying-strike)
}

// ExpectedMove returns iv * price * sqrt(dte/365) rounded to cents.
// Any non-positive input yields 0.
func ExpectedMove(iv, price float64, dte int) float64 {
	if iv <= 0 || price <= 0 || dte <= 0 {
		return 0
	}
	return round(iv*price*math.Sqrt(float64(dte)/365), 2)
}

// ExpectedMovePct returns the expected move as a percent of price.
func ExpectedMovePct(move, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return round(move/price*100, 2)
}

// Price derives the pricing columns of one merged row.
// DTE is measured from the row's own snapshot date.
func Price(m *domain.MergedOption) domain.OptionPricing {
	p := domain.OptionPricing{
		DaysToExpiration: DaysToExpiration(m.SnapshotDate, m.Expiration),
	}

	theoretical := m.Theoretical
	if theoretical == nil {
		theoretical = m.BarchartTheoretical
	}
	p.Premium = Premium(theoretical, m.Bid, m.Ask)

	if m.UnderlyingPrice == nil {
		return p
	}
	spot := *m.UnderlyingPrice

	intrinsic := round(Intrinsic(m.Type, spot, m.Strike), 4)
	p.Intrinsic = &intrinsic
	moneyness := round(spot-m.Strike, 4)
	p.Moneyness = &moneyness

	if p.Premium != nil {
		extrinsic := round(*p.Premium-intrinsic, 4)
		p.Extrinsic = &extrinsic
		p.ExtrinsicAnomaly = extrinsic < 0
	}

	iv := m.ImpliedVolatility
	if iv == nil {
		iv = m.YahooIV
	}
	if iv != nil {
		move := ExpectedMove(*iv, spot, p.DaysToExpiration)
		p.ExpectedMove = &move
	}
	return p
}

// PriceAll derives pricing for every merged row, preserving order.
func PriceAll(rows []*domain.MergedOption) []*domain.PricedOption {
	out := make([]*domain.PricedOption, 0, len(rows))
	for _, m := range rows {
		out = append(out, &domain.PricedOption{MergedOption: *m, OptionPricing: Price(m)})
	}
	return out
}

// PricedView prices merged rows in process. Used where the option_pricing
// view is not available.
type PricedView struct {
	Merged storage.MergedOptionReader
}

// GetPriced reads merged rows and prices them.
func (v PricedView) GetPriced(ctx context.Context, symbol string) ([]*domain.PricedOption, error) {
	rows, err := v.Merged.GetMerged(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return PriceAll(rows), nil
}
