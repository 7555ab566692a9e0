package screening

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
)

// strikeTolerance absorbs float noise when matching the buy-leg strike.
const strikeTolerance = 1e-6

// CreditSpreads builds one vertical credit spread per symbol.
//
// The sell leg is the contract nearest the delta target (negated for puts)
// at the requested expiration. The buy leg is the contract at
// sell strike - width for puts, + width for calls. Symbols without an
// exact buy-leg strike produce no spread.
func CreditSpreads(rows []*domain.PricedOption, ivStats map[string]*domain.IVStat, p SpreadParams) ([]*domain.CreditSpread, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	exp := osi.Day(p.ExpirationDate)
	target := p.DeltaTarget
	if p.OptionType == domain.ContractTypePut {
		target = -target
	}

	bySymbol := make(map[string][]*domain.PricedOption)
	for _, r := range rows {
		if r.Type != p.OptionType || !osi.Day(r.Expiration).Equal(exp) {
			continue
		}
		if p.Symbol != "" && r.Symbol != p.Symbol {
			continue
		}
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var out []*domain.CreditSpread
	for _, symbol := range symbols {
		stat := ivStats[symbol]
		if !passesIV(stat, p.MinIVRank, p.MinIVPercentile) {
			continue
		}
		chain := bySymbol[symbol]
		sell := sellLeg(chain, target, p)
		if sell == nil {
			continue
		}
		buyStrike := sell.Strike - p.SpreadWidth
		if p.OptionType == domain.ContractTypeCall {
			buyStrike = sell.Strike + p.SpreadWidth
		}
		buy := buyLeg(chain, buyStrike)
		if buy == nil {
			continue
		}
		out = append(out, buildSpread(sell, buy, stat))
	}
	return out, nil
}

func passesIV(stat *domain.IVStat, minRank, minPercentile float64) bool {
	if minRank <= 0 && minPercentile <= 0 {
		return true
	}
	if stat == nil {
		return false
	}
	return stat.Rank >= minRank && stat.Percentile >= minPercentile
}

func sellLeg(chain []*domain.PricedOption, target float64, p SpreadParams) *domain.PricedOption {
	var best *domain.PricedOption
	bestDist := math.Inf(1)
	for _, r := range chain {
		if r.Delta == nil || r.Bid == nil {
			continue
		}
		if value(r.OpenInterest) < p.MinOpenInterest || value(r.Volume) < p.MinDayVolume {
			continue
		}
		dist := math.Abs(*r.Delta - target)
		if dist < bestDist || (dist == bestDist && r.ContractID < best.ContractID) {
			best, bestDist = r, dist
		}
	}
	return best
}

func buyLeg(chain []*domain.PricedOption, strike float64) *domain.PricedOption {
	var best *domain.PricedOption
	for _, r := range chain {
		if r.Ask == nil || math.Abs(r.Strike-strike) > strikeTolerance {
			continue
		}
		if best == nil || r.ContractID < best.ContractID {
			best = r
		}
	}
	return best
}

func buildSpread(sell, buy *domain.PricedOption, stat *domain.IVStat) *domain.CreditSpread {
	width := decimal.NewFromFloat(sell.Strike).Sub(decimal.NewFromFloat(buy.Strike)).Abs()
	maxProfit := decimal.NewFromFloat(*sell.Bid).Sub(decimal.NewFromFloat(*buy.Ask)).Mul(hundred)
	bpr := width.Mul(hundred).Sub(maxProfit)

	s := &domain.CreditSpread{
		Symbol:          sell.Symbol,
		Type:            sell.Type,
		Expiration:      sell.Expiration,
		UnderlyingPrice: sell.UnderlyingPrice,
		SellContractID:  sell.ContractID,
		SellStrike:      sell.Strike,
		SellBid:         *sell.Bid,
		SellDelta:       *sell.Delta,
		SellIV:          sell.ImpliedVolatility,
		BuyContractID:   buy.ContractID,
		BuyStrike:       buy.Strike,
		BuyAsk:          *buy.Ask,
		BuyDelta:        buy.Delta,
		SpreadWidth:     width.InexactFloat64(),
		MaxProfit:       maxProfit.Round(2).InexactFloat64(),
		BPR:             bpr.Round(2).InexactFloat64(),
	}
	if !bpr.IsZero() {
		v := maxProfit.Div(bpr).Round(4).InexactFloat64()
		s.ProfitToBPR = &v
	}
	if sell.Theta != nil && buy.Theta != nil {
		v := decimal.NewFromFloat(*sell.Theta).Sub(decimal.NewFromFloat(*buy.Theta)).Round(4).InexactFloat64()
		s.SpreadTheta = &v
	}
	if stat != nil {
		rank, pct := stat.Rank, stat.Percentile
		s.IVRank = &rank
		s.IVPercentile = &pct
	}
	return s
}

// IVFilter returns the latest stats meeting both thresholds, ordered by symbol.
func IVFilter(latest []*domain.IVStat, p IVFilterParams) ([]*domain.IVStat, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	out := make([]*domain.IVStat, 0, len(latest))
	for _, s := range latest {
		if s.Rank >= p.MinIVRank && s.Percentile >= p.MinIVPercentile {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func value(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
