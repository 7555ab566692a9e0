package screening

import (
	"sort"

	"github.com/shopspring/decimal"

	"options-data-lab/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// MarriedPuts ranks put contracts per symbol by annualized ROI of buying
// 100 shares plus one put, keeping the top N per symbol.
//
// Put price is the ask, falling back to the derived premium. Rows without
// an underlying price, a put price or a positive DTE are not candidates.
func MarriedPuts(rows []*domain.PricedOption, p MarriedPutParams) ([]*domain.MarriedPutCandidate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]*domain.MarriedPutCandidate)
	for _, r := range rows {
		c, ok := marriedPut(r, p)
		if !ok {
			continue
		}
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var out []*domain.MarriedPutCandidate
	for _, s := range symbols {
		cands := bySymbol[s]
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].AnnualizedROI != cands[j].AnnualizedROI {
				return cands[i].AnnualizedROI > cands[j].AnnualizedROI
			}
			return cands[i].ContractID < cands[j].ContractID
		})
		if len(cands) > p.TopN {
			cands = cands[:p.TopN]
		}
		for i, c := range cands {
			c.SymbolOptionRank = i + 1
		}
		out = append(out, cands...)
	}
	return out, nil
}

func marriedPut(r *domain.PricedOption, p MarriedPutParams) (*domain.MarriedPutCandidate, bool) {
	if r.Type != domain.ContractTypePut || r.UnderlyingPrice == nil || *r.UnderlyingPrice <= 0 {
		return nil, false
	}
	if p.Symbol != "" && r.Symbol != p.Symbol {
		return nil, false
	}
	if r.DaysToExpiration <= 0 || r.DaysToExpiration < p.MinDTE {
		return nil, false
	}
	var oi int64
	if r.OpenInterest != nil {
		oi = *r.OpenInterest
	}
	if oi < p.MinOpenInterest {
		return nil, false
	}
	ratio := r.Strike / *r.UnderlyingPrice
	if ratio < p.MinStrikeRatio || ratio > p.MaxStrikeRatio {
		return nil, false
	}

	putPrice := r.Ask
	if putPrice == nil {
		putPrice = r.Premium
	}
	if putPrice == nil || *putPrice <= 0 {
		return nil, false
	}

	spot := decimal.NewFromFloat(*r.UnderlyingPrice)
	put := decimal.NewFromFloat(*putPrice)
	strike := decimal.NewFromFloat(r.Strike)
	dte := decimal.NewFromInt(int64(r.DaysToExpiration))

	total := spot.Add(put).Mul(hundred)
	minProfit := strike.Sub(spot).Sub(put).Mul(hundred)
	maxLoss := total.Sub(strike.Mul(hundred))

	var roi, maxLossPct decimal.Decimal
	if !total.IsZero() {
		roi = minProfit.Div(dte).Mul(decimal.NewFromInt(365)).Div(total).Mul(hundred)
		maxLossPct = maxLoss.Div(total).Mul(hundred)
	}

	return &domain.MarriedPutCandidate{
		Symbol:                 r.Symbol,
		ContractID:             r.ContractID,
		Expiration:             r.Expiration,
		Strike:                 r.Strike,
		UnderlyingPrice:        *r.UnderlyingPrice,
		PutPrice:               *putPrice,
		DaysToExpiration:       r.DaysToExpiration,
		OpenInterest:           oi,
		TotalInvestment:        total.Round(2).InexactFloat64(),
		MinimumPotentialProfit: minProfit.Round(2).InexactFloat64(),
		MaxLossPct:             maxLossPct.Round(2).InexactFloat64(),
		ProtectionFloorPct:     strike.Div(spot).Mul(hundred).Round(2).InexactFloat64(),
		CostOfProtectionPct:    put.Div(spot).Mul(hundred).Round(2).InexactFloat64(),
		AnnualizedROI:          roi.Round(4).InexactFloat64(),
	}, true
}
