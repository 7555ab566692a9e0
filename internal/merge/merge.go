// Package merge builds the as-of-latest cross-provider option view.
//
// The primary provider defines which contracts exist. Secondary providers,
// stock prices, earnings dates and analyst targets are joined with
// left-outer semantics; Has* flags on the result tell a missing source
// apart from a source that reported a null value.
package merge

import (
	"sort"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
)

// Input holds the current rows of every source taking part in the merge.
type Input struct {
	Primary   []*domain.OptionQuote
	Secondary map[domain.Provider][]*domain.OptionQuote
	Stocks    []*domain.StockSnapshot
	Earnings  []*domain.EarningsDate
	Targets   []*domain.AnalystTarget
}

// Anomaly reports more than one row of a source matching one join key.
// The merge keeps one row by a deterministic tie-break.
type Anomaly struct {
	Source string
	Key    string
	Rows   int
}

// Result is the merged view plus the data-quality anomalies found while building it.
type Result struct {
	Rows      []*domain.MergedOption
	Anomalies []Anomaly
}

// Merge joins secondary sources onto the primary chain.
// Output has exactly one row per primary contract, ordered by contract id.
func Merge(in Input) Result {
	var res Result
	if len(in.Primary) == 0 {
		return res
	}

	primary, anomalies := indexQuotes(string(domain.ProviderMassive), in.Primary)
	res.Anomalies = append(res.Anomalies, anomalies...)

	secondary := make(map[domain.Provider]map[string]*domain.OptionQuote, len(in.Secondary))
	for _, p := range domain.SecondaryProviders {
		idx, anomalies := indexQuotes(string(p), in.Secondary[p])
		secondary[p] = idx
		res.Anomalies = append(res.Anomalies, anomalies...)
	}

	stocks, anomalies := indexStocks(in.Stocks)
	res.Anomalies = append(res.Anomalies, anomalies...)

	// Earnings already reported before the merge date are not "next".
	asOf := osi.Day(CurrentDate(in.Primary))
	earnings := make(map[string]*domain.EarningsDate, len(in.Earnings))
	for _, e := range in.Earnings {
		if osi.Day(e.NextEarnings).Before(asOf) {
			continue
		}
		if cur, ok := earnings[e.Symbol]; !ok || e.NextEarnings.Before(cur.NextEarnings) {
			earnings[e.Symbol] = e
		}
	}
	targets := make(map[string]*domain.AnalystTarget, len(in.Targets))
	for _, t := range in.Targets {
		if cur, ok := targets[t.Symbol]; !ok || t.SnapshotDate.After(cur.SnapshotDate) {
			targets[t.Symbol] = t
		}
	}

	ids := make([]string, 0, len(primary))
	for id := range primary {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res.Rows = make([]*domain.MergedOption, 0, len(ids))
	for _, id := range ids {
		q := primary[id]
		row := fromPrimary(id, q)

		if y, ok := secondary[domain.ProviderYahoo][id]; ok {
			row.HasYahoo = true
			row.YahooBid = y.Bid
			row.YahooAsk = y.Ask
			row.YahooOpenInterest = y.OpenInterest
			row.YahooIV = y.ImpliedVolatility
		}
		if b, ok := secondary[domain.ProviderBarchart][id]; ok {
			row.HasBarchart = true
			row.BarchartTheoretical = b.Theoretical
			row.BarchartDelta = b.Delta
			row.BarchartIV = b.ImpliedVolatility
			row.BarchartVolume = b.Volume
		}
		if s, ok := stocks[q.Symbol]; ok {
			row.HasStock = true
			row.UnderlyingPrice = s.Price()
		}
		if e, ok := earnings[q.Symbol]; ok {
			d := e.NextEarnings
			row.HasEarnings = true
			row.EarningsDate = &d
		}
		if t, ok := targets[q.Symbol]; ok {
			row.HasAnalystTarget = true
			row.AnalystMeanTarget = t.Mean
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func fromPrimary(id string, q *domain.OptionQuote) *domain.MergedOption {
	return &domain.MergedOption{
		SnapshotDate:      q.SnapshotDate,
		ContractID:        id,
		Symbol:            q.Symbol,
		Type:              q.Type,
		Strike:            q.Strike,
		Expiration:        q.Expiration,
		Bid:               q.Bid,
		Ask:               q.Ask,
		Last:              q.Last,
		Theoretical:       q.Theoretical,
		Volume:            q.Volume,
		OpenInterest:      q.OpenInterest,
		Delta:             q.Delta,
		Gamma:             q.Gamma,
		Theta:             q.Theta,
		Vega:              q.Vega,
		Rho:               q.Rho,
		ImpliedVolatility: q.ImpliedVolatility,
	}
}

// JoinKey returns the contract id of a quote, falling back to an id built
// from (symbol, expiration, type, strike) when the provider sent none.
// Returns "" when neither is usable.
func JoinKey(q *domain.OptionQuote) string {
	if q.ContractID != "" {
		return q.ContractID
	}
	id, err := osi.Build(q.Symbol, q.Expiration, q.Type, q.Strike)
	if err != nil {
		return ""
	}
	return id
}

func indexQuotes(source string, quotes []*domain.OptionQuote) (map[string]*domain.OptionQuote, []Anomaly) {
	idx := make(map[string]*domain.OptionQuote, len(quotes))
	counts := make(map[string]int)
	for _, q := range quotes {
		key := JoinKey(q)
		if key == "" {
			continue
		}
		counts[key]++
		if cur, ok := idx[key]; !ok || q.Outranks(cur) {
			idx[key] = q
		}
	}
	return idx, anomaliesFrom(source, counts)
}

func indexStocks(stocks []*domain.StockSnapshot) (map[string]*domain.StockSnapshot, []Anomaly) {
	idx := make(map[string]*domain.StockSnapshot, len(stocks))
	counts := make(map[string]int)
	for _, s := range stocks {
		counts[s.Symbol]++
		if cur, ok := idx[s.Symbol]; !ok || preferStock(s, cur) {
			idx[s.Symbol] = s
		}
	}
	return idx, anomaliesFrom("stock", counts)
}

func anomaliesFrom(source string, counts map[string]int) []Anomaly {
	var out []Anomaly
	for key, n := range counts {
		if n > 1 {
			out = append(out, Anomaly{Source: source, Key: key, Rows: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// preferStock keeps the latest capture, then the row carrying a live price.
func preferStock(a, b *domain.StockSnapshot) bool {
	if !a.CapturedAt.Equal(b.CapturedAt) {
		return a.CapturedAt.After(b.CapturedAt)
	}
	if c := cmpFloat(a.LivePrice, b.LivePrice); c != 0 {
		return c > 0
	}
	return cmpFloat(a.Close, b.Close) > 0
}

// nil sorts lowest.
func cmpFloat(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// CurrentDate returns MAX(snapshot_date) of quotes, zero if empty.
func CurrentDate(quotes []*domain.OptionQuote) time.Time {
	var latest time.Time
	for _, q := range quotes {
		if q.SnapshotDate.After(latest) {
			latest = q.SnapshotDate
		}
	}
	return latest
}
