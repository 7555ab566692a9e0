package metrics

import (
	"math"
	"sort"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
)

const (
	// TargetDTE is the days-to-expiration the monthly expiration is chosen around.
	TargetDTE = 45
	// TargetDelta is the absolute delta of the at-the-money legs.
	TargetDelta = 0.5
)

// IsThirdFriday reports whether t is the third Friday of its month.
func IsThirdFriday(t time.Time) bool {
	return t.Weekday() == time.Friday && t.Day() >= 15 && t.Day() <= 21
}

// SelectMonthlyExpiration picks the third-Friday expiration whose DTE is
// nearest TargetDTE. Ties go to the earlier expiration. ok is false when the
// chain has no future monthly expiration.
func SelectMonthlyExpiration(asOf time.Time, expirations []time.Time) (time.Time, bool) {
	var best time.Time
	bestDist := math.MaxInt
	for _, e := range expirations {
		if !IsThirdFriday(e) {
			continue
		}
		dte := DaysToExpiration(asOf, e)
		if dte <= 0 {
			continue
		}
		dist := dte - TargetDTE
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist || (dist == bestDist && e.Before(best)) {
			best, bestDist = e, dist
		}
	}
	return best, bestDist != math.MaxInt
}

// ATMSelection is the put and call chosen for one symbol on one day.
type ATMSelection struct {
	Expiration time.Time
	Put        *domain.OptionQuote
	Call       *domain.OptionQuote
	IV         float64
}

// SelectATM picks, for one symbol's chain on one day, the put and call nearest
// TargetDelta absolute delta at the selected monthly expiration and averages
// their implied volatilities. Contracts without delta or IV are not candidates.
// ok is false when no leg qualifies.
func SelectATM(asOf time.Time, chain []*domain.OptionQuote) (ATMSelection, bool) {
	seen := make(map[time.Time]struct{})
	var expirations []time.Time
	for _, q := range chain {
		e := osi.Day(q.Expiration)
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			expirations = append(expirations, e)
		}
	}
	exp, ok := SelectMonthlyExpiration(asOf, expirations)
	if !ok {
		return ATMSelection{}, false
	}

	sel := ATMSelection{Expiration: exp}
	putDist, callDist := math.Inf(1), math.Inf(1)
	for _, q := range chain {
		if !osi.Day(q.Expiration).Equal(exp) || q.Delta == nil || q.ImpliedVolatility == nil {
			continue
		}
		dist := math.Abs(math.Abs(*q.Delta) - TargetDelta)
		switch q.Type {
		case domain.ContractTypePut:
			if dist < putDist || (dist == putDist && q.ContractID < sel.Put.ContractID) {
				sel.Put, putDist = q, dist
			}
		case domain.ContractTypeCall:
			if dist < callDist || (dist == callDist && q.ContractID < sel.Call.ContractID) {
				sel.Call, callDist = q, dist
			}
		}
	}

	var ivs []float64
	if sel.Put != nil {
		ivs = append(ivs, *sel.Put.ImpliedVolatility)
	}
	if sel.Call != nil {
		ivs = append(ivs, *sel.Call.ImpliedVolatility)
	}
	if len(ivs) == 0 {
		return ATMSelection{}, false
	}
	sel.IV = round(computeMean(ivs), 6)
	return sel, true
}

// DailyATMIV is one symbol's at-the-money IV on one day.
type DailyATMIV struct {
	Date      time.Time
	Selection ATMSelection
}

// IVRank returns (cur-low)/(high-low)*100, or 0 when high == low.
func IVRank(cur, low, high float64) float64 {
	if high == low {
		return 0
	}
	r := (cur - low) / (high - low) * 100
	return math.Max(0, math.Min(100, r))
}

// IVPercentile returns the share of window values strictly below cur, times 100.
func IVPercentile(cur float64, window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	below := 0
	for _, v := range window {
		if v < cur {
			below++
		}
	}
	return float64(below) / float64(len(window)) * 100
}

// IVStats computes rank and percentile for every day of a symbol's series
// over a trailing one-calendar-year window that includes the day itself.
func IVStats(symbol string, series []DailyATMIV) []*domain.IVStat {
	sorted := make([]DailyATMIV, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make([]*domain.IVStat, 0, len(sorted))
	start := 0
	for i, d := range sorted {
		cutoff := d.Date.AddDate(-1, 0, 0)
		for !sorted[start].Date.After(cutoff) {
			start++
		}
		window := make([]float64, 0, i-start+1)
		high, low := math.Inf(-1), math.Inf(1)
		for _, w := range sorted[start : i+1] {
			v := w.Selection.IV
			window = append(window, v)
			high = math.Max(high, v)
			low = math.Min(low, v)
		}

		cur := d.Selection.IV
		stat := &domain.IVStat{
			Symbol:     symbol,
			Date:       d.Date,
			Expiration: d.Selection.Expiration,
			ATMIV:      cur,
			High:       high,
			Low:        low,
			Rank:       round(IVRank(cur, low, high), 4),
			Percentile: round(IVPercentile(cur, window), 4),
			WindowDays: len(window),
		}
		if d.Selection.Put != nil {
			stat.PutContractID = d.Selection.Put.ContractID
		}
		if d.Selection.Call != nil {
			stat.CallContractID = d.Selection.Call.ContractID
		}
		out = append(out, stat)
	}
	return out
}
