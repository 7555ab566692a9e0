package metrics

import (
	"math"
	"sort"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/osi"
)

const (
	// HVWindow is the number of log returns in the historical volatility window.
	HVWindow = 30
	// TradingDays annualizes daily volatility.
	TradingDays = 252
)

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// PriceSeries builds the close series used for historical volatility:
// weekdays only, ordered by date, with the live price as a virtual row on
// asOf. A live price replaces a history close on the same day.
func PriceSeries(history []*domain.StockSnapshot, live *float64, asOf time.Time) []domain.PricePoint {
	byDay := make(map[time.Time]float64, len(history)+1)
	for _, s := range history {
		day := osi.Day(s.SnapshotDate)
		if s.Close == nil || *s.Close <= 0 || IsWeekend(day) || day.After(osi.Day(asOf)) {
			continue
		}
		byDay[day] = *s.Close
	}
	if live != nil && *live > 0 && !IsWeekend(asOf) {
		byDay[osi.Day(asOf)] = *live
	}

	out := make([]domain.PricePoint, 0, len(byDay))
	for d, c := range byDay {
		out = append(out, domain.PricePoint{Date: d, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// LogReturns returns ln(close/prev_close) for consecutive points.
func LogReturns(points []domain.PricePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		out = append(out, math.Log(points[i].Close/points[i-1].Close))
	}
	return out
}

// HistoricalVolatility returns the annualized sample stdev of the last
// window log returns. ok is false when fewer than window returns exist.
func HistoricalVolatility(points []domain.PricePoint, window int) (float64, bool) {
	returns := LogReturns(points)
	if window < 2 || len(returns) < window {
		return 0, false
	}
	tail := returns[len(returns)-window:]
	return computeStddev(tail, computeMean(tail)) * math.Sqrt(TradingDays), true
}

// VolatilitySeries computes historical volatility for every day of points
// that has a full window behind it.
func VolatilitySeries(symbol string, points []domain.PricePoint, window int) []*domain.VolatilityPoint {
	var out []*domain.VolatilityPoint
	for i := window; i < len(points); i++ {
		hv, ok := HistoricalVolatility(points[i-window:i+1], window)
		if !ok {
			continue
		}
		out = append(out, &domain.VolatilityPoint{
			Symbol:     symbol,
			Date:       points[i].Date,
			Volatility: hv,
			Returns:    window,
		})
	}
	return out
}
