package domain

import "time"

// StockSnapshot is one symbol's daily price row.
// Corresponds to stock_prices_raw / stock_prices_history.
type StockSnapshot struct {
	Symbol       string
	SnapshotDate time.Time // trading date (UTC midnight)
	Open         *float64
	High         *float64
	Low          *float64
	Close        *float64
	Volume       *int64
	Dividends    *float64
	StockSplits  *float64
	LivePrice    *float64 // intraday price captured at collection time
	PriceSource  string
	CapturedAt   time.Time
}

// Price returns the live price if present, otherwise the close.
func (s *StockSnapshot) Price() *float64 {
	if s.LivePrice != nil {
		return s.LivePrice
	}
	return s.Close
}

// FieldValues returns the numeric data fields keyed by column name.
func (s *StockSnapshot) FieldValues() map[string]float64 {
	out := make(map[string]float64, 9)
	putFloat(out, "open", s.Open)
	putFloat(out, "high", s.High)
	putFloat(out, "low", s.Low)
	putFloat(out, "close", s.Close)
	putInt(out, "volume", s.Volume)
	putFloat(out, "dividends", s.Dividends)
	putFloat(out, "stock_splits", s.StockSplits)
	putFloat(out, "live_price", s.LivePrice)
	return out
}

// PricePoint is a single close used for volatility computation.
type PricePoint struct {
	Date  time.Time
	Close float64
}
