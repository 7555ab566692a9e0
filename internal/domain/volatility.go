package domain

import "time"

// IVStat is the at-the-money implied volatility of a symbol on one day
// together with its trailing one-year statistics.
// Corresponds to iv_stats_daily (Postgres) and iv_stats (ClickHouse).
type IVStat struct {
	Symbol         string
	Date           time.Time
	Expiration     time.Time // selected monthly expiration
	PutContractID  string
	CallContractID string
	ATMIV          float64 // average of put and call IV
	High           float64 // trailing-window high
	Low            float64 // trailing-window low
	Rank           float64 // 0..100
	Percentile     float64 // 0..100
	WindowDays     int     // observations in the trailing window
}

// VolatilityPoint is the historical (realized) volatility of a symbol on one day.
// Corresponds to historical_volatility (ClickHouse).
type VolatilityPoint struct {
	Symbol     string
	Date       time.Time
	Volatility float64 // annualized, decimal fraction
	Returns    int     // log returns in the window
}
