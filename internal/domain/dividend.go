package domain

import "time"

// DividendPayout is one historical dividend payment.
type DividendPayout struct {
	Symbol string
	ExDate time.Time
	Amount float64
}

// StreakClass is the dividend growth classification.
type StreakClass string

const (
	StreakNone       StreakClass = "None"
	StreakChallenger StreakClass = "Dividend Challenger"
	StreakContender  StreakClass = "Dividend Contender"
	StreakChampion   StreakClass = "Dividend Champion"
)

// DividendStreak is the derived consecutive-growth classification of a symbol.
// Corresponds to dividend_streaks table.
type DividendStreak struct {
	Symbol          string
	Years           int         // unbroken year-over-year increases
	Classification  StreakClass // derived from Years
	ReferenceYear   int         // last complete year considered
	ExcludedPayouts int         // outliers removed before aggregation
}
