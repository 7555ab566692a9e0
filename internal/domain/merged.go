package domain

import "time"

// MergedOption is one contract's as-of-latest cross-provider row.
// Corresponds to the option_data_merged view.
// Has* flags distinguish "source had no record" from "value is null".
type MergedOption struct {
	SnapshotDate time.Time
	ContractID   string
	Symbol       string
	Type         ContractType
	Strike       float64
	Expiration   time.Time

	// Primary provider fields.
	Bid               *float64
	Ask               *float64
	Last              *float64
	Theoretical       *float64
	Volume            *int64
	OpenInterest      *int64
	Delta             *float64
	Gamma             *float64
	Theta             *float64
	Vega              *float64
	Rho               *float64
	ImpliedVolatility *float64

	HasYahoo          bool
	YahooBid          *float64
	YahooAsk          *float64
	YahooOpenInterest *int64
	YahooIV           *float64

	HasBarchart         bool
	BarchartTheoretical *float64
	BarchartDelta       *float64
	BarchartIV          *float64
	BarchartVolume      *int64

	HasStock        bool
	UnderlyingPrice *float64

	HasEarnings  bool
	EarningsDate *time.Time

	HasAnalystTarget  bool
	AnalystMeanTarget *float64
}

// OptionPricing holds the derived pricing columns of one merged row.
// Corresponds to the option_pricing view.
type OptionPricing struct {
	DaysToExpiration int
	Premium          *float64 // theoretical, else bid/ask midpoint
	Intrinsic        *float64 // >= 0
	Extrinsic        *float64 // premium - intrinsic, may be negative
	ExtrinsicAnomaly bool     // extrinsic < 0: premium data is suspect
	Moneyness        *float64 // underlying - strike
	ExpectedMove     *float64 // dollar expected move to expiration
}

// PricedOption is a merged row with its derived pricing.
type PricedOption struct {
	MergedOption
	OptionPricing
}
