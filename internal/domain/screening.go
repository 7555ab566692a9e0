package domain

import "time"

// MarriedPutCandidate is one ranked married-put opportunity.
type MarriedPutCandidate struct {
	Symbol                 string
	ContractID             string
	Expiration             time.Time
	Strike                 float64
	UnderlyingPrice        float64
	PutPrice               float64
	DaysToExpiration       int
	OpenInterest           int64
	TotalInvestment        float64 // 100 shares + 1 put
	MinimumPotentialProfit float64 // value at expiration floor minus investment
	MaxLossPct             float64
	ProtectionFloorPct     float64
	CostOfProtectionPct    float64
	AnnualizedROI          float64 // percent
	SymbolOptionRank       int     // 1-based rank within symbol
}

// CreditSpread is one vertical spread built from a sell leg and a buy leg.
type CreditSpread struct {
	Symbol          string
	Type            ContractType
	Expiration      time.Time
	UnderlyingPrice *float64
	SellContractID  string
	SellStrike      float64
	SellBid         float64
	SellDelta       float64
	SellIV          *float64
	BuyContractID   string
	BuyStrike       float64
	BuyAsk          float64
	BuyDelta        *float64
	SpreadWidth     float64
	MaxProfit       float64  // per contract, 100 shares
	BPR             float64  // buying power reduction
	ProfitToBPR     *float64 // nil when BPR is zero
	SpreadTheta     *float64
	IVRank          *float64
	IVPercentile    *float64
}
