package domain

import "time"

// ContractType is the normalized option type.
type ContractType string

const (
	ContractTypeCall ContractType = "call"
	ContractTypePut  ContractType = "put"
)

// IsValid checks if the contract type is a normalized value.
func (t ContractType) IsValid() bool {
	return t == ContractTypeCall || t == ContractTypePut
}

// OptionQuote is one provider's view of one option contract on one snapshot date.
// Corresponds to option_quotes_raw / option_quotes_history.
// Nullable provider fields are pointers: nil means the provider did not report it.
type OptionQuote struct {
	Provider     Provider  // source provider
	SnapshotDate time.Time // collection date (UTC midnight)
	ContractID   string    // canonical OSI identifier
	Symbol       string    // underlying symbol
	Type         ContractType
	Strike       float64
	Expiration   time.Time // expiration date (UTC midnight)

	Bid          *float64
	Ask          *float64
	Last         *float64
	Theoretical  *float64
	Volume       *int64
	OpenInterest *int64

	Delta             *float64
	Gamma             *float64
	Theta             *float64
	Vega              *float64
	Rho               *float64
	ImpliedVolatility *float64 // decimal fraction, 0.25 = 25%
}

// FieldValues returns the numeric data fields keyed by column name.
// Used by aging drift detection; nil values are omitted.
func (q *OptionQuote) FieldValues() map[string]float64 {
	out := make(map[string]float64, 14)
	putFloat(out, "bid", q.Bid)
	putFloat(out, "ask", q.Ask)
	putFloat(out, "last", q.Last)
	putFloat(out, "theoretical", q.Theoretical)
	putInt(out, "volume", q.Volume)
	putInt(out, "open_interest", q.OpenInterest)
	putFloat(out, "delta", q.Delta)
	putFloat(out, "gamma", q.Gamma)
	putFloat(out, "theta", q.Theta)
	putFloat(out, "vega", q.Vega)
	putFloat(out, "rho", q.Rho)
	putFloat(out, "implied_volatility", q.ImpliedVolatility)
	out["strike"] = q.Strike
	return out
}

func putFloat(m map[string]float64, k string, v *float64) {
	if v != nil {
		m[k] = *v
	}
}

func putInt(m map[string]float64, k string, v *int64) {
	if v != nil {
		m[k] = float64(*v)
	}
}

// Outranks reports whether q should be kept over o when both carry the same
// key: higher open interest, then higher volume, then higher bid, then lower
// ask, then higher implied volatility. Missing values rank lowest.
func (q *OptionQuote) Outranks(o *OptionQuote) bool {
	if c := cmpInt(q.OpenInterest, o.OpenInterest); c != 0 {
		return c > 0
	}
	if c := cmpInt(q.Volume, o.Volume); c != 0 {
		return c > 0
	}
	if c := cmpFloat(q.Bid, o.Bid); c != 0 {
		return c > 0
	}
	// Lower ask wins, but a missing ask still ranks lowest.
	switch {
	case q.Ask != nil && o.Ask == nil:
		return true
	case q.Ask == nil && o.Ask != nil:
		return false
	case q.Ask != nil && *q.Ask != *o.Ask:
		return *q.Ask < *o.Ask
	}
	return cmpFloat(q.ImpliedVolatility, o.ImpliedVolatility) > 0
}

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

func cmpInt(a, b *int64) int {
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
