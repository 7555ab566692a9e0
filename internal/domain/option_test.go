package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func TestOptionQuote_Outranks(t *testing.T) {
	tests := []struct {
		name string
		q, o OptionQuote
		want bool
	}{
		{"higher open interest", OptionQuote{OpenInterest: ip(20)}, OptionQuote{OpenInterest: ip(10)}, true},
		{"missing open interest", OptionQuote{}, OptionQuote{OpenInterest: ip(0)}, false},
		{"higher volume", OptionQuote{Volume: ip(5)}, OptionQuote{Volume: ip(4)}, true},
		{"missing volume", OptionQuote{}, OptionQuote{Volume: ip(1)}, false},
		{"higher bid", OptionQuote{Bid: fp(1.1)}, OptionQuote{Bid: fp(1.0)}, true},
		{"missing bid", OptionQuote{}, OptionQuote{Bid: fp(1.0)}, false},
		{"lower ask", OptionQuote{Ask: fp(1.2)}, OptionQuote{Ask: fp(1.3)}, true},
		{"higher ask", OptionQuote{Ask: fp(1.3)}, OptionQuote{Ask: fp(1.2)}, false},
		{"missing ask loses", OptionQuote{}, OptionQuote{Ask: fp(1.2)}, false},
		{"present ask beats missing", OptionQuote{Ask: fp(1.2)}, OptionQuote{}, true},
		{"equal ask falls through to iv", OptionQuote{Ask: fp(1.2), ImpliedVolatility: fp(0.3)}, OptionQuote{Ask: fp(1.2), ImpliedVolatility: fp(0.2)}, true},
		{"both asks missing falls through to iv", OptionQuote{ImpliedVolatility: fp(0.3)}, OptionQuote{}, true},
		{"missing iv", OptionQuote{}, OptionQuote{ImpliedVolatility: fp(0.2)}, false},
		{"identical", OptionQuote{Bid: fp(1.0), Ask: fp(1.2)}, OptionQuote{Bid: fp(1.0), Ask: fp(1.2)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Outranks(&tt.o))
		})
	}
}
