package domain

// Provider identifies the external data provider a raw row came from.
type Provider string

const (
	// ProviderMassive is the primary options-chain provider. Its rows define
	// which contracts exist in the merged view.
	ProviderMassive  Provider = "massive"
	ProviderYahoo    Provider = "yahoo"
	ProviderBarchart Provider = "barchart"
)

// Providers lists every provider, primary first.
var Providers = []Provider{ProviderMassive, ProviderYahoo, ProviderBarchart}

// SecondaryProviders are joined onto the primary chain with left-outer semantics.
var SecondaryProviders = []Provider{ProviderYahoo, ProviderBarchart}

// String returns the string representation of Provider.
func (p Provider) String() string {
	return string(p)
}

// IsValid checks if the provider is a known value.
func (p Provider) IsValid() bool {
	return p == ProviderMassive || p == ProviderYahoo || p == ProviderBarchart
}
