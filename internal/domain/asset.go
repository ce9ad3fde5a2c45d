// Package domain contains the core types and interfaces shared by every
// layer of the arbitrage engine: prices, spreads, opportunities, execution
// plans, swap state, and the collaborator boundaries (ledger gateways,
// caches, stores).
package domain

import "strings"

// AssetPair is a pair of asset symbols. Order defines the nominal trade
// direction: Base is sold for Quote.
type AssetPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// NewAssetPair builds a pair from two symbols, normalizing to upper case.
func NewAssetPair(base, quote string) AssetPair {
	return AssetPair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// String renders the pair as "BASE/QUOTE".
func (p AssetPair) String() string {
	return p.Base + "/" + p.Quote
}

// Reversed returns the pair with the trade direction flipped.
func (p AssetPair) Reversed() AssetPair {
	return AssetPair{Base: p.Quote, Quote: p.Base}
}

// Valid reports whether both legs of the pair are set.
func (p AssetPair) Valid() bool {
	return p.Base != "" && p.Quote != ""
}
