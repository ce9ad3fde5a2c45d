package domain

import "time"

// PriceObservation is one spot price read from a single ledger. Observations
// are ephemeral: they feed spread evaluation and the price cache but are
// never persisted.
type PriceObservation struct {
	Ledger     string    `json:"ledger"`
	Pair       AssetPair `json:"pair"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// Confidence classifies how strongly a measured spread supports acting on it.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// rank orders confidence tiers for sorting (higher is better).
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Stronger reports whether c is a higher confidence tier than other.
func (c Confidence) Stronger(other Confidence) bool {
	return c.rank() > other.rank()
}

// SpreadResult is the outcome of comparing one asset pair's price across
// two or three ledgers. BuyLedger holds the minimum price, SellLedger the
// maximum; SpreadPercent is always >= 0.
type SpreadResult struct {
	Pair          AssetPair          `json:"pair"`
	Ledgers       []string           `json:"ledgers"`
	Prices        map[string]float64 `json:"prices"`
	SpreadPercent float64            `json:"spread_percent"`
	BuyLedger     string             `json:"buy_ledger"`
	SellLedger    string             `json:"sell_ledger"`
	Confidence    Confidence         `json:"confidence"`
	EvaluatedAt   time.Time          `json:"evaluated_at"`
}

// Actionable reports whether the spread identifies a usable buy/sell split.
// A zero spread (all prices equal) has no actionable direction.
func (r SpreadResult) Actionable() bool {
	return r.SpreadPercent > 0 && r.BuyLedger != r.SellLedger
}
