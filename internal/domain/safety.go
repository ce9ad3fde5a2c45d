package domain

// SafetyConfig holds the process-wide trade ceilings. Loaded once at startup
// and read-only afterwards; every gate check and net-profit estimate
// consults it.
type SafetyConfig struct {
	MaxTradeAmount            float64
	MinProfitThresholdPercent float64
	MaxSlippagePercent        float64
}

// TradeRequest is what a caller submits for validation before any swap state
// is created. MaxSlippagePercent may be zero, meaning the caller did not
// supply a bound and the configured maximum applies unchecked.
type TradeRequest struct {
	Amount                float64  `json:"amount"`
	ExpectedSpreadPercent float64  `json:"expected_spread_percent"`
	MaxSlippagePercent    float64  `json:"max_slippage_percent,omitempty"`
	Ledgers               []string `json:"ledgers"`
}
