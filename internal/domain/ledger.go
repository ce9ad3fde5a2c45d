package domain

import "context"

// LedgerInfo carries the static traits of one participating ledger that the
// ranking and planning logic depends on. Populated from configuration.
type LedgerInfo struct {
	Name               string `json:"name"`
	HighSettlementCost bool   `json:"high_settlement_cost"`
	LowSettlementCost  bool   `json:"low_settlement_cost"`
	BridgeRequired     bool   `json:"bridge_required"`
}

// LedgerSet maps ledger name to its traits.
type LedgerSet map[string]LedgerInfo

// Names returns the ledger names in the set, order unspecified.
func (ls LedgerSet) Names() []string {
	names := make([]string, 0, len(ls))
	for name := range ls {
		names = append(names, name)
	}
	return names
}

// SwapOrder is a request to swap AmountIn of Pair.Base for at least
// MinAmountOut of Pair.Quote on one ledger.
type SwapOrder struct {
	Pair         AssetPair
	AmountIn     float64
	MinAmountOut float64
	Wallet       string
}

// SwapReceipt is the collaborator's report for a swap or transfer call.
type SwapReceipt struct {
	Success   bool    `json:"success"`
	TxRef     string  `json:"tx_ref"`
	AmountOut float64 `json:"amount_out"`
}

// LedgerGateway is the collaborator boundary the core depends on. A gateway
// multiplexes per-ledger clients behind one interface; implementations may
// fail or time out and the caller must bound every call with a context
// deadline.
type LedgerGateway interface {
	// SpotPrice returns the current price for pair on the named ledger.
	SpotPrice(ctx context.Context, ledger string, pair AssetPair) (PriceObservation, error)
	// ExecuteSwap performs one swap on the named ledger.
	ExecuteSwap(ctx context.Context, ledger string, order SwapOrder) (SwapReceipt, error)
	// BridgeTransfer moves amount of asset from one ledger to another.
	BridgeTransfer(ctx context.Context, fromLedger, toLedger, asset string, amount float64) (SwapReceipt, error)
	// Balances returns asset balances for a wallet on the named ledger.
	Balances(ctx context.Context, ledger, wallet string) (map[string]float64, error)
}

// WalletDirectory resolves the wallet address a logical session uses on each
// ledger. The boundary layer owns sessions; the core only looks up addresses.
type WalletDirectory interface {
	WalletAddress(ctx context.Context, session, ledger string) (string, error)
}
