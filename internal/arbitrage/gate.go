package arbitrage

import (
	"fmt"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// Gate validates a trade request against the configured ceilings before any
// swap state is created. Pure and synchronous; it never mutates state and
// never calls a collaborator.
type Gate struct {
	cfg domain.SafetyConfig
}

// NewGate creates a Gate over the given safety configuration.
func NewGate(cfg domain.SafetyConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Check applies the safety rules in order; the first failure wins. A nil
// return means the request may proceed to planning.
func (g *Gate) Check(req domain.TradeRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("gate: amount %v: %w", req.Amount, domain.ErrAmountExceedsLimit)
	}
	if req.Amount > g.cfg.MaxTradeAmount {
		return fmt.Errorf("gate: amount %v over ceiling %v: %w", req.Amount, g.cfg.MaxTradeAmount, domain.ErrAmountExceedsLimit)
	}
	if req.ExpectedSpreadPercent < g.cfg.MinProfitThresholdPercent {
		return fmt.Errorf("gate: spread %.4f%% under threshold %.4f%%: %w",
			req.ExpectedSpreadPercent, g.cfg.MinProfitThresholdPercent, domain.ErrSpreadBelowMinimum)
	}
	if req.MaxSlippagePercent > 0 && req.MaxSlippagePercent > g.cfg.MaxSlippagePercent {
		return fmt.Errorf("gate: slippage bound %.4f%% over maximum %.4f%%: %w",
			req.MaxSlippagePercent, g.cfg.MaxSlippagePercent, domain.ErrSlippageTooHigh)
	}
	if err := validRoute(req.Ledgers); err != nil {
		return err
	}
	return nil
}

func validRoute(ledgers []string) error {
	if len(ledgers) < 2 || len(ledgers) > 3 {
		return fmt.Errorf("gate: %d ledgers: %w", len(ledgers), domain.ErrInvalidRoute)
	}
	seen := make(map[string]bool, len(ledgers))
	for _, l := range ledgers {
		if l == "" || seen[l] {
			return fmt.Errorf("gate: duplicate or empty ledger %q: %w", l, domain.ErrInvalidRoute)
		}
		seen[l] = true
	}
	return nil
}
