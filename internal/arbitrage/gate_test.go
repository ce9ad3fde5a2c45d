package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func TestGate_Check(t *testing.T) {
	g := NewGate(domain.SafetyConfig{
		MaxTradeAmount:            100,
		MinProfitThresholdPercent: 0.3,
		MaxSlippagePercent:        0.5,
	})

	valid := domain.TradeRequest{
		Amount:                50,
		ExpectedSpreadPercent: 0.6,
		MaxSlippagePercent:    0.4,
		Ledgers:               []string{"arbitrum", "polygon"},
	}

	t.Run("accepts a request inside every bound", func(t *testing.T) {
		assert.NoError(t, g.Check(valid))
	})

	t.Run("zero slippage bound means unchecked", func(t *testing.T) {
		req := valid
		req.MaxSlippagePercent = 0
		assert.NoError(t, g.Check(req))
	})

	t.Run("amount over ceiling", func(t *testing.T) {
		req := valid
		req.Amount = 150
		assert.ErrorIs(t, g.Check(req), domain.ErrAmountExceedsLimit)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		req := valid
		req.Amount = 0
		assert.ErrorIs(t, g.Check(req), domain.ErrAmountExceedsLimit)
	})

	t.Run("spread under threshold", func(t *testing.T) {
		req := valid
		req.ExpectedSpreadPercent = 0.2202
		assert.ErrorIs(t, g.Check(req), domain.ErrSpreadBelowMinimum)
	})

	t.Run("slippage bound over maximum", func(t *testing.T) {
		req := valid
		req.MaxSlippagePercent = 0.75
		assert.ErrorIs(t, g.Check(req), domain.ErrSlippageTooHigh)
	})

	t.Run("route validation", func(t *testing.T) {
		for name, ledgers := range map[string][]string{
			"one ledger":    {"arbitrum"},
			"four ledgers":  {"a", "b", "c", "d"},
			"duplicate":     {"arbitrum", "arbitrum"},
			"empty name":    {"arbitrum", ""},
			"empty route":   {},
		} {
			req := valid
			req.Ledgers = ledgers
			assert.ErrorIs(t, g.Check(req), domain.ErrInvalidRoute, name)
		}
	})

	t.Run("first failure wins", func(t *testing.T) {
		req := valid
		req.Amount = 150
		req.ExpectedSpreadPercent = 0.1
		assert.ErrorIs(t, g.Check(req), domain.ErrAmountExceedsLimit)
	})
}
