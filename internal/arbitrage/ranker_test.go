package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func testLedgers() domain.LedgerSet {
	return domain.LedgerSet{
		"ethereum": {Name: "ethereum", HighSettlementCost: true},
		"arbitrum": {Name: "arbitrum", LowSettlementCost: true},
		"polygon":  {Name: "polygon", LowSettlementCost: true},
	}
}

func spreadResult(pair domain.AssetPair, ledgers []string, spread float64, buy, sell string) domain.SpreadResult {
	prices := make(map[string]float64, len(ledgers))
	for _, l := range ledgers {
		prices[l] = 1.0
	}
	prices[buy] = 1.0
	prices[sell] = 1.0 + spread/100
	return domain.SpreadResult{
		Pair:          pair,
		Ledgers:       ledgers,
		Prices:        prices,
		SpreadPercent: spread,
		BuyLedger:     buy,
		SellLedger:    sell,
		Confidence:    domain.ConfidenceMedium,
		EvaluatedAt:   time.Now().UTC(),
	}
}

func TestRanker_Rank(t *testing.T) {
	pair := domain.NewAssetPair("USDC", "USDT")
	safety := domain.SafetyConfig{
		MaxTradeAmount:            1000,
		MinProfitThresholdPercent: 0.3,
		MaxSlippagePercent:        0.5,
	}
	r := NewRanker(testLedgers(), safety)

	t.Run("filters below threshold and non-actionable", func(t *testing.T) {
		tied := spreadResult(pair, []string{"arbitrum", "polygon"}, 0, "", "")
		tied.BuyLedger, tied.SellLedger = "", ""
		thin := spreadResult(pair, []string{"arbitrum", "polygon"}, 0.2202, "arbitrum", "polygon")

		opps := r.Rank([]domain.SpreadResult{tied, thin})
		assert.Empty(t, opps)
	})

	t.Run("bilateral opportunity fields", func(t *testing.T) {
		res := spreadResult(pair, []string{"arbitrum", "polygon"}, 0.6, "polygon", "arbitrum")

		opps := r.Rank([]domain.SpreadResult{res})
		require.Len(t, opps, 1)
		opp := opps[0]

		assert.NotEmpty(t, opp.ID)
		assert.Equal(t, domain.RouteBilateral, opp.Route)
		// Buy ledger leads, sell ledger closes the sequence.
		assert.Equal(t, []string{"polygon", "arbitrum"}, opp.Ledgers)
		require.Len(t, opp.Assets, 2)
		assert.Equal(t, pair, opp.Assets[0])
		assert.Equal(t, pair.Reversed(), opp.Assets[1])
		// Two low-cost ledgers rebate the fee penalty to the floor.
		assert.Equal(t, 0.6, opp.EstimatedNetProfitPercent)
		assert.Equal(t, 1, opp.Complexity.Score)
		assert.Equal(t, domain.ComplexityLow, opp.Complexity.Level)
		assert.Equal(t, 1000.0, opp.RecommendedAmount)
	})

	t.Run("triangular route ordering and penalties", func(t *testing.T) {
		res := spreadResult(pair, []string{"ethereum", "arbitrum", "polygon"}, 0.9, "arbitrum", "polygon")

		opps := r.Rank([]domain.SpreadResult{res})
		require.Len(t, opps, 1)
		opp := opps[0]

		assert.Equal(t, domain.RouteTriangular, opp.Route)
		assert.Equal(t, []string{"arbitrum", "ethereum", "polygon"}, opp.Ledgers)
		require.Len(t, opp.Assets, 3)
		assert.Equal(t, pair.Reversed(), opp.Assets[2])
		// 0.9 - (0.08 high + 0.15 triangular - 2*0.02 rebate) = 0.71
		assert.InDelta(t, 0.71, opp.EstimatedNetProfitPercent, 1e-9)
		// 1 base + 3 triangular + 1 high-cost ledger + 1 for >2 ledgers
		assert.Equal(t, 6, opp.Complexity.Score)
		assert.Equal(t, domain.ComplexityHigh, opp.Complexity.Level)
		assert.Equal(t, 250.0, opp.RecommendedAmount)
	})

	t.Run("sorted by net profit minus complexity discount", func(t *testing.T) {
		bilateral := spreadResult(pair, []string{"arbitrum", "polygon"}, 0.6, "polygon", "arbitrum")
		triangular := spreadResult(pair, []string{"ethereum", "arbitrum", "polygon"}, 0.9, "arbitrum", "polygon")

		opps := r.Rank([]domain.SpreadResult{triangular, bilateral})
		require.Len(t, opps, 2)
		// Bilateral scores 0.6 - 0.1*1 = 0.5, triangular 0.71 - 0.1*6 = 0.11.
		assert.Equal(t, domain.RouteBilateral, opps[0].Route)
		assert.Equal(t, domain.RouteTriangular, opps[1].Route)
	})

	t.Run("net profit never negative", func(t *testing.T) {
		res := spreadResult(pair, []string{"ethereum", "arbitrum", "polygon"}, 0.31, "arbitrum", "ethereum")

		opps := r.Rank([]domain.SpreadResult{res})
		require.Len(t, opps, 1)
		assert.GreaterOrEqual(t, opps[0].EstimatedNetProfitPercent, 0.0)
	})

	t.Run("returns fresh slice", func(t *testing.T) {
		assert.NotNil(t, r.Rank(nil))
		assert.Empty(t, r.Rank(nil))
	})
}
