package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func bilateralOpportunity(pair domain.AssetPair, ledgers []string) domain.Opportunity {
	return domain.Opportunity{
		ID:      "opp-bilateral",
		Route:   domain.RouteBilateral,
		Ledgers: ledgers,
		Assets:  []domain.AssetPair{pair, pair.Reversed()},
		Spread: domain.SpreadResult{
			Pair:          pair,
			Ledgers:       ledgers,
			SpreadPercent: 0.6,
			BuyLedger:     ledgers[0],
			SellLedger:    ledgers[len(ledgers)-1],
		},
	}
}

func TestPlanner_BuildPlan(t *testing.T) {
	pair := domain.NewAssetPair("USDC", "USDT")
	wallets := map[string]string{
		"ethereum": "0xabc",
		"arbitrum": "0xdef",
		"polygon":  "0x123",
		"sui":      "0x456",
	}

	t.Run("bilateral without bridge", func(t *testing.T) {
		p := NewPlanner(testLedgers())
		opp := bilateralOpportunity(pair, []string{"arbitrum", "polygon"})

		steps, err := p.BuildPlan(opp, wallets)
		require.NoError(t, err)
		require.Len(t, steps, 5)

		assert.Equal(t, domain.StepSpreadVerification, steps[0].Type)
		assert.Equal(t, domain.StepCompleted, steps[0].Status)
		require.NotNil(t, steps[0].CompletedAt)
		assert.Contains(t, steps[0].Detail, "0.6000%")

		assert.Equal(t, domain.StepWalletPreparation, steps[1].Type)
		assert.Equal(t, domain.StepSourceSwap, steps[2].Type)
		assert.Equal(t, domain.StepBridgeTransfer, steps[3].Type)
		assert.Equal(t, domain.StepDestinationSwap, steps[4].Type)

		assert.Equal(t, "arbitrum", steps[2].Ledger)
		assert.Equal(t, pair, steps[2].Pair)
		assert.Equal(t, "polygon", steps[4].Ledger)
		assert.Equal(t, pair.Reversed(), steps[4].Pair)

		for _, st := range steps[1:] {
			assert.Equal(t, domain.StepPending, st.Status)
		}
		assert.True(t, steps[2].RequiresSignature)
		assert.True(t, steps[4].RequiresSignature)
		assert.False(t, steps[1].RequiresSignature)
		assert.False(t, steps[3].RequiresSignature)
	})

	t.Run("bilateral with bridge-required ledger", func(t *testing.T) {
		ledgers := testLedgers()
		ledgers["sui"] = domain.LedgerInfo{Name: "sui", BridgeRequired: true}
		p := NewPlanner(ledgers)
		opp := bilateralOpportunity(pair, []string{"sui", "polygon"})

		steps, err := p.BuildPlan(opp, wallets)
		require.NoError(t, err)
		require.Len(t, steps, 5)

		assert.Equal(t, domain.StepBridgePreparation, steps[1].Type)
		assert.Equal(t, domain.StepSourceSwap, steps[2].Type)
		assert.Equal(t, domain.StepBridgeExecution, steps[3].Type)
		assert.Equal(t, domain.StepDestinationSwap, steps[4].Type)
	})

	t.Run("triangular plan is one swap per hop", func(t *testing.T) {
		p := NewPlanner(testLedgers())
		opp := domain.Opportunity{
			ID:      "opp-triangular",
			Route:   domain.RouteTriangular,
			Ledgers: []string{"arbitrum", "ethereum", "polygon"},
			Assets:  []domain.AssetPair{pair, pair, pair.Reversed()},
			Spread:  domain.SpreadResult{Pair: pair, SpreadPercent: 0.9},
		}

		steps, err := p.BuildPlan(opp, wallets)
		require.NoError(t, err)
		require.Len(t, steps, 4)

		assert.Equal(t, domain.StepSpreadVerification, steps[0].Type)
		for i, ledger := range opp.Ledgers {
			st := steps[i+1]
			assert.Equal(t, domain.StepSourceSwap, st.Type)
			assert.Equal(t, ledger, st.Ledger)
			assert.Equal(t, opp.Assets[i], st.Pair)
			assert.True(t, st.RequiresSignature)
		}
	})

	t.Run("missing wallet is unsupported route", func(t *testing.T) {
		p := NewPlanner(testLedgers())
		opp := bilateralOpportunity(pair, []string{"arbitrum", "polygon"})

		_, err := p.BuildPlan(opp, map[string]string{"arbitrum": "0xdef"})
		assert.ErrorIs(t, err, domain.ErrUnsupportedRoute)
	})

	t.Run("malformed route rejected", func(t *testing.T) {
		p := NewPlanner(testLedgers())
		opp := bilateralOpportunity(pair, []string{"arbitrum", "polygon"})
		opp.Ledgers = []string{"arbitrum", "ethereum", "polygon"}

		_, err := p.BuildPlan(opp, wallets)
		assert.ErrorIs(t, err, domain.ErrUnsupportedRoute)
	})
}
