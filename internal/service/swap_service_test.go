package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/arbitrage"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform/sim"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/swap"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testSafety = domain.SafetyConfig{
	MaxTradeAmount:            1000,
	MinProfitThresholdPercent: 0.3,
	MaxSlippagePercent:        0.5,
}

// swapFixture wires a SwapService over two simulated ledgers with pinned
// prices: buy cheap on arbitrum, sell dear on polygon.
type swapFixture struct {
	svc      *SwapService
	registry *swap.Registry
	arb      *sim.Client
	poly     *sim.Client
	pair     domain.AssetPair
}

func newSwapFixture(t *testing.T) *swapFixture {
	t.Helper()

	pair := domain.NewAssetPair("USDC", "USDT")
	arb := sim.NewClient("arbitrum")
	poly := sim.NewClient("polygon")
	arb.SetPrice(pair, 0.9990)
	poly.SetPrice(pair, 1.0045)
	poly.SetPrice(pair.Reversed(), 1.0040)

	gateway := platform.NewGateway(
		map[string]platform.LedgerClient{"arbitrum": arb, "polygon": poly},
		map[string]string{"arbitrum": "sim-wallet", "polygon": "sim-wallet"},
	)
	ledgers := domain.LedgerSet{
		"arbitrum": {Name: "arbitrum", LowSettlementCost: true},
		"polygon":  {Name: "polygon", LowSettlementCost: true},
	}

	logger := testLogger()
	registry := swap.NewRegistry(time.Hour, nil, logger)
	svc := NewSwapService(SwapServiceDeps{
		Gate:      arbitrage.NewGate(testSafety),
		Evaluator: arbitrage.NewEvaluator(gateway, nil, logger),
		Planner:   arbitrage.NewPlanner(ledgers),
		Gateway:   gateway,
		Wallets:   gateway,
		Registry:  registry,
		Safety:    testSafety,
		Timeout:   30 * time.Minute,
	}, logger)

	return &swapFixture{svc: svc, registry: registry, arb: arb, poly: poly, pair: pair}
}

func (f *swapFixture) opportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:      "opp-1",
		Route:   domain.RouteBilateral,
		Ledgers: []string{"arbitrum", "polygon"},
		Assets:  []domain.AssetPair{f.pair, f.pair.Reversed()},
		Spread: domain.SpreadResult{
			Pair:          f.pair,
			Ledgers:       []string{"arbitrum", "polygon"},
			Prices:        map[string]float64{"arbitrum": 0.9990, "polygon": 1.0045},
			SpreadPercent: 0.5506,
			BuyLedger:     "arbitrum",
			SellLedger:    "polygon",
			Confidence:    domain.ConfidenceMedium,
			EvaluatedAt:   time.Now().UTC(),
		},
		RecommendedAmount:         500,
		EstimatedNetProfitPercent: 0.55,
		Risk:                      domain.RiskLow,
		Complexity:                domain.ComplexityFromScore(1),
		DetectedAt:                time.Now().UTC(),
	}
}

func waitTerminal(t *testing.T, svc *SwapService, id string) domain.SwapState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st, err := svc.GetSwapStatus(context.Background(), id)
		require.NoError(t, err)
		if st.Status.Terminal() {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("swap did not reach a terminal status in time")
	return domain.SwapState{}
}

func TestSwapService_ValidateTrade(t *testing.T) {
	f := newSwapFixture(t)

	err := f.svc.ValidateTrade(context.Background(), domain.TradeRequest{
		Amount:                150,
		ExpectedSpreadPercent: 0.6,
		Ledgers:               []string{"arbitrum", "polygon"},
	})
	assert.NoError(t, err)

	err = f.svc.ValidateTrade(context.Background(), domain.TradeRequest{
		Amount:                5000,
		ExpectedSpreadPercent: 0.6,
		Ledgers:               []string{"arbitrum", "polygon"},
	})
	assert.ErrorIs(t, err, domain.ErrAmountExceedsLimit)
}

func TestSwapService_ExecuteOpportunity(t *testing.T) {
	t.Run("gate rejects before any state exists", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.svc.ExecuteOpportunity(context.Background(), f.opportunity(), 5000, false)
		assert.ErrorIs(t, err, domain.ErrAmountExceedsLimit)
		assert.Zero(t, f.registry.Len())
	})

	t.Run("degraded spread aborts execution", func(t *testing.T) {
		f := newSwapFixture(t)

		// Prices converged since the scan captured the spread.
		f.arb.SetPrice(f.pair, 1.0040)
		f.poly.SetPrice(f.pair, 1.0045)

		_, err := f.svc.ExecuteOpportunity(context.Background(), f.opportunity(), 100, false)
		assert.ErrorIs(t, err, domain.ErrSpreadDegraded)
		assert.Zero(t, f.registry.Len())
	})

	t.Run("runs the plan to completion", func(t *testing.T) {
		f := newSwapFixture(t)

		state, err := f.svc.ExecuteOpportunity(context.Background(), f.opportunity(), 100, false)
		require.NoError(t, err)
		require.NotEmpty(t, state.ID)
		assert.Equal(t, 100.0, state.Route.Amount)
		assert.Equal(t, "arbitrum", state.Route.FromLedger)
		assert.Equal(t, "polygon", state.Route.ToLedger)

		final := waitTerminal(t, f.svc, state.ID)
		assert.Equal(t, domain.SwapCompleted, final.Status)
		assert.False(t, final.CanRefund)
		assert.Equal(t, len(final.Steps), final.CompletedSteps())
		for _, st := range final.Steps[1:] {
			assert.NotEmpty(t, st.Detail)
		}

		swaps := f.svc.ListSwaps(context.Background())
		require.Len(t, swaps, 1)
		assert.Equal(t, state.ID, swaps[0].ID)
	})

	t.Run("failed step strands funds and flags refund", func(t *testing.T) {
		f := newSwapFixture(t)
		f.arb.FailSwaps(true)

		state, err := f.svc.ExecuteOpportunity(context.Background(), f.opportunity(), 100, false)
		require.NoError(t, err)

		final := waitTerminal(t, f.svc, state.ID)
		assert.Equal(t, domain.SwapFailed, final.Status)
		assert.True(t, final.CanRefund)

		// Wallet preparation succeeded, the source swap failed, and nothing
		// after it ran or rolled back.
		assert.Equal(t, domain.StepCompleted, final.Steps[1].Status)
		assert.Equal(t, domain.StepFailed, final.Steps[2].Status)
		assert.Equal(t, domain.StepPending, final.Steps[3].Status)
		assert.Equal(t, domain.StepPending, final.Steps[4].Status)
	})

	t.Run("dry run is deterministic and never registered", func(t *testing.T) {
		f := newSwapFixture(t)
		opp := f.opportunity()

		first, err := f.svc.ExecuteOpportunity(context.Background(), opp, 100, true)
		require.NoError(t, err)
		second, err := f.svc.ExecuteOpportunity(context.Background(), opp, 100, true)
		require.NoError(t, err)

		assert.True(t, first.Simulated)
		assert.True(t, first.Status.Terminal())
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.CompletedSteps(), second.CompletedSteps())
		assert.Zero(t, f.registry.Len())
	})

	t.Run("zero amount falls back to the recommendation", func(t *testing.T) {
		f := newSwapFixture(t)

		state, err := f.svc.ExecuteOpportunity(context.Background(), f.opportunity(), 0, true)
		require.NoError(t, err)
		assert.Equal(t, 500.0, state.Route.Amount)
	})
}

func TestSwapService_GetSwapStatus(t *testing.T) {
	f := newSwapFixture(t)

	_, err := f.svc.GetSwapStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSwapNotFound)
}
