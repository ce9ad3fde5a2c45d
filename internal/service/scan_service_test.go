package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/arbitrage"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform/sim"
)

type capturingOpportunityStore struct {
	inserted []domain.Opportunity
}

func (s *capturingOpportunityStore) Insert(_ context.Context, opp domain.Opportunity) error {
	s.inserted = append(s.inserted, opp)
	return nil
}

func (s *capturingOpportunityStore) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	if limit > len(s.inserted) {
		limit = len(s.inserted)
	}
	return s.inserted[:limit], nil
}

func TestScanService_Scan(t *testing.T) {
	pair := domain.NewAssetPair("USDC", "USDT")
	arb := sim.NewClient("arbitrum")
	poly := sim.NewClient("polygon")
	arb.SetPrice(pair, 0.9990)
	poly.SetPrice(pair, 1.0045)

	// Three configured ledgers but only two reachable clients: every combo
	// that touches ethereum is skipped, not fatal.
	gateway := platform.NewGateway(
		map[string]platform.LedgerClient{"arbitrum": arb, "polygon": poly},
		map[string]string{"arbitrum": "sim-wallet", "polygon": "sim-wallet"},
	)
	ledgers := domain.LedgerSet{
		"arbitrum": {Name: "arbitrum", LowSettlementCost: true},
		"ethereum": {Name: "ethereum", HighSettlementCost: true},
		"polygon":  {Name: "polygon", LowSettlementCost: true},
	}

	logger := testLogger()
	store := &capturingOpportunityStore{}
	svc := NewScanService(
		arbitrage.NewEvaluator(gateway, nil, logger),
		arbitrage.NewRanker(ledgers, testSafety),
		ledgers,
		[]domain.AssetPair{pair},
		nil,
		store,
		logger,
	)

	opps, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, domain.RouteBilateral, opp.Route)
	assert.Equal(t, []string{"arbitrum", "polygon"}, opp.Ledgers)
	assert.Equal(t, "arbitrum", opp.Spread.BuyLedger)
	assert.Equal(t, "polygon", opp.Spread.SellLedger)
	assert.InDelta(t, 0.5506, opp.Spread.SpreadPercent, 0.0001)
	assert.NotEmpty(t, opp.ID)

	// Every surfaced opportunity lands in the store.
	require.Len(t, store.inserted, 1)
	assert.Equal(t, opp.ID, store.inserted[0].ID)
}

func TestScanService_ScanNoOpportunities(t *testing.T) {
	pair := domain.NewAssetPair("USDC", "USDT")
	arb := sim.NewClient("arbitrum")
	poly := sim.NewClient("polygon")
	arb.SetPrice(pair, 1.0000)
	poly.SetPrice(pair, 1.0000)

	gateway := platform.NewGateway(
		map[string]platform.LedgerClient{"arbitrum": arb, "polygon": poly},
		nil,
	)
	ledgers := domain.LedgerSet{
		"arbitrum": {Name: "arbitrum", LowSettlementCost: true},
		"polygon":  {Name: "polygon", LowSettlementCost: true},
	}

	logger := testLogger()
	svc := NewScanService(
		arbitrage.NewEvaluator(gateway, nil, logger),
		arbitrage.NewRanker(ledgers, testSafety),
		ledgers,
		[]domain.AssetPair{pair},
		nil,
		nil,
		logger,
	)

	opps, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestLedgerCombos(t *testing.T) {
	combos := ledgerCombos([]string{"polygon", "arbitrum", "ethereum"})
	assert.Equal(t, [][]string{
		{"arbitrum", "ethereum"},
		{"arbitrum", "polygon"},
		{"ethereum", "polygon"},
		{"arbitrum", "ethereum", "polygon"},
	}, combos)
}
