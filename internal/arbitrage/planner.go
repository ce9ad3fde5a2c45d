package arbitrage

import (
	"fmt"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// ledgerEstimate is a rough per-ledger gas/latency figure recorded on plan
// steps as supporting evidence. Values are advisory only.
type ledgerEstimate struct {
	GasUSD     float64
	Settlement time.Duration
}

// defaultEstimates covers ledgers with well-known settlement profiles;
// anything absent falls back to zero estimates.
var defaultEstimates = map[string]ledgerEstimate{
	"ethereum":  {GasUSD: 4.20, Settlement: 3 * time.Minute},
	"arbitrum":  {GasUSD: 0.08, Settlement: 20 * time.Second},
	"polygon":   {GasUSD: 0.02, Settlement: 30 * time.Second},
	"avalanche": {GasUSD: 0.15, Settlement: 10 * time.Second},
	"sui":       {GasUSD: 0.01, Settlement: 5 * time.Second},
}

// Planner converts a chosen opportunity into an ordered execution plan. Pure
// function of its inputs plus the static estimate table; no I/O.
type Planner struct {
	ledgers   domain.LedgerSet
	estimates map[string]ledgerEstimate
}

// NewPlanner creates a Planner over the given ledger traits.
func NewPlanner(ledgers domain.LedgerSet) *Planner {
	return &Planner{ledgers: ledgers, estimates: defaultEstimates}
}

// BuildPlan produces the step sequence for the opportunity's route topology.
// Every plan opens with a COMPLETED spread-verification step recording the
// captured spread; all following steps start PENDING. Swap steps require a
// signature, pure transfers do not. Fails with UnsupportedRoute when any
// route ledger lacks a wallet address.
func (p *Planner) BuildPlan(opp domain.Opportunity, wallets map[string]string) ([]domain.ExecutionStep, error) {
	for _, ledger := range opp.Ledgers {
		if wallets[ledger] == "" {
			return nil, fmt.Errorf("build plan for %s: %w: no wallet for ledger %s", opp.Spread.Pair, domain.ErrUnsupportedRoute, ledger)
		}
	}

	now := time.Now().UTC()
	verification := domain.ExecutionStep{
		Type:        domain.StepSpreadVerification,
		Status:      domain.StepCompleted,
		Detail:      fmt.Sprintf("spread %.4f%% buy=%s sell=%s", opp.Spread.SpreadPercent, opp.Spread.BuyLedger, opp.Spread.SellLedger),
		CompletedAt: &now,
	}

	if opp.Route == domain.RouteTriangular {
		return p.triangularPlan(opp, verification)
	}
	return p.bilateralPlan(opp, verification)
}

func (p *Planner) bilateralPlan(opp domain.Opportunity, verification domain.ExecutionStep) ([]domain.ExecutionStep, error) {
	if len(opp.Ledgers) != 2 {
		return nil, fmt.Errorf("build plan: %w: bilateral route names %d ledgers", domain.ErrUnsupportedRoute, len(opp.Ledgers))
	}
	buy, sell := opp.Ledgers[0], opp.Ledgers[1]
	buyPair, sellPair := opp.Assets[0], opp.Assets[len(opp.Assets)-1]

	if p.bridged(opp.Ledgers) {
		return []domain.ExecutionStep{
			verification,
			{Type: domain.StepBridgePreparation, Ledger: buy, Status: domain.StepPending},
			{Type: domain.StepSourceSwap, Ledger: buy, Pair: buyPair, RequiresSignature: true, Status: domain.StepPending},
			{Type: domain.StepBridgeExecution, Status: domain.StepPending},
			{Type: domain.StepDestinationSwap, Ledger: sell, Pair: sellPair, RequiresSignature: true, Status: domain.StepPending},
		}, nil
	}

	return []domain.ExecutionStep{
		verification,
		{Type: domain.StepWalletPreparation, Ledger: buy, Status: domain.StepPending},
		{Type: domain.StepSourceSwap, Ledger: buy, Pair: buyPair, RequiresSignature: true, Status: domain.StepPending},
		{Type: domain.StepBridgeTransfer, Status: domain.StepPending},
		{Type: domain.StepDestinationSwap, Ledger: sell, Pair: sellPair, RequiresSignature: true, Status: domain.StepPending},
	}, nil
}

// triangularPlan emits one swap step per hop in the fixed cyclic order
// ledger1 -> ledger2 -> ledger3 -> ledger1.
func (p *Planner) triangularPlan(opp domain.Opportunity, verification domain.ExecutionStep) ([]domain.ExecutionStep, error) {
	if len(opp.Ledgers) != 3 || len(opp.Assets) != 3 {
		return nil, fmt.Errorf("build plan: %w: triangular route needs 3 ledgers and 3 hop pairs", domain.ErrUnsupportedRoute)
	}

	steps := []domain.ExecutionStep{verification}
	for i, ledger := range opp.Ledgers {
		steps = append(steps, domain.ExecutionStep{
			Type:              domain.StepSourceSwap,
			Ledger:            ledger,
			Pair:              opp.Assets[i],
			RequiresSignature: true,
			Status:            domain.StepPending,
		})
	}
	return steps, nil
}

// bridged reports whether any route ledger needs a bridge hop.
func (p *Planner) bridged(ledgers []string) bool {
	for _, name := range ledgers {
		if p.ledgers[name].BridgeRequired {
			return true
		}
	}
	return false
}

// Estimate returns the gas/settlement figures for a ledger, zero-valued when
// unknown.
func (p *Planner) Estimate(ledger string) (gasUSD float64, settlement time.Duration) {
	est := p.estimates[ledger]
	return est.GasUSD, est.Settlement
}
