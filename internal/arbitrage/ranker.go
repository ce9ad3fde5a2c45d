package arbitrage

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// Fee penalties in spread-percent units. A high-cost ledger taxes the route,
// a triangular route adds a coordination surcharge, a low-cost ledger earns
// a small rebate.
const (
	highCostLedgerPenalty = 0.08
	triangularPenalty     = 0.15
	lowCostLedgerRebate   = 0.02
)

// rankWeight discounts the sort score per point of execution complexity.
const rankWeight = 0.1

// Ranker turns spread results into scored, sorted opportunities. It is pure:
// no I/O, deterministic output for identical input, and a fresh slice on
// every call.
type Ranker struct {
	ledgers domain.LedgerSet
	safety  domain.SafetyConfig
}

// NewRanker creates a Ranker over the given ledger traits and safety config.
func NewRanker(ledgers domain.LedgerSet, safety domain.SafetyConfig) *Ranker {
	return &Ranker{ledgers: ledgers, safety: safety}
}

// Rank filters out spreads below the configured profit threshold, scores the
// survivors, and returns them sorted by net profit minus a complexity
// discount. Ties keep insertion order (stable sort), broken first by higher
// confidence, then by lower complexity.
func (r *Ranker) Rank(results []domain.SpreadResult) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(results))
	for _, res := range results {
		if !res.Actionable() {
			continue
		}
		if res.SpreadPercent < r.safety.MinProfitThresholdPercent {
			continue
		}
		opps = append(opps, r.build(res))
	}

	sort.SliceStable(opps, func(i, j int) bool {
		si, sj := sortScore(opps[i]), sortScore(opps[j])
		if si != sj {
			return si > sj
		}
		if opps[i].Spread.Confidence != opps[j].Spread.Confidence {
			return opps[i].Spread.Confidence.Stronger(opps[j].Spread.Confidence)
		}
		if opps[i].Complexity.Score != opps[j].Complexity.Score {
			return opps[i].Complexity.Score < opps[j].Complexity.Score
		}
		return false // equal: stable sort preserves insertion order
	})

	return opps
}

func sortScore(o domain.Opportunity) float64 {
	return o.EstimatedNetProfitPercent - rankWeight*float64(o.Complexity.Score)
}

func (r *Ranker) build(res domain.SpreadResult) domain.Opportunity {
	route := domain.RouteBilateral
	if len(res.Ledgers) == 3 {
		route = domain.RouteTriangular
	}

	ledgers := r.orderByTradeSequence(res)
	assets := hopAssets(route, res.Pair)

	net := res.SpreadPercent - r.feePenalty(route, ledgers)
	if net < 0 {
		net = 0
	}

	complexity := domain.ComplexityFromScore(r.complexityScore(route, ledgers))

	return domain.Opportunity{
		ID:                        uuid.New().String(),
		Route:                     route,
		Ledgers:                   ledgers,
		Assets:                    assets,
		Spread:                    res,
		RecommendedAmount:         r.recommendAmount(res, complexity),
		EstimatedNetProfitPercent: net,
		Risk:                      riskFor(res, complexity),
		Complexity:                complexity,
		DetectedAt:                time.Now().UTC(),
	}
}

// orderByTradeSequence puts the buy ledger first and the sell ledger last;
// for triangular routes the remaining ledger becomes the middle hop.
func (r *Ranker) orderByTradeSequence(res domain.SpreadResult) []string {
	ordered := []string{res.BuyLedger}
	for _, l := range res.Ledgers {
		if l != res.BuyLedger && l != res.SellLedger {
			ordered = append(ordered, l)
		}
	}
	return append(ordered, res.SellLedger)
}

// hopAssets assigns the traded pair per hop: buy the base going in, unwind
// back to the quote on the final hop.
func hopAssets(route domain.RouteKind, pair domain.AssetPair) []domain.AssetPair {
	if route == domain.RouteTriangular {
		return []domain.AssetPair{pair, pair, pair.Reversed()}
	}
	return []domain.AssetPair{pair, pair.Reversed()}
}

func (r *Ranker) feePenalty(route domain.RouteKind, ledgers []string) float64 {
	penalty := 0.0
	for _, name := range ledgers {
		info := r.ledgers[name]
		if info.HighSettlementCost {
			penalty += highCostLedgerPenalty
		}
		if info.LowSettlementCost {
			penalty -= lowCostLedgerRebate
		}
	}
	if route == domain.RouteTriangular {
		penalty += triangularPenalty
	}
	if penalty < 0 {
		penalty = 0
	}
	return penalty
}

// complexityScore starts at 1, +3 for triangular, +1 per high-cost ledger,
// +1 when the route spans more than two ledgers.
func (r *Ranker) complexityScore(route domain.RouteKind, ledgers []string) int {
	score := 1
	if route == domain.RouteTriangular {
		score += 3
	}
	for _, name := range ledgers {
		if r.ledgers[name].HighSettlementCost {
			score++
		}
	}
	if len(ledgers) > 2 {
		score++
	}
	return score
}

// riskFor weighs spread magnitude against complexity and confidence: a wide
// spread buys down risk, a convoluted route raises it.
func riskFor(res domain.SpreadResult, complexity domain.ExecutionComplexity) domain.RiskLevel {
	score := complexity.Score
	switch {
	case res.SpreadPercent >= 1.0:
		score -= 2
	case res.SpreadPercent >= 0.5:
		score--
	}
	if res.Confidence == domain.ConfidenceHigh {
		score--
	}
	switch {
	case score <= 1:
		return domain.RiskLow
	case score <= 3:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// recommendAmount sizes the trade off the configured ceiling, haircut by
// route complexity.
func (r *Ranker) recommendAmount(res domain.SpreadResult, complexity domain.ExecutionComplexity) float64 {
	amount := r.safety.MaxTradeAmount
	switch complexity.Level {
	case domain.ComplexityMedium:
		amount *= 0.5
	case domain.ComplexityHigh:
		amount *= 0.25
	}
	return amount
}
