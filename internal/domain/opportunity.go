package domain

import "time"

// RouteKind classifies the topology of an arbitrage route.
type RouteKind string

const (
	RouteBilateral  RouteKind = "BILATERAL"
	RouteTriangular RouteKind = "TRIANGULAR"
)

// RiskLevel is the qualitative risk classification of an opportunity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ComplexityLevel buckets the integer complexity score.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "LOW"
	ComplexityMedium ComplexityLevel = "MEDIUM"
	ComplexityHigh   ComplexityLevel = "HIGH"
)

// ExecutionComplexity carries both the raw score used for ranking and the
// bucketed level shown to callers. Score <= 2 is LOW, <= 4 MEDIUM, else HIGH.
type ExecutionComplexity struct {
	Score int             `json:"score"`
	Level ComplexityLevel `json:"level"`
}

// ComplexityFromScore buckets a raw complexity score.
func ComplexityFromScore(score int) ExecutionComplexity {
	level := ComplexityHigh
	switch {
	case score <= 2:
		level = ComplexityLow
	case score <= 4:
		level = ComplexityMedium
	}
	return ExecutionComplexity{Score: score, Level: level}
}

// Opportunity is a ranked, risk-scored arbitrage candidate produced by one
// scan. Opportunities are immutable after creation and are not retained
// beyond the scan response that carried them.
type Opportunity struct {
	ID                        string              `json:"id"`
	Route                     RouteKind           `json:"route"`
	Ledgers                   []string            `json:"ledgers"` // ordered by trade sequence
	Assets                    []AssetPair         `json:"assets"`  // one pair per hop, same order
	Spread                    SpreadResult        `json:"spread"`
	RecommendedAmount         float64             `json:"recommended_amount"`
	EstimatedNetProfitPercent float64             `json:"estimated_net_profit_percent"`
	Risk                      RiskLevel           `json:"risk"`
	Complexity                ExecutionComplexity `json:"complexity"`
	DetectedAt                time.Time           `json:"detected_at"`
}
