package domain

import "time"

// SwapStatus is the overall state of one in-flight arbitrage attempt.
type SwapStatus string

const (
	SwapCreated     SwapStatus = "CREATED"
	SwapPlanCreated SwapStatus = "PLAN_CREATED"
	SwapInProgress  SwapStatus = "IN_PROGRESS"
	SwapCompleted   SwapStatus = "COMPLETED"
	SwapFailed      SwapStatus = "FAILED"
	SwapExpired     SwapStatus = "EXPIRED"
)

// Terminal reports whether no further transitions are legal from s.
func (s SwapStatus) Terminal() bool {
	return s == SwapCompleted || s == SwapFailed || s == SwapExpired
}

// Commitment is the hashlock/timelock bookkeeping attached to a swap. The
// hashlock is Keccak-256 of a freshly drawn secret. It is advisory only:
// nothing on-ledger enforces it, but the timelock drives expiry tracking
// and refund eligibility.
type Commitment struct {
	Secret         string    `json:"-"` // hex, never serialized outward
	Hashlock       string    `json:"hashlock"`
	TimelockExpiry time.Time `json:"timelock_expiry"`
}

// SwapRoute describes what a swap is trying to do: where funds start, where
// they end, and how much moves.
type SwapRoute struct {
	Kind       RouteKind   `json:"kind"`
	Ledgers    []string    `json:"ledgers"` // trade order
	Assets     []AssetPair `json:"assets"`  // one pair per hop
	FromLedger string      `json:"from_ledger"`
	ToLedger   string      `json:"to_ledger"`
	Amount     float64     `json:"amount"`
}

// SwapState is a snapshot of one arbitrage attempt: route, safety bounds,
// commitment, plan steps, and overall status. Snapshots are value copies;
// all mutation happens inside the swap state machine, never on a snapshot.
type SwapState struct {
	ID                 string          `json:"id"`
	Route              SwapRoute       `json:"route"`
	MinSpreadPercent   float64         `json:"min_spread_percent"`
	MaxSlippagePercent float64         `json:"max_slippage_percent"`
	Commitment         Commitment      `json:"commitment"`
	Steps              []ExecutionStep `json:"steps"`
	Status             SwapStatus      `json:"status"`
	InitialSpread      SpreadResult    `json:"initial_spread"`
	CanRefund          bool            `json:"can_refund"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Simulated          bool            `json:"simulated,omitempty"`
}

// CompletedSteps counts steps that have finished successfully.
func (s SwapState) CompletedSteps() int {
	n := 0
	for _, st := range s.Steps {
		if st.Status == StepCompleted {
			n++
		}
	}
	return n
}
