package domain

import "time"

// StepType identifies what a single plan step does.
type StepType string

const (
	StepSpreadVerification StepType = "SPREAD_VERIFICATION"
	StepWalletPreparation  StepType = "WALLET_PREPARATION"
	StepBridgePreparation  StepType = "BRIDGE_PREPARATION"
	StepSourceSwap         StepType = "SOURCE_SWAP"
	StepBridgeTransfer     StepType = "BRIDGE_TRANSFER"
	StepBridgeExecution    StepType = "BRIDGE_EXECUTION"
	StepDestinationSwap    StepType = "DESTINATION_SWAP"
)

// StepStatus is the lifecycle state of one execution step.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
)

// ExecutionStep is one ordered unit of an execution plan. Position in the
// plan is meaningful: a step may not start until its predecessor completed.
type ExecutionStep struct {
	Type              StepType   `json:"type"`
	Ledger            string     `json:"ledger"` // chain affinity; empty for cross-ledger transfers
	Pair              AssetPair  `json:"pair,omitempty"`
	RequiresSignature bool       `json:"requires_signature"`
	Status            StepStatus `json:"status"`
	Detail            string     `json:"detail,omitempty"` // tx ref or failure reason
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// IsSwap reports whether the step performs an on-ledger swap.
func (s ExecutionStep) IsSwap() bool {
	return s.Type == StepSourceSwap || s.Type == StepDestinationSwap
}

// IsTransfer reports whether the step moves funds between ledgers.
func (s ExecutionStep) IsTransfer() bool {
	return s.Type == StepBridgeTransfer || s.Type == StepBridgeExecution
}
