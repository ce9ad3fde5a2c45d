package domain

import (
	"context"
	"time"
)

// SwapHistoryStore persists terminal swap records for audit and manual
// remediation. The live registry is in-memory; history is write-mostly.
type SwapHistoryStore interface {
	Insert(ctx context.Context, state SwapState) error
	GetByID(ctx context.Context, id string) (SwapState, error)
	ListRecent(ctx context.Context, limit int) ([]SwapState, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]SwapState, error)
}

// OpportunityStore records opportunities surfaced by scans so operators can
// review what the ranker produced over time.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}
