package domain

import "errors"

var (
	// ErrPriceUnavailable is returned when a ledger's spot price cannot be
	// obtained. Recoverable: the caller may retry or skip the ledger for
	// the current scan cycle.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrSpreadDegraded is returned when the spread re-measured at execution
	// time fell below 80% of the spread captured at scan time.
	ErrSpreadDegraded = errors.New("spread degraded since detection")

	// Safety gate rejections. Always surfaced before any swap state exists.
	ErrAmountExceedsLimit = errors.New("amount exceeds configured limit")
	ErrSpreadBelowMinimum = errors.New("spread below minimum profit threshold")
	ErrSlippageTooHigh    = errors.New("slippage bound exceeds configured maximum")
	ErrInvalidRoute       = errors.New("route must name 2 or 3 distinct ledgers")

	// ErrUnsupportedRoute is a planning-time failure: the route needs a
	// wallet on a ledger no address was supplied for.
	ErrUnsupportedRoute = errors.New("unsupported route")

	// ErrStepExecutionFailed marks a collaborator swap or bridge call that
	// failed mid-plan. Prior steps already committed funds; no rollback.
	ErrStepExecutionFailed = errors.New("step execution failed")

	// ErrSwapExpired is returned when the timelock passed before completion.
	ErrSwapExpired = errors.New("swap expired")

	ErrSwapNotFound  = errors.New("swap not found")
	ErrSwapExists    = errors.New("swap already registered")
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrNoPlan        = errors.New("no execution plan attached")
	ErrLockHeld      = errors.New("lock already held")
	ErrNotFound      = errors.New("not found")
)
