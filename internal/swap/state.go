// Package swap holds the per-swap state machine and the in-memory registry
// that tracks every live attempt. The machine owns all mutation of a swap's
// lifecycle; callers only ever see value snapshots.
package swap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// validTransitions encodes the legal status graph. Terminal states have no
// outgoing edges.
var validTransitions = map[domain.SwapStatus][]domain.SwapStatus{
	domain.SwapCreated:     {domain.SwapPlanCreated, domain.SwapFailed, domain.SwapExpired},
	domain.SwapPlanCreated: {domain.SwapInProgress, domain.SwapFailed, domain.SwapExpired},
	domain.SwapInProgress:  {domain.SwapCompleted, domain.SwapFailed, domain.SwapExpired},
}

// Machine is the state machine for a single swap attempt. All methods are
// safe for concurrent use; the coordinator drives steps from one goroutine
// while status reads arrive from the API.
type Machine struct {
	mu    sync.Mutex
	st    domain.SwapState
	clock func() time.Time
}

// Option customizes a Machine at construction.
type Option func(*Machine)

// WithClock replaces the machine's time source. Tests use this to force
// timelock expiry without sleeping.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) { m.clock = clock }
}

// New creates a swap in CREATED status with a fresh hashlock commitment: a
// random 32-byte secret, its Keccak-256 hash, and a timelock of now plus the
// given timeout.
func New(route domain.SwapRoute, minSpread, maxSlippage float64, initial domain.SpreadResult, timeout time.Duration, opts ...Option) (*Machine, error) {
	m := &Machine{clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(m)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("draw swap secret: %w", err)
	}
	digest := sha3.NewLegacyKeccak256()
	digest.Write(secret)

	now := m.clock()
	m.st = domain.SwapState{
		ID:                 uuid.New().String(),
		Route:              route,
		MinSpreadPercent:   minSpread,
		MaxSlippagePercent: maxSlippage,
		Commitment: domain.Commitment{
			Secret:         hex.EncodeToString(secret),
			Hashlock:       hex.EncodeToString(digest.Sum(nil)),
			TimelockExpiry: now.Add(timeout),
		},
		Status:        domain.SwapCreated,
		InitialSpread: initial,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return m, nil
}

// ID returns the swap's identifier. Immutable after construction.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ID
}

// AttachPlan stores the execution plan and moves the swap to PLAN_CREATED.
// Only legal from CREATED.
func (m *Machine) AttachPlan(steps []domain.ExecutionStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if m.st.Status != domain.SwapCreated {
		return fmt.Errorf("attach plan in %s: %w", m.st.Status, domain.ErrInvalidStatus)
	}
	if len(steps) == 0 {
		return fmt.Errorf("attach plan: %w", domain.ErrNoPlan)
	}

	m.st.Steps = append([]domain.ExecutionStep(nil), steps...)
	m.st.Status = domain.SwapPlanCreated
	m.touchLocked()
	return nil
}

// Begin moves the swap to IN_PROGRESS. Called once, before the first pending
// step executes.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if m.st.Status != domain.SwapPlanCreated {
		return fmt.Errorf("begin in %s: %w", m.st.Status, domain.ErrInvalidStatus)
	}
	m.st.Status = domain.SwapInProgress
	m.touchLocked()
	return nil
}

// RecordStepResult marks step idx completed or failed. The step's predecessor
// must already be completed. Completing the last step finishes the swap;
// failing any step fails it, and later steps stay PENDING since nothing runs
// after a failure and nothing rolls back.
func (m *Machine) RecordStepResult(idx int, success bool, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if m.st.Status != domain.SwapInProgress {
		return fmt.Errorf("record step in %s: %w", m.st.Status, domain.ErrInvalidStatus)
	}
	if idx < 0 || idx >= len(m.st.Steps) {
		return fmt.Errorf("record step: index %d out of range", idx)
	}
	if m.st.Steps[idx].Status != domain.StepPending {
		return fmt.Errorf("record step %d already %s: %w", idx, m.st.Steps[idx].Status, domain.ErrInvalidStatus)
	}
	if idx > 0 && m.st.Steps[idx-1].Status != domain.StepCompleted {
		return fmt.Errorf("record step %d before predecessor completed: %w", idx, domain.ErrInvalidStatus)
	}

	now := m.clock()
	m.st.Steps[idx].Detail = detail
	if success {
		m.st.Steps[idx].Status = domain.StepCompleted
		m.st.Steps[idx].CompletedAt = &now
		if idx == len(m.st.Steps)-1 {
			m.st.Status = domain.SwapCompleted
		}
	} else {
		m.st.Steps[idx].Status = domain.StepFailed
		m.st.Status = domain.SwapFailed
		m.st.CanRefund = true
	}
	m.touchLocked()
	return nil
}

// Fail force-fails a non-terminal swap, recording the reason on the swap.
// Used when execution aborts outside a specific step, for example a degraded
// spread or a lost distributed lock.
func (m *Machine) Fail(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if m.st.Status.Terminal() {
		return fmt.Errorf("fail in %s: %w", m.st.Status, domain.ErrInvalidStatus)
	}
	m.st.Status = domain.SwapFailed
	m.st.CanRefund = true
	if len(m.st.Steps) > 0 && reason != "" {
		for i := range m.st.Steps {
			if m.st.Steps[i].Status == domain.StepPending {
				m.st.Steps[i].Detail = reason
				break
			}
		}
	}
	m.touchLocked()
	return nil
}

// MarkSimulated flags the swap as a dry run. Simulated swaps never touch a
// ledger and are not registered for execution.
func (m *Machine) MarkSimulated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.Simulated = true
	m.touchLocked()
}

// UpdateStatus applies an explicit status transition, validating it against
// the legal graph.
func (m *Machine) UpdateStatus(to domain.SwapStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if !canTransition(m.st.Status, to) {
		return fmt.Errorf("transition %s -> %s: %w", m.st.Status, to, domain.ErrInvalidStatus)
	}
	m.st.Status = to
	if to == domain.SwapFailed || to == domain.SwapExpired {
		m.st.CanRefund = true
	}
	m.touchLocked()
	return nil
}

// Status returns the current status after applying lazy expiry: a swap whose
// timelock passed while still non-terminal flips to EXPIRED on read.
func (m *Machine) Status() domain.SwapStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.st.Status
}

// Snapshot returns a deep value copy of the swap state, expiry applied.
func (m *Machine) Snapshot() domain.SwapState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	cp := m.st
	cp.Steps = append([]domain.ExecutionStep(nil), m.st.Steps...)
	cp.Route.Ledgers = append([]string(nil), m.st.Route.Ledgers...)
	cp.Route.Assets = append([]domain.AssetPair(nil), m.st.Route.Assets...)
	return cp
}

// expireLocked flips a non-terminal swap to EXPIRED once the timelock passes.
// Callers hold the mutex.
func (m *Machine) expireLocked() {
	if m.st.Status.Terminal() {
		return
	}
	if m.clock().After(m.st.Commitment.TimelockExpiry) {
		m.st.Status = domain.SwapExpired
		m.st.CanRefund = true
		m.touchLocked()
	}
}

func (m *Machine) touchLocked() {
	m.st.UpdatedAt = m.clock()
}

// canTransition reports whether from may legally move to to.
func canTransition(from, to domain.SwapStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
