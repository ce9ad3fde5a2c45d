package swap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// expiredGrace is how long an EXPIRED swap stays queryable after its
// timelock, so API clients polling a slow swap see the terminal state at
// least once before eviction.
const expiredGrace = 5 * time.Minute

// Registry tracks every live swap machine by id. Evicted swaps are handed to
// the optional archiver before they disappear.
type Registry struct {
	mu        sync.RWMutex
	swaps     map[string]*Machine
	retention time.Duration
	archiver  domain.SwapArchiver // optional
	logger    *slog.Logger
	clock     func() time.Time
}

// NewRegistry creates a Registry that keeps terminal swaps for the given
// retention window. The archiver may be nil.
func NewRegistry(retention time.Duration, archiver domain.SwapArchiver, logger *slog.Logger) *Registry {
	return &Registry{
		swaps:     make(map[string]*Machine),
		retention: retention,
		archiver:  archiver,
		logger:    logger.With(slog.String("component", "swap_registry")),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a machine under its id.
func (r *Registry) Add(m *Machine) error {
	id := m.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.swaps[id]; ok {
		return fmt.Errorf("register swap %s: %w", id, domain.ErrSwapExists)
	}
	r.swaps[id] = m
	return nil
}

// Get returns the machine for id.
func (r *Registry) Get(id string) (*Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.swaps[id]
	if !ok {
		return nil, fmt.Errorf("swap %s: %w", id, domain.ErrSwapNotFound)
	}
	return m, nil
}

// List returns snapshots of all tracked swaps, newest first.
func (r *Registry) List() []domain.SwapState {
	r.mu.RLock()
	machines := make([]*Machine, 0, len(r.swaps))
	for _, m := range r.swaps {
		machines = append(machines, m)
	}
	r.mu.RUnlock()

	states := make([]domain.SwapState, 0, len(machines))
	for _, m := range machines {
		states = append(states, m.Snapshot())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
	return states
}

// Len returns the number of tracked swaps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.swaps)
}

// SweepExpired evicts swaps that are done and past their keep-alive window:
// COMPLETED and FAILED swaps older than the retention, EXPIRED swaps past the
// grace period. Evicted snapshots go to the archiver when one is configured.
// Returns the evicted snapshots.
func (r *Registry) SweepExpired(ctx context.Context) []domain.SwapState {
	now := r.clock()

	r.mu.Lock()
	evicted := make([]domain.SwapState, 0)
	for id, m := range r.swaps {
		st := m.Snapshot()
		if !st.Status.Terminal() {
			continue
		}
		cutoff := st.UpdatedAt.Add(r.retention)
		if st.Status == domain.SwapExpired {
			cutoff = st.Commitment.TimelockExpiry.Add(expiredGrace)
		}
		if now.After(cutoff) {
			evicted = append(evicted, st)
			delete(r.swaps, id)
		}
	}
	r.mu.Unlock()

	if len(evicted) == 0 {
		return evicted
	}

	if r.archiver != nil {
		if err := r.archiver.ArchiveSwaps(ctx, evicted); err != nil {
			r.logger.WarnContext(ctx, "swap archive failed",
				slog.Int("count", len(evicted)),
				slog.String("error", err.Error()),
			)
		}
	}
	r.logger.InfoContext(ctx, "swept terminal swaps", slog.Int("evicted", len(evicted)))
	return evicted
}

// Run sweeps on the given interval until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "sweeper started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			r.SweepExpired(ctx)
		}
	}
}
