package swap

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func testLoggerSwap() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingArchiver struct {
	archived []domain.SwapState
	err      error
}

func (a *recordingArchiver) ArchiveSwaps(_ context.Context, swaps []domain.SwapState) error {
	a.archived = append(a.archived, swaps...)
	return a.err
}

func completeMachine(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.AttachPlan(testPlan()))
	require.NoError(t, m.Begin())
	for i := 1; i < 5; i++ {
		require.NoError(t, m.RecordStepResult(i, true, "ok"))
	}
}

func TestRegistry_AddGetList(t *testing.T) {
	r := NewRegistry(time.Hour, nil, testLoggerSwap())

	m1 := newTestMachine(t)
	require.NoError(t, r.Add(m1))
	assert.ErrorIs(t, r.Add(m1), domain.ErrSwapExists)

	got, err := r.Get(m1.ID())
	require.NoError(t, err)
	assert.Equal(t, m1.ID(), got.ID())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSwapNotFound)

	// List is newest first.
	now := time.Now().UTC()
	later := now.Add(time.Minute)
	m2 := newTestMachine(t, WithClock(func() time.Time { return later }))
	require.NoError(t, r.Add(m2))

	states := r.List()
	require.Len(t, states, 2)
	assert.Equal(t, m2.ID(), states[0].ID)
	assert.Equal(t, m1.ID(), states[1].ID)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal swaps leave after retention", func(t *testing.T) {
		now := time.Now().UTC()
		current := now
		clock := func() time.Time { return current }

		archiver := &recordingArchiver{}
		r := NewRegistry(time.Hour, archiver, testLoggerSwap())
		r.clock = clock

		done := newTestMachine(t, WithClock(clock))
		completeMachine(t, done)
		live, err := New(testRoute(), 0.3, 0.5, domain.SpreadResult{}, 2*time.Hour, WithClock(clock))
		require.NoError(t, err)
		require.NoError(t, r.Add(done))
		require.NoError(t, r.Add(live))

		// Inside the retention window nothing moves.
		current = now.Add(30 * time.Minute)
		assert.Empty(t, r.SweepExpired(ctx))
		assert.Equal(t, 2, r.Len())

		// Past retention the completed swap is evicted and archived; the
		// live one stays.
		current = now.Add(61 * time.Minute)
		evicted := r.SweepExpired(ctx)
		require.Len(t, evicted, 1)
		assert.Equal(t, done.ID(), evicted[0].ID)
		require.Len(t, archiver.archived, 1)
		assert.Equal(t, done.ID(), archiver.archived[0].ID)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("expired swaps keep a grace window", func(t *testing.T) {
		now := time.Now().UTC()
		current := now
		clock := func() time.Time { return current }

		r := NewRegistry(time.Hour, nil, testLoggerSwap())
		r.clock = clock

		m := newTestMachine(t, WithClock(clock)) // 30m timelock
		require.NoError(t, r.Add(m))

		// Just past the timelock: EXPIRED but still queryable.
		current = now.Add(31 * time.Minute)
		assert.Empty(t, r.SweepExpired(ctx))
		got, err := r.Get(m.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.SwapExpired, got.Status())

		// Past the grace period it is gone.
		current = now.Add(36 * time.Minute)
		evicted := r.SweepExpired(ctx)
		require.Len(t, evicted, 1)
		assert.True(t, evicted[0].CanRefund)
		_, err = r.Get(m.ID())
		assert.ErrorIs(t, err, domain.ErrSwapNotFound)
	})

	t.Run("archiver failure does not block eviction", func(t *testing.T) {
		now := time.Now().UTC()
		current := now.Add(2 * time.Hour)

		archiver := &recordingArchiver{err: context.DeadlineExceeded}
		r := NewRegistry(time.Hour, archiver, testLoggerSwap())
		r.clock = func() time.Time { return current }

		frozen := now
		m := newTestMachine(t, WithClock(func() time.Time { return frozen }))
		completeMachine(t, m)
		require.NoError(t, r.Add(m))

		evicted := r.SweepExpired(ctx)
		require.Len(t, evicted, 1)
		assert.Zero(t, r.Len())
	})
}
