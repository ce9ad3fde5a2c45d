package swap

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func testRoute() domain.SwapRoute {
	pair := domain.NewAssetPair("USDC", "USDT")
	return domain.SwapRoute{
		Kind:       domain.RouteBilateral,
		Ledgers:    []string{"arbitrum", "polygon"},
		Assets:     []domain.AssetPair{pair, pair.Reversed()},
		FromLedger: "arbitrum",
		ToLedger:   "polygon",
		Amount:     100,
	}
}

func testPlan() []domain.ExecutionStep {
	now := time.Now().UTC()
	return []domain.ExecutionStep{
		{Type: domain.StepSpreadVerification, Status: domain.StepCompleted, CompletedAt: &now},
		{Type: domain.StepWalletPreparation, Ledger: "arbitrum", Status: domain.StepPending},
		{Type: domain.StepSourceSwap, Ledger: "arbitrum", RequiresSignature: true, Status: domain.StepPending},
		{Type: domain.StepBridgeTransfer, Status: domain.StepPending},
		{Type: domain.StepDestinationSwap, Ledger: "polygon", RequiresSignature: true, Status: domain.StepPending},
	}
}

func newTestMachine(t *testing.T, opts ...Option) *Machine {
	t.Helper()
	m, err := New(testRoute(), 0.3, 0.5, domain.SpreadResult{SpreadPercent: 0.6}, 30*time.Minute, opts...)
	require.NoError(t, err)
	return m
}

func TestMachine_New(t *testing.T) {
	m := newTestMachine(t)
	st := m.Snapshot()

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, domain.SwapCreated, st.Status)
	assert.Equal(t, 0.3, st.MinSpreadPercent)
	assert.Equal(t, 0.5, st.MaxSlippagePercent)
	assert.False(t, st.CanRefund)
	assert.WithinDuration(t, st.CreatedAt.Add(30*time.Minute), st.Commitment.TimelockExpiry, time.Second)

	// The hashlock must commit to the secret.
	secret, err := hex.DecodeString(st.Commitment.Secret)
	require.NoError(t, err)
	require.Len(t, secret, 32)
	digest := sha3.NewLegacyKeccak256()
	digest.Write(secret)
	assert.Equal(t, hex.EncodeToString(digest.Sum(nil)), st.Commitment.Hashlock)
}

func TestMachine_Lifecycle(t *testing.T) {
	t.Run("complete every step", func(t *testing.T) {
		m := newTestMachine(t)
		require.NoError(t, m.AttachPlan(testPlan()))
		assert.Equal(t, domain.SwapPlanCreated, m.Status())

		require.NoError(t, m.Begin())
		assert.Equal(t, domain.SwapInProgress, m.Status())

		for i := 1; i < 5; i++ {
			require.NoError(t, m.RecordStepResult(i, true, "ok"))
		}
		st := m.Snapshot()
		assert.Equal(t, domain.SwapCompleted, st.Status)
		assert.Equal(t, 5, st.CompletedSteps())
		assert.False(t, st.CanRefund)
	})

	t.Run("failure stops the plan and flags refund", func(t *testing.T) {
		m := newTestMachine(t)
		require.NoError(t, m.AttachPlan(testPlan()))
		require.NoError(t, m.Begin())

		require.NoError(t, m.RecordStepResult(1, true, "ok"))
		require.NoError(t, m.RecordStepResult(2, false, "tx reverted"))

		st := m.Snapshot()
		assert.Equal(t, domain.SwapFailed, st.Status)
		assert.True(t, st.CanRefund)
		assert.Equal(t, domain.StepFailed, st.Steps[2].Status)
		// Nothing after the failure runs and nothing rolls back.
		assert.Equal(t, domain.StepPending, st.Steps[3].Status)
		assert.Equal(t, domain.StepPending, st.Steps[4].Status)
		assert.Equal(t, domain.StepCompleted, st.Steps[1].Status)

		assert.ErrorIs(t, m.RecordStepResult(3, true, "ok"), domain.ErrInvalidStatus)
	})

	t.Run("steps run in order exactly once", func(t *testing.T) {
		m := newTestMachine(t)
		require.NoError(t, m.AttachPlan(testPlan()))
		require.NoError(t, m.Begin())

		assert.ErrorIs(t, m.RecordStepResult(2, true, "skipped predecessor"), domain.ErrInvalidStatus)
		require.NoError(t, m.RecordStepResult(1, true, "ok"))
		assert.ErrorIs(t, m.RecordStepResult(1, true, "again"), domain.ErrInvalidStatus)
	})

	t.Run("plan rules", func(t *testing.T) {
		m := newTestMachine(t)
		assert.ErrorIs(t, m.AttachPlan(nil), domain.ErrNoPlan)
		assert.ErrorIs(t, m.Begin(), domain.ErrInvalidStatus)

		require.NoError(t, m.AttachPlan(testPlan()))
		assert.ErrorIs(t, m.AttachPlan(testPlan()), domain.ErrInvalidStatus)
	})

	t.Run("force fail records the reason", func(t *testing.T) {
		m := newTestMachine(t)
		require.NoError(t, m.AttachPlan(testPlan()))
		require.NoError(t, m.Fail("spread degraded"))

		st := m.Snapshot()
		assert.Equal(t, domain.SwapFailed, st.Status)
		assert.True(t, st.CanRefund)
		assert.Equal(t, "spread degraded", st.Steps[1].Detail)

		assert.ErrorIs(t, m.Fail("again"), domain.ErrInvalidStatus)
	})

	t.Run("invalid transitions rejected", func(t *testing.T) {
		m := newTestMachine(t)
		assert.ErrorIs(t, m.UpdateStatus(domain.SwapCompleted), domain.ErrInvalidStatus)
		assert.ErrorIs(t, m.UpdateStatus(domain.SwapInProgress), domain.ErrInvalidStatus)
		require.NoError(t, m.UpdateStatus(domain.SwapFailed))
		assert.ErrorIs(t, m.UpdateStatus(domain.SwapExpired), domain.ErrInvalidStatus)
	})
}

func TestMachine_LazyExpiry(t *testing.T) {
	now := time.Now().UTC()
	current := now
	clock := func() time.Time { return current }

	m := newTestMachine(t, WithClock(clock))
	require.NoError(t, m.AttachPlan(testPlan()))
	require.NoError(t, m.Begin())
	require.NoError(t, m.RecordStepResult(1, true, "ok"))

	// Past the timelock the next read flips the swap to EXPIRED.
	current = now.Add(31 * time.Minute)
	assert.Equal(t, domain.SwapExpired, m.Status())

	st := m.Snapshot()
	assert.True(t, st.CanRefund)
	assert.Equal(t, domain.StepCompleted, st.Steps[1].Status)

	assert.ErrorIs(t, m.RecordStepResult(2, true, "late"), domain.ErrInvalidStatus)
}

func TestMachine_CompletedSwapDoesNotExpire(t *testing.T) {
	now := time.Now().UTC()
	current := now
	m := newTestMachine(t, WithClock(func() time.Time { return current }))

	require.NoError(t, m.AttachPlan(testPlan()))
	require.NoError(t, m.Begin())
	for i := 1; i < 5; i++ {
		require.NoError(t, m.RecordStepResult(i, true, "ok"))
	}

	current = now.Add(2 * time.Hour)
	assert.Equal(t, domain.SwapCompleted, m.Status())
	assert.False(t, m.Snapshot().CanRefund)
}
