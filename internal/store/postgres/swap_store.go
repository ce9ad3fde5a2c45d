package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// SwapStore implements domain.SwapHistoryStore using PostgreSQL. Scalar
// columns hold the fields operators filter on; the full snapshot rides along
// as JSONB.
type SwapStore struct {
	pool *pgxpool.Pool
}

// NewSwapStore creates a SwapStore backed by the given connection pool.
func NewSwapStore(pool *pgxpool.Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// Insert stores a terminal swap record. Re-inserting the same id overwrites
// the previous row so retried persistence stays idempotent.
func (s *SwapStore) Insert(ctx context.Context, state domain.SwapState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("postgres: marshal swap %s: %w", state.ID, err)
	}

	const query = `
		INSERT INTO swap_history (
			id, route_kind, from_ledger, to_ledger, amount,
			min_spread_percent, max_slippage_percent,
			hashlock, timelock_expiry, status, can_refund, simulated,
			state, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			status     = EXCLUDED.status,
			can_refund = EXCLUDED.can_refund,
			state      = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, query,
		state.ID, string(state.Route.Kind), state.Route.FromLedger, state.Route.ToLedger, state.Route.Amount,
		state.MinSpreadPercent, state.MaxSlippagePercent,
		state.Commitment.Hashlock, state.Commitment.TimelockExpiry, string(state.Status), state.CanRefund, state.Simulated,
		payload, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert swap %s: %w", state.ID, err)
	}
	return nil
}

// GetByID loads one swap record. Returns domain.ErrSwapNotFound when absent.
func (s *SwapStore) GetByID(ctx context.Context, id string) (domain.SwapState, error) {
	const query = `SELECT state FROM swap_history WHERE id = $1`

	var payload []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SwapState{}, domain.ErrSwapNotFound
		}
		return domain.SwapState{}, fmt.Errorf("postgres: get swap %s: %w", id, err)
	}

	var state domain.SwapState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.SwapState{}, fmt.Errorf("postgres: unmarshal swap %s: %w", id, err)
	}
	return state, nil
}

// ListRecent returns the most recent swap records ordered by creation time.
func (s *SwapStore) ListRecent(ctx context.Context, limit int) ([]domain.SwapState, error) {
	query := `SELECT state FROM swap_history ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	return s.scanStates(ctx, query, args...)
}

// ListBefore returns swap records created before the cutoff, oldest first,
// used by retention jobs.
func (s *SwapStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SwapState, error) {
	query := `SELECT state FROM swap_history WHERE created_at < $1 ORDER BY created_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.scanStates(ctx, query, args...)
}

func (s *SwapStore) scanStates(ctx context.Context, query string, args ...any) ([]domain.SwapState, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list swaps: %w", err)
	}
	defer rows.Close()

	var states []domain.SwapState
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan swap: %w", err)
		}
		var state domain.SwapState
		if err := json.Unmarshal(payload, &state); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal swap: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list swaps: %w", err)
	}
	return states, nil
}

// Compile-time interface check.
var _ domain.SwapHistoryStore = (*SwapStore)(nil)
