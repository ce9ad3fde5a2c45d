package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/arbitrage"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/swap"
)

// swapsChannel carries swap lifecycle events to live subscribers.
const swapsChannel = "swaps"

// degradedSpreadRatio is the fraction of the captured spread the re-measured
// spread must still clear before execution proceeds.
const degradedSpreadRatio = 0.8

// executorSession is the logical session used when resolving wallets. One
// engine instance runs one session.
const executorSession = "default"

// Notifier is the slice of the notification system the coordinator uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SwapService coordinates the full execution path: safety gate, spread
// re-verification, planning, and step-by-step execution through the ledger
// gateway. Steps run at most once and never roll back; a failure strands
// funds where they are and flags the swap refundable.
type SwapService struct {
	gate      *arbitrage.Gate
	evaluator *arbitrage.Evaluator
	planner   *arbitrage.Planner
	gateway   domain.LedgerGateway
	wallets   domain.WalletDirectory
	registry  *swap.Registry
	locks     domain.LockManager      // optional
	history   domain.SwapHistoryStore // optional
	bus       domain.SignalBus        // optional
	notifier  Notifier                // optional
	safety    domain.SafetyConfig
	timeout   time.Duration
	logger    *slog.Logger
}

// SwapServiceDeps bundles the collaborators for NewSwapService. Locks,
// history, bus, and notifier may be nil.
type SwapServiceDeps struct {
	Gate      *arbitrage.Gate
	Evaluator *arbitrage.Evaluator
	Planner   *arbitrage.Planner
	Gateway   domain.LedgerGateway
	Wallets   domain.WalletDirectory
	Registry  *swap.Registry
	Locks     domain.LockManager
	History   domain.SwapHistoryStore
	Bus       domain.SignalBus
	Notifier  Notifier
	Safety    domain.SafetyConfig
	Timeout   time.Duration
}

// NewSwapService creates a SwapService.
func NewSwapService(deps SwapServiceDeps, logger *slog.Logger) *SwapService {
	return &SwapService{
		gate:      deps.Gate,
		evaluator: deps.Evaluator,
		planner:   deps.Planner,
		gateway:   deps.Gateway,
		wallets:   deps.Wallets,
		registry:  deps.Registry,
		locks:     deps.Locks,
		history:   deps.History,
		bus:       deps.Bus,
		notifier:  deps.Notifier,
		safety:    deps.Safety,
		timeout:   deps.Timeout,
		logger:    logger.With(slog.String("component", "swap_service")),
	}
}

// ValidateTrade runs the safety gate without creating any swap state.
func (s *SwapService) ValidateTrade(_ context.Context, req domain.TradeRequest) error {
	return s.gate.Check(req)
}

// ExecuteOpportunity turns an opportunity into a swap. The gate runs first,
// then the spread is re-measured; execution proceeds only when the fresh
// spread still clears 80% of the captured one. With dryRun the full plan is
// built and walked through deterministic simulated outcomes, nothing touches
// a ledger, and the swap is not registered.
func (s *SwapService) ExecuteOpportunity(ctx context.Context, opp domain.Opportunity, amount float64, dryRun bool) (domain.SwapState, error) {
	if amount <= 0 {
		amount = opp.RecommendedAmount
	}

	req := domain.TradeRequest{
		Amount:                amount,
		ExpectedSpreadPercent: opp.Spread.SpreadPercent,
		MaxSlippagePercent:    s.safety.MaxSlippagePercent,
		Ledgers:               opp.Ledgers,
	}
	if err := s.gate.Check(req); err != nil {
		return domain.SwapState{}, err
	}

	fresh, err := s.evaluator.Evaluate(ctx, opp.Spread.Pair, opp.Spread.Ledgers)
	if err != nil {
		return domain.SwapState{}, fmt.Errorf("re-verify spread: %w", err)
	}
	if fresh.SpreadPercent < degradedSpreadRatio*opp.Spread.SpreadPercent {
		return domain.SwapState{}, fmt.Errorf(
			"spread %.4f%% fell below 80%% of captured %.4f%%: %w",
			fresh.SpreadPercent, opp.Spread.SpreadPercent, domain.ErrSpreadDegraded,
		)
	}

	wallets := make(map[string]string, len(opp.Ledgers))
	for _, ledger := range opp.Ledgers {
		addr, err := s.wallets.WalletAddress(ctx, executorSession, ledger)
		if err != nil {
			return domain.SwapState{}, fmt.Errorf("resolve wallet on %s: %w: %v", ledger, domain.ErrUnsupportedRoute, err)
		}
		wallets[ledger] = addr
	}

	plan, err := s.planner.BuildPlan(opp, wallets)
	if err != nil {
		return domain.SwapState{}, err
	}

	route := domain.SwapRoute{
		Kind:       opp.Route,
		Ledgers:    opp.Ledgers,
		Assets:     opp.Assets,
		FromLedger: opp.Ledgers[0],
		ToLedger:   opp.Ledgers[len(opp.Ledgers)-1],
		Amount:     amount,
	}

	m, err := swap.New(route, s.safety.MinProfitThresholdPercent, s.safety.MaxSlippagePercent, fresh, s.timeout)
	if err != nil {
		return domain.SwapState{}, err
	}
	if err := m.AttachPlan(plan); err != nil {
		return domain.SwapState{}, err
	}

	if dryRun {
		return s.simulate(ctx, m, opp)
	}

	if err := s.registry.Add(m); err != nil {
		return domain.SwapState{}, err
	}

	// Execution outlives the HTTP request that triggered it. The deadline is
	// the swap's own timelock.
	driveCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), m.Snapshot().Commitment.TimelockExpiry)
	go func() {
		defer cancel()
		s.drive(driveCtx, m, wallets)
	}()

	return m.Snapshot(), nil
}

// GetSwapStatus returns the swap's current state. Live swaps come from the
// registry; swept swaps fall back to the history store when one is wired.
func (s *SwapService) GetSwapStatus(ctx context.Context, id string) (domain.SwapState, error) {
	if m, err := s.registry.Get(id); err == nil {
		return m.Snapshot(), nil
	}
	if s.history != nil {
		return s.history.GetByID(ctx, id)
	}
	return domain.SwapState{}, fmt.Errorf("swap %s: %w", id, domain.ErrSwapNotFound)
}

// ListSwaps returns all live swaps, newest first.
func (s *SwapService) ListSwaps(_ context.Context) []domain.SwapState {
	return s.registry.List()
}

// simulate walks the plan with outcomes derived deterministically from the
// opportunity id, so repeated dry runs of the same opportunity agree.
func (s *SwapService) simulate(ctx context.Context, m *swap.Machine, opp domain.Opportunity) (domain.SwapState, error) {
	m.MarkSimulated()
	if err := m.Begin(); err != nil {
		return domain.SwapState{}, err
	}

	steps := m.Snapshot().Steps
	failAt := simulatedFailureStep(opp.ID, len(steps))
	for i, step := range steps {
		if step.Status != domain.StepPending {
			continue
		}
		if i == failAt {
			if err := m.RecordStepResult(i, false, "simulated failure"); err != nil {
				return domain.SwapState{}, err
			}
			break
		}
		if err := m.RecordStepResult(i, true, fmt.Sprintf("simulated %s", step.Type)); err != nil {
			return domain.SwapState{}, err
		}
	}

	state := m.Snapshot()
	s.logger.InfoContext(ctx, "dry run complete",
		slog.String("swap_id", state.ID),
		slog.String("status", string(state.Status)),
	)
	return state, nil
}

// simulatedFailureStep picks the failing step index for a dry run, or -1 for
// a clean pass. Roughly one opportunity in eight fails its simulation.
func simulatedFailureStep(oppID string, steps int) int {
	h := fnv.New32a()
	h.Write([]byte(oppID))
	sum := h.Sum32()
	if sum%8 != 0 || steps < 2 {
		return -1
	}
	return 1 + int(sum/8)%(steps-1)
}

// drive executes the plan step by step. It holds the distributed lock for
// the swap id so exactly one executor runs the plan across instances.
func (s *SwapService) drive(ctx context.Context, m *swap.Machine, wallets map[string]string) {
	state := m.Snapshot()
	logger := s.logger.With(slog.String("swap_id", state.ID))

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "swap:"+state.ID, time.Until(state.Commitment.TimelockExpiry))
		if err != nil {
			logger.ErrorContext(ctx, "lock acquisition failed", slog.String("error", err.Error()))
			_ = m.Fail("executor lock unavailable")
			s.finish(ctx, m, logger)
			return
		}
		defer unlock()
	}

	if err := m.Begin(); err != nil {
		logger.ErrorContext(ctx, "cannot begin execution", slog.String("error", err.Error()))
		s.finish(ctx, m, logger)
		return
	}

	amount := state.Route.Amount
	for i, step := range m.Snapshot().Steps {
		if step.Status != domain.StepPending {
			continue
		}
		if m.Status() != domain.SwapInProgress {
			break // expired or failed between steps
		}

		detail, amountOut, ok := s.executeStep(ctx, step, state.Route, wallets, amount)
		if err := m.RecordStepResult(i, ok, detail); err != nil {
			logger.ErrorContext(ctx, "record step failed",
				slog.Int("step", i),
				slog.String("error", err.Error()),
			)
			break
		}
		if !ok {
			logger.WarnContext(ctx, "step failed, execution stopped",
				slog.Int("step", i),
				slog.String("type", string(step.Type)),
				slog.String("detail", detail),
			)
			break
		}
		if amountOut > 0 {
			amount = amountOut
		}
	}

	s.finish(ctx, m, logger)
}

// executeStep performs one plan step through the gateway. Returns the detail
// string, the output amount (0 when the step moves nothing), and success.
func (s *SwapService) executeStep(ctx context.Context, step domain.ExecutionStep, route domain.SwapRoute, wallets map[string]string, amount float64) (string, float64, bool) {
	switch step.Type {
	case domain.StepWalletPreparation, domain.StepBridgePreparation:
		balances, err := s.gateway.Balances(ctx, step.Ledger, wallets[step.Ledger])
		if err != nil {
			return fmt.Sprintf("balance check failed: %v", err), 0, false
		}
		return fmt.Sprintf("wallet ready, %d assets visible", len(balances)), 0, true

	case domain.StepSourceSwap, domain.StepDestinationSwap:
		order := domain.SwapOrder{
			Pair:         step.Pair,
			AmountIn:     amount,
			MinAmountOut: amount * (1 - s.safety.MaxSlippagePercent/100),
			Wallet:       wallets[step.Ledger],
		}
		rcpt, err := s.gateway.ExecuteSwap(ctx, step.Ledger, order)
		if err != nil {
			return fmt.Sprintf("%v: %v", domain.ErrStepExecutionFailed, err), 0, false
		}
		if !rcpt.Success {
			return fmt.Sprintf("%v: tx %s reverted", domain.ErrStepExecutionFailed, rcpt.TxRef), 0, false
		}
		return rcpt.TxRef, rcpt.AmountOut, true

	case domain.StepBridgeTransfer, domain.StepBridgeExecution:
		asset := bridgeAsset(route)
		rcpt, err := s.gateway.BridgeTransfer(ctx, route.FromLedger, route.ToLedger, asset, amount)
		if err != nil {
			return fmt.Sprintf("%v: %v", domain.ErrStepExecutionFailed, err), 0, false
		}
		if !rcpt.Success {
			return fmt.Sprintf("%v: tx %s reverted", domain.ErrStepExecutionFailed, rcpt.TxRef), 0, false
		}
		return rcpt.TxRef, rcpt.AmountOut, true

	default:
		// Spread verification is pre-completed by the planner; anything else
		// unknown is a plan corruption.
		return fmt.Sprintf("unexpected step type %s", step.Type), 0, false
	}
}

// bridgeAsset picks the asset that crosses the bridge: the quote produced by
// the swap immediately before the transfer.
func bridgeAsset(route domain.SwapRoute) string {
	if len(route.Assets) == 0 {
		return ""
	}
	return route.Assets[0].Quote
}

// finish persists the terminal snapshot, publishes the lifecycle event, and
// notifies operators.
func (s *SwapService) finish(ctx context.Context, m *swap.Machine, logger *slog.Logger) {
	state := m.Snapshot()

	if s.history != nil && state.Status.Terminal() {
		if err := s.history.Insert(ctx, state); err != nil {
			logger.WarnContext(ctx, "persist swap history failed", slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		if payload, err := json.Marshal(state); err == nil {
			if err := s.bus.Publish(ctx, swapsChannel, payload); err != nil {
				logger.WarnContext(ctx, "publish swap event failed", slog.String("error", err.Error()))
			}
			if err := s.bus.StreamAppend(ctx, swapsChannel, payload); err != nil {
				logger.WarnContext(ctx, "stream swap event failed", slog.String("error", err.Error()))
			}
		}
	}

	s.notifyTerminal(ctx, state, logger)

	logger.InfoContext(ctx, "execution finished",
		slog.String("status", string(state.Status)),
		slog.Int("completed_steps", state.CompletedSteps()),
		slog.Bool("can_refund", state.CanRefund),
	)
}

func (s *SwapService) notifyTerminal(ctx context.Context, state domain.SwapState, logger *slog.Logger) {
	if s.notifier == nil || !state.Status.Terminal() {
		return
	}

	var event, title string
	switch state.Status {
	case domain.SwapCompleted:
		event, title = "swap_completed", "Swap completed"
	case domain.SwapFailed:
		event, title = "swap_failed", "Swap failed"
	case domain.SwapExpired:
		event, title = "swap_expired", "Swap expired"
	default:
		return
	}

	msg := fmt.Sprintf("%s %s -> %s amount %.2f (%d/%d steps)",
		state.ID, state.Route.FromLedger, state.Route.ToLedger,
		state.Route.Amount, state.CompletedSteps(), len(state.Steps))
	if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
		logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}

