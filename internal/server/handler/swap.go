package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// SwapCoordinator is the slice of the swap service the handler needs.
type SwapCoordinator interface {
	ExecuteOpportunity(ctx context.Context, opp domain.Opportunity, amount float64, dryRun bool) (domain.SwapState, error)
	GetSwapStatus(ctx context.Context, id string) (domain.SwapState, error)
	ListSwaps(ctx context.Context) []domain.SwapState
}

// SwapHandler serves swap creation and status queries.
type SwapHandler struct {
	coordinator SwapCoordinator
	history     domain.SwapHistoryStore // optional
	logger      *slog.Logger
}

// NewSwapHandler creates a SwapHandler. History may be nil.
func NewSwapHandler(coordinator SwapCoordinator, history domain.SwapHistoryStore, logger *slog.Logger) *SwapHandler {
	return &SwapHandler{coordinator: coordinator, history: history, logger: logger}
}

// createSwapRequest is the JSON body for POST /api/swaps. The opportunity is
// passed back verbatim from a scan response; amount falls back to the
// opportunity's recommendation when zero.
type createSwapRequest struct {
	Opportunity domain.Opportunity `json:"opportunity"`
	Amount      float64            `json:"amount"`
	DryRun      bool               `json:"dry_run"`
}

// CreateSwap validates and launches (or dry-runs) execution of an
// opportunity.
// POST /api/swaps
func (h *SwapHandler) CreateSwap(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "create_swap")

	var req createSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Opportunity.ID == "" || len(req.Opportunity.Ledgers) == 0 {
		writeError(w, http.StatusBadRequest, "opportunity is required")
		return
	}

	state, err := h.coordinator.ExecuteOpportunity(r.Context(), req.Opportunity, req.Amount, req.DryRun)
	if err != nil {
		status := swapErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.ErrorContext(r.Context(), "swap creation failed",
				slog.String("opportunity_id", req.Opportunity.ID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

// ListSwaps returns all live swaps.
// GET /api/swaps
func (h *SwapHandler) ListSwaps(w http.ResponseWriter, r *http.Request) {
	swaps := h.coordinator.ListSwaps(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(swaps),
		"swaps": swaps,
	})
}

// GetSwap returns one swap's current state.
// GET /api/swaps/{id}
func (h *SwapHandler) GetSwap(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "swap id is required")
		return
	}

	state, err := h.coordinator.GetSwapStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSwapNotFound) {
			writeError(w, http.StatusNotFound, "swap not found")
			return
		}
		logHandler(h.logger, "get_swap").ErrorContext(r.Context(), "status lookup failed",
			slog.String("swap_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load swap")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// ListHistory returns persisted terminal swaps, newest first.
// GET /api/swaps/history
func (h *SwapHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "swap history is not configured")
		return
	}

	swaps, err := h.history.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		logHandler(h.logger, "swap_history").ErrorContext(r.Context(), "list failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list swap history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(swaps),
		"swaps": swaps,
	})
}

// swapErrorStatus maps coordinator failures to HTTP statuses: gate and route
// rejections are client errors, degraded spread is a conflict with market
// reality, everything else is upstream trouble.
func swapErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAmountExceedsLimit),
		errors.Is(err, domain.ErrSpreadBelowMinimum),
		errors.Is(err, domain.ErrSlippageTooHigh),
		errors.Is(err, domain.ErrInvalidRoute),
		errors.Is(err, domain.ErrUnsupportedRoute):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSpreadDegraded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSwapExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
