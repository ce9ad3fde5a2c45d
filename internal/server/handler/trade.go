package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// TradeValidator runs the safety gate against a proposed trade.
type TradeValidator interface {
	ValidateTrade(ctx context.Context, req domain.TradeRequest) error
}

// TradeHandler serves pre-trade validation.
type TradeHandler struct {
	validator TradeValidator
	logger    *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(validator TradeValidator, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{validator: validator, logger: logger}
}

// validateRequest is the JSON body for POST /api/trades/validate.
type validateRequest struct {
	Amount                float64  `json:"amount"`
	ExpectedSpreadPercent float64  `json:"expected_spread_percent"`
	MaxSlippagePercent    float64  `json:"max_slippage_percent"`
	Ledgers               []string `json:"ledgers"`
}

// Validate checks a proposed trade against the safety gate without creating
// any swap state.
// POST /api/trades/validate
func (h *TradeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.validator.ValidateTrade(r.Context(), domain.TradeRequest{
		Amount:                req.Amount,
		ExpectedSpreadPercent: req.ExpectedSpreadPercent,
		MaxSlippagePercent:    req.MaxSlippagePercent,
		Ledgers:               req.Ledgers,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":  false,
			"reason": err.Error(),
			"code":   gateCode(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// gateCode maps gate rejections to stable machine-readable codes.
func gateCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAmountExceedsLimit):
		return "amount_exceeds_limit"
	case errors.Is(err, domain.ErrSpreadBelowMinimum):
		return "spread_below_minimum"
	case errors.Is(err, domain.ErrSlippageTooHigh):
		return "slippage_too_high"
	case errors.Is(err, domain.ErrInvalidRoute):
		return "invalid_route"
	default:
		return "rejected"
	}
}
