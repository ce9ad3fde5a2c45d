package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubCoordinator struct {
	executeState domain.SwapState
	executeErr   error
	statusState  domain.SwapState
	statusErr    error
	swaps        []domain.SwapState

	gotAmount float64
	gotDryRun bool
}

func (s *stubCoordinator) ExecuteOpportunity(_ context.Context, _ domain.Opportunity, amount float64, dryRun bool) (domain.SwapState, error) {
	s.gotAmount = amount
	s.gotDryRun = dryRun
	return s.executeState, s.executeErr
}

func (s *stubCoordinator) GetSwapStatus(_ context.Context, _ string) (domain.SwapState, error) {
	return s.statusState, s.statusErr
}

func (s *stubCoordinator) ListSwaps(_ context.Context) []domain.SwapState {
	return s.swaps
}

func createSwapBody(t *testing.T, amount float64, dryRun bool) *strings.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"opportunity": domain.Opportunity{
			ID:      "opp-1",
			Route:   domain.RouteBilateral,
			Ledgers: []string{"arbitrum", "polygon"},
		},
		"amount":  amount,
		"dry_run": dryRun,
	})
	require.NoError(t, err)
	return strings.NewReader(string(body))
}

func TestSwapHandler_CreateSwap(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		stub := &stubCoordinator{executeState: domain.SwapState{ID: "swap-1", Status: domain.SwapInProgress}}
		h := NewSwapHandler(stub, nil, testLogger())

		rec := httptest.NewRecorder()
		h.CreateSwap(rec, httptest.NewRequest(http.MethodPost, "/api/swaps", createSwapBody(t, 100, true)))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, 100.0, stub.gotAmount)
		assert.True(t, stub.gotDryRun)

		var state domain.SwapState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		assert.Equal(t, "swap-1", state.ID)
	})

	t.Run("invalid body", func(t *testing.T) {
		h := NewSwapHandler(&stubCoordinator{}, nil, testLogger())

		rec := httptest.NewRecorder()
		h.CreateSwap(rec, httptest.NewRequest(http.MethodPost, "/api/swaps", strings.NewReader("{not json")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing opportunity", func(t *testing.T) {
		h := NewSwapHandler(&stubCoordinator{}, nil, testLogger())

		rec := httptest.NewRecorder()
		h.CreateSwap(rec, httptest.NewRequest(http.MethodPost, "/api/swaps", strings.NewReader(`{"amount": 100}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("coordinator errors map to statuses", func(t *testing.T) {
		cases := map[error]int{
			domain.ErrAmountExceedsLimit: http.StatusUnprocessableEntity,
			domain.ErrUnsupportedRoute:   http.StatusUnprocessableEntity,
			domain.ErrSpreadDegraded:     http.StatusConflict,
			domain.ErrSwapExists:         http.StatusConflict,
			domain.ErrPriceUnavailable:   http.StatusBadGateway,
			context.DeadlineExceeded:     http.StatusInternalServerError,
		}
		for wantErr, wantStatus := range cases {
			h := NewSwapHandler(&stubCoordinator{executeErr: wantErr}, nil, testLogger())

			rec := httptest.NewRecorder()
			h.CreateSwap(rec, httptest.NewRequest(http.MethodPost, "/api/swaps", createSwapBody(t, 100, false)))

			assert.Equal(t, wantStatus, rec.Code, wantErr.Error())
		}
	})
}

func TestSwapHandler_GetSwap(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		stub := &stubCoordinator{statusState: domain.SwapState{ID: "swap-1", Status: domain.SwapCompleted}}
		h := NewSwapHandler(stub, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/swaps/swap-1", nil)
		req.SetPathValue("id", "swap-1")
		rec := httptest.NewRecorder()
		h.GetSwap(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var state domain.SwapState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		assert.Equal(t, domain.SwapCompleted, state.Status)
	})

	t.Run("not found", func(t *testing.T) {
		h := NewSwapHandler(&stubCoordinator{statusErr: domain.ErrSwapNotFound}, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/swaps/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()
		h.GetSwap(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSwapHandler_ListHistory(t *testing.T) {
	h := NewSwapHandler(&stubCoordinator{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/swaps/history", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestTradeHandler_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		h := NewTradeHandler(validatorFunc(func(domain.TradeRequest) error { return nil }), testLogger())

		rec := httptest.NewRecorder()
		h.Validate(rec, httptest.NewRequest(http.MethodPost, "/api/trades/validate",
			strings.NewReader(`{"amount": 100, "expected_spread_percent": 0.6, "ledgers": ["arbitrum", "polygon"]}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Valid bool `json:"valid"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
	})

	t.Run("rejected with code", func(t *testing.T) {
		h := NewTradeHandler(validatorFunc(func(domain.TradeRequest) error {
			return domain.ErrSpreadBelowMinimum
		}), testLogger())

		rec := httptest.NewRecorder()
		h.Validate(rec, httptest.NewRequest(http.MethodPost, "/api/trades/validate",
			strings.NewReader(`{"amount": 100}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Valid  bool   `json:"valid"`
			Code   string `json:"code"`
			Reason string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.Equal(t, "spread_below_minimum", resp.Code)
		assert.NotEmpty(t, resp.Reason)
	})
}

type validatorFunc func(domain.TradeRequest) error

func (f validatorFunc) ValidateTrade(_ context.Context, req domain.TradeRequest) error {
	return f(req)
}
