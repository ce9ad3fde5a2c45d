package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// Scanner is the slice of the scan service the handler needs.
type Scanner interface {
	Scan(ctx context.Context) ([]domain.Opportunity, error)
}

// OpportunityLister reads historical opportunities.
type OpportunityLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// ScanHandler serves on-demand scans and opportunity history.
type ScanHandler struct {
	scanner Scanner
	history OpportunityLister // optional
	logger  *slog.Logger
}

// NewScanHandler creates a ScanHandler. History may be nil.
func NewScanHandler(scanner Scanner, history OpportunityLister, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, history: history, logger: logger}
}

// TriggerScan runs one scan cycle and returns the ranked opportunities.
// POST /api/scan
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "trigger_scan")

	opps, err := h.scanner.Scan(r.Context())
	if err != nil {
		log.ErrorContext(r.Context(), "scan failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "scan failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(opps),
		"opportunities": opps,
	})
}

// ListRecent returns recently recorded opportunities from the history store.
// GET /api/opportunities
func (h *ScanHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "opportunity history is not configured")
		return
	}

	opps, err := h.history.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		logHandler(h.logger, "list_opportunities").ErrorContext(r.Context(), "list failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(opps),
		"opportunities": opps,
	})
}
