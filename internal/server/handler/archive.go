package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// ArchiveHandler exposes read access to the cold-storage swap archive so
// operators can inspect swept swaps without S3 tooling.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

// List returns archive object metadata under an optional prefix.
// GET /api/archive?prefix=swaps/2026/09
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "swaps/"
	}

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		logHandler(h.logger, "archive_list").ErrorContext(r.Context(), "list failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to list archive")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(infos),
		"objects": infos,
	})
}

// Get streams one archived swap record.
// GET /api/archive/{path...}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r, "path")
	if path == "" || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}

	body, err := h.reader.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive object not found")
			return
		}
		logHandler(h.logger, "archive_get").ErrorContext(r.Context(), "get failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to read archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
