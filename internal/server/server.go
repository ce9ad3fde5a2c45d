package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/server/handler"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/server/middleware"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/server/ws"
)

// swapRateLimit bounds swap creation per client IP. Scans are cheap; swaps
// move funds.
const (
	swapRateLimit  = 10
	swapRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Archive may be nil when no blob store is configured.
type Handlers struct {
	Health  *handler.HealthHandler
	Scan    *handler.ScanHandler
	Trade   *handler.TradeHandler
	Swap    *handler.SwapHandler
	Archive *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API server for the engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, swap rate limiting) and
// attaches the WebSocket hub. The rate limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Detection endpoints.
	mux.HandleFunc("POST /api/scan", handlers.Scan.TriggerScan)
	mux.HandleFunc("GET /api/opportunities", handlers.Scan.ListRecent)

	// Pre-trade validation.
	mux.HandleFunc("POST /api/trades/validate", handlers.Trade.Validate)

	// Swap lifecycle endpoints.
	createSwap := http.HandlerFunc(handlers.Swap.CreateSwap)
	if limiter != nil {
		mux.Handle("POST /api/swaps", middleware.RateLimit(limiter, swapRateLimit, swapRateWindow)(createSwap))
	} else {
		mux.Handle("POST /api/swaps", createSwap)
	}
	mux.HandleFunc("GET /api/swaps", handlers.Swap.ListSwaps)
	mux.HandleFunc("GET /api/swaps/history", handlers.Swap.ListHistory)
	mux.HandleFunc("GET /api/swaps/{id}", handlers.Swap.GetSwap)

	// Cold-storage archive browsing.
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.List)
		mux.HandleFunc("GET /api/archive/{path...}", handlers.Archive.Get)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
