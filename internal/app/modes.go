package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/arbitrage"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/server"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/server/handler"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/server/ws"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/service"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/swap"
)

// engine bundles the core services built on top of the wired dependencies.
type engine struct {
	scanSvc  *service.ScanService
	swapSvc  *service.SwapService
	registry *swap.Registry
}

// buildEngine constructs the detection and execution services from wired
// dependencies. The same engine serves every mode; modes differ only in
// which loops they start.
func (a *App) buildEngine(deps *Dependencies) *engine {
	safety := a.safetyConfig()

	evaluator := arbitrage.NewEvaluator(deps.Gateway, deps.PriceCache, a.logger)
	ranker := arbitrage.NewRanker(deps.Ledgers, safety)
	planner := arbitrage.NewPlanner(deps.Ledgers)
	gate := arbitrage.NewGate(safety)
	registry := swap.NewRegistry(a.cfg.SwapRetention(), deps.Archiver, a.logger)

	scanSvc := service.NewScanService(
		evaluator, ranker, deps.Ledgers, deps.Pairs,
		deps.SignalBus, deps.Opportunities, a.logger,
	)
	swapSvc := service.NewSwapService(service.SwapServiceDeps{
		Gate:      gate,
		Evaluator: evaluator,
		Planner:   planner,
		Gateway:   deps.Gateway,
		Wallets:   deps.Gateway,
		Registry:  registry,
		Locks:     deps.LockManager,
		History:   deps.SwapHistory,
		Bus:       deps.SignalBus,
		Notifier:  deps.Notifier,
		Safety:    safety,
		Timeout:   a.cfg.SwapTimeout(),
	}, a.logger)

	return &engine{
		scanSvc:  scanSvc,
		swapSvc:  swapSvc,
		registry: registry,
	}
}

// ScanMode runs detection only: the periodic scan loop plus the HTTP server
// when enabled. Swap creation through the API still works, but no sweeper
// runs because nothing long-lived is expected.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	eng := a.buildEngine(deps)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.scanSvc.RunLoop(ctx, a.cfg.ScanInterval())
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng)
	}

	return g.Wait()
}

// ExecuteMode runs the execution side without periodic scanning: the swap
// registry sweeper and the HTTP server. Scans still run on demand through
// POST /api/scan.
func (a *App) ExecuteMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting execute mode")

	eng := a.buildEngine(deps)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		eng.registry.Run(ctx, a.cfg.SweepInterval())
		return nil
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng)
	}

	return g.Wait()
}

// FullMode runs everything: the scan loop, the registry sweeper, and the
// HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	eng := a.buildEngine(deps)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.scanSvc.RunLoop(ctx, a.cfg.ScanInterval())
	})
	g.Go(func() error {
		eng.registry.Run(ctx, a.cfg.SweepInterval())
		return nil
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng)
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Scan:   handler.NewScanHandler(eng.scanSvc, deps.Opportunities, a.logger),
		Trade:  handler.NewTradeHandler(eng.swapSvc, a.logger),
		Swap:   handler.NewSwapHandler(eng.swapSvc, deps.SwapHistory, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
