// Package service hosts the application services that tie the detection and
// execution engine to its collaborators: scanning, swap coordination, and the
// status surface the HTTP layer exposes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/arbitrage"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// opportunitiesChannel carries ranked opportunities to live subscribers; the
// stream of the same name keeps replayable history.
const opportunitiesChannel = "opportunities"

// ScanService runs spread evaluation across every configured pair and ledger
// combination and ranks the results.
type ScanService struct {
	evaluator *arbitrage.Evaluator
	ranker    *arbitrage.Ranker
	ledgers   domain.LedgerSet
	pairs     []domain.AssetPair
	bus       domain.SignalBus       // optional
	store     domain.OpportunityStore // optional
	logger    *slog.Logger
}

// NewScanService creates a ScanService. Bus and store may be nil.
func NewScanService(
	evaluator *arbitrage.Evaluator,
	ranker *arbitrage.Ranker,
	ledgers domain.LedgerSet,
	pairs []domain.AssetPair,
	bus domain.SignalBus,
	store domain.OpportunityStore,
	logger *slog.Logger,
) *ScanService {
	return &ScanService{
		evaluator: evaluator,
		ranker:    ranker,
		ledgers:   ledgers,
		pairs:     pairs,
		bus:       bus,
		store:     store,
		logger:    logger.With(slog.String("component", "scan_service")),
	}
}

// Scan evaluates every pair across every 2- and 3-ledger combination and
// returns the ranked opportunities. Combinations whose prices cannot be read
// are skipped with a warning; any other evaluation error aborts the scan.
func (s *ScanService) Scan(ctx context.Context) ([]domain.Opportunity, error) {
	combos := ledgerCombos(s.ledgers.Names())

	var results []domain.SpreadResult
	for _, pair := range s.pairs {
		for _, combo := range combos {
			res, err := s.evaluator.Evaluate(ctx, pair, combo)
			if err != nil {
				if errors.Is(err, domain.ErrPriceUnavailable) {
					s.logger.WarnContext(ctx, "skipping combination",
						slog.String("pair", pair.String()),
						slog.Any("ledgers", combo),
						slog.String("error", err.Error()),
					)
					continue
				}
				return nil, err
			}
			results = append(results, res)
		}
	}

	opps := s.ranker.Rank(results)

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("pairs", len(s.pairs)),
		slog.Int("combinations", len(combos)),
		slog.Int("opportunities", len(opps)),
	)

	for _, opp := range opps {
		s.record(ctx, opp)
	}
	return opps, nil
}

// RunLoop scans on the given interval until the context is cancelled. Scan
// errors are logged and the loop continues; a dead ledger should not stop
// detection on the others next cycle.
func (s *ScanService) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scan loop started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.logger.ErrorContext(ctx, "scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

// record publishes and persists one opportunity; both sinks are best-effort.
func (s *ScanService) record(ctx context.Context, opp domain.Opportunity) {
	if s.bus != nil {
		payload, err := json.Marshal(opp)
		if err == nil {
			if err := s.bus.Publish(ctx, opportunitiesChannel, payload); err != nil {
				s.logger.WarnContext(ctx, "publish opportunity failed", slog.String("error", err.Error()))
			}
			if err := s.bus.StreamAppend(ctx, opportunitiesChannel, payload); err != nil {
				s.logger.WarnContext(ctx, "stream opportunity failed", slog.String("error", err.Error()))
			}
		}
	}
	if s.store != nil {
		if err := s.store.Insert(ctx, opp); err != nil {
			s.logger.WarnContext(ctx, "persist opportunity failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ledgerCombos returns every 2- and 3-element subset of the ledger names in
// deterministic order.
func ledgerCombos(names []string) [][]string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var combos [][]string
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			combos = append(combos, []string{sorted[i], sorted[j]})
		}
	}
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			for k := j + 1; k < len(sorted); k++ {
				combos = append(combos, []string{sorted[i], sorted[j], sorted[k]})
			}
		}
	}
	return combos
}
