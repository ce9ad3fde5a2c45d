// Package arbitrage implements the detection half of the engine: spread
// evaluation across ledgers, opportunity ranking, execution planning, and
// the pre-execution safety gate. Everything here is deterministic; the only
// I/O is the price lookup inside the Evaluator.
package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// PriceSource is the slice of the ledger gateway the evaluator needs.
type PriceSource interface {
	SpotPrice(ctx context.Context, ledger string, pair domain.AssetPair) (domain.PriceObservation, error)
}

// Evaluator compares one asset pair's price across 2 or 3 ledgers and
// produces a SpreadResult. It queries each ledger exactly once and never
// retries; a failed ledger fails the whole evaluation and the caller decides
// whether to skip the ledger for this cycle.
type Evaluator struct {
	prices PriceSource
	cache  domain.PriceCache // optional; observations are cached when set
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator backed by the given price source. The
// cache may be nil.
func NewEvaluator(prices PriceSource, cache domain.PriceCache, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		prices: prices,
		cache:  cache,
		logger: logger.With(slog.String("component", "spread_evaluator")),
	}
}

// Evaluate collects one price per ledger and computes the spread:
//
//	spread% = (max - min) / min * 100
//
// rounded to 4 decimals. Confidence is HIGH above 1.0%, MEDIUM above 0.5%,
// otherwise LOW. Equal prices yield a zero, non-actionable result.
func (e *Evaluator) Evaluate(ctx context.Context, pair domain.AssetPair, ledgers []string) (domain.SpreadResult, error) {
	if len(ledgers) < 2 || len(ledgers) > 3 {
		return domain.SpreadResult{}, fmt.Errorf("evaluate %s: %w: got %d ledgers", pair, domain.ErrInvalidRoute, len(ledgers))
	}

	prices := make(map[string]float64, len(ledgers))
	for _, ledger := range ledgers {
		obs, err := e.prices.SpotPrice(ctx, ledger, pair)
		if err != nil {
			return domain.SpreadResult{}, fmt.Errorf("evaluate %s on %s: %w: %v", pair, ledger, domain.ErrPriceUnavailable, err)
		}
		if obs.Price <= 0 {
			return domain.SpreadResult{}, fmt.Errorf("evaluate %s on %s: %w: non-positive price %v", pair, ledger, domain.ErrPriceUnavailable, obs.Price)
		}
		prices[ledger] = obs.Price

		if e.cache != nil {
			if cacheErr := e.cache.SetObservation(ctx, obs); cacheErr != nil {
				e.logger.WarnContext(ctx, "price cache write failed",
					slog.String("ledger", ledger),
					slog.String("pair", pair.String()),
					slog.String("error", cacheErr.Error()),
				)
			}
		}
	}

	buyLedger, sellLedger := ledgers[0], ledgers[0]
	for _, ledger := range ledgers {
		if prices[ledger] < prices[buyLedger] {
			buyLedger = ledger
		}
		if prices[ledger] > prices[sellLedger] {
			sellLedger = ledger
		}
	}

	minPrice, maxPrice := prices[buyLedger], prices[sellLedger]
	spread := round4((maxPrice - minPrice) / minPrice * 100)

	result := domain.SpreadResult{
		Pair:          pair,
		Ledgers:       append([]string(nil), ledgers...),
		Prices:        prices,
		SpreadPercent: spread,
		BuyLedger:     buyLedger,
		SellLedger:    sellLedger,
		Confidence:    confidenceFor(spread),
		EvaluatedAt:   time.Now().UTC(),
	}

	if spread == 0 {
		// Tied prices: no actionable direction.
		result.BuyLedger = ""
		result.SellLedger = ""
	}

	return result, nil
}

// confidenceFor maps spread magnitude to a confidence tier.
func confidenceFor(spreadPercent float64) domain.Confidence {
	switch {
	case spreadPercent > 1.0:
		return domain.ConfidenceHigh
	case spreadPercent > 0.5:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
