package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

type stubPrices struct {
	prices map[string]float64 // ledger -> price
	errs   map[string]error
}

func (s *stubPrices) SpotPrice(_ context.Context, ledger string, pair domain.AssetPair) (domain.PriceObservation, error) {
	if err := s.errs[ledger]; err != nil {
		return domain.PriceObservation{}, err
	}
	p, ok := s.prices[ledger]
	if !ok {
		return domain.PriceObservation{}, fmt.Errorf("no price for %s", ledger)
	}
	return domain.PriceObservation{
		Ledger:     ledger,
		Pair:       pair,
		Price:      p,
		ObservedAt: time.Now().UTC(),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEvaluator_Evaluate(t *testing.T) {
	pair := domain.NewAssetPair("USDC", "USDT")

	t.Run("two ledger spread", func(t *testing.T) {
		src := &stubPrices{prices: map[string]float64{
			"arbitrum": 0.9990,
			"ethereum": 1.0012,
		}}
		e := NewEvaluator(src, nil, testLogger())

		res, err := e.Evaluate(context.Background(), pair, []string{"ethereum", "arbitrum"})
		require.NoError(t, err)

		assert.Equal(t, 0.2202, res.SpreadPercent)
		assert.Equal(t, "arbitrum", res.BuyLedger)
		assert.Equal(t, "ethereum", res.SellLedger)
		assert.Equal(t, domain.ConfidenceLow, res.Confidence)
		assert.True(t, res.Actionable())
	})

	t.Run("tied prices are not actionable", func(t *testing.T) {
		src := &stubPrices{prices: map[string]float64{
			"arbitrum": 1.0,
			"polygon":  1.0,
		}}
		e := NewEvaluator(src, nil, testLogger())

		res, err := e.Evaluate(context.Background(), pair, []string{"arbitrum", "polygon"})
		require.NoError(t, err)

		assert.Zero(t, res.SpreadPercent)
		assert.Empty(t, res.BuyLedger)
		assert.Empty(t, res.SellLedger)
		assert.False(t, res.Actionable())
	})

	t.Run("three ledgers pick global min and max", func(t *testing.T) {
		src := &stubPrices{prices: map[string]float64{
			"ethereum": 1.0030,
			"arbitrum": 0.9985,
			"polygon":  1.0005,
		}}
		e := NewEvaluator(src, nil, testLogger())

		res, err := e.Evaluate(context.Background(), pair, []string{"ethereum", "arbitrum", "polygon"})
		require.NoError(t, err)

		assert.Equal(t, "arbitrum", res.BuyLedger)
		assert.Equal(t, "ethereum", res.SellLedger)
		assert.InDelta(t, 0.4507, res.SpreadPercent, 0.0001)
	})

	t.Run("confidence tiers", func(t *testing.T) {
		cases := []struct {
			high float64
			want domain.Confidence
		}{
			{1.004, domain.ConfidenceLow},
			{1.007, domain.ConfidenceMedium},
			{1.015, domain.ConfidenceHigh},
		}
		for _, tc := range cases {
			src := &stubPrices{prices: map[string]float64{"a": 1.0, "b": tc.high}}
			e := NewEvaluator(src, nil, testLogger())
			res, err := e.Evaluate(context.Background(), pair, []string{"a", "b"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Confidence, "high price %v", tc.high)
		}
	})

	t.Run("wrong ledger count", func(t *testing.T) {
		e := NewEvaluator(&stubPrices{}, nil, testLogger())

		_, err := e.Evaluate(context.Background(), pair, []string{"solo"})
		assert.ErrorIs(t, err, domain.ErrInvalidRoute)

		_, err = e.Evaluate(context.Background(), pair, []string{"a", "b", "c", "d"})
		assert.ErrorIs(t, err, domain.ErrInvalidRoute)
	})

	t.Run("failed ledger fails the evaluation", func(t *testing.T) {
		src := &stubPrices{
			prices: map[string]float64{"arbitrum": 1.0},
			errs:   map[string]error{"ethereum": fmt.Errorf("rpc timeout")},
		}
		e := NewEvaluator(src, nil, testLogger())

		_, err := e.Evaluate(context.Background(), pair, []string{"arbitrum", "ethereum"})
		assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
	})

	t.Run("non-positive price is unavailable", func(t *testing.T) {
		src := &stubPrices{prices: map[string]float64{"arbitrum": 0, "polygon": 1.0}}
		e := NewEvaluator(src, nil, testLogger())

		_, err := e.Evaluate(context.Background(), pair, []string{"arbitrum", "polygon"})
		assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
	})
}
