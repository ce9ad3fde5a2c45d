package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// observationTTL bounds how long a cached price stays usable. Spot prices
// older than this are worthless for spread decisions anyway.
const observationTTL = 2 * time.Minute

// PriceCache implements domain.PriceCache. Each observation is stored as a
// JSON blob at key "price:{ledger}:{pair}" with a short TTL.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func observationKey(ledger string, pair domain.AssetPair) string {
	return "price:" + ledger + ":" + pair.String()
}

// SetObservation stores the latest observation for the ledger and pair.
func (pc *PriceCache) SetObservation(ctx context.Context, obs domain.PriceObservation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("redis: marshal observation: %w", err)
	}
	key := observationKey(obs.Ledger, obs.Pair)
	if err := pc.rdb.Set(ctx, key, payload, observationTTL).Err(); err != nil {
		return fmt.Errorf("redis: set observation %s: %w", key, err)
	}
	return nil
}

// GetObservation retrieves the latest observation for the ledger and pair.
// It returns domain.ErrNotFound when no fresh observation exists.
func (pc *PriceCache) GetObservation(ctx context.Context, ledger string, pair domain.AssetPair) (domain.PriceObservation, error) {
	key := observationKey(ledger, pair)
	payload, err := pc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PriceObservation{}, domain.ErrNotFound
		}
		return domain.PriceObservation{}, fmt.Errorf("redis: get observation %s: %w", key, err)
	}

	var obs domain.PriceObservation
	if err := json.Unmarshal(payload, &obs); err != nil {
		return domain.PriceObservation{}, fmt.Errorf("redis: unmarshal observation %s: %w", key, err)
	}
	return obs, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
