package domain

import (
	"context"
	"time"
)

// PriceCache stores the latest observation per ledger and pair so scan
// consumers and the dashboard avoid re-querying ledgers.
type PriceCache interface {
	SetObservation(ctx context.Context, obs PriceObservation) error
	GetObservation(ctx context.Context, ledger string, pair AssetPair) (PriceObservation, error)
}

// LockManager provides distributed locking, used to guarantee a single
// executor per swap id across process instances.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter throttles repeated actions per key, used by the HTTP layer to
// bound scan and swap submissions per client.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for live events (opportunities, swap
// transitions) and durable streams for replayable history.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
