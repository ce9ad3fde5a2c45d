// Package sim implements an in-process ledger double with deterministic
// prices and instant settlement. It backs local development, dry runs, and
// tests; no network access, no real funds.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

// Client simulates one ledger. Prices default to a deterministic value
// derived from the ledger and pair names so distinct ledgers disagree
// slightly, which gives the scanner something to find. SetPrice pins exact
// values.
type Client struct {
	name string

	mu       sync.Mutex
	prices   map[string]float64
	balances map[string]map[string]float64 // wallet -> asset -> amount
	txSeq    int
	failSwap bool
}

// NewClient creates a simulated ledger.
func NewClient(name string) *Client {
	return &Client{
		name:     name,
		prices:   make(map[string]float64),
		balances: make(map[string]map[string]float64),
	}
}

// SetPrice pins the spot price for a pair.
func (c *Client) SetPrice(pair domain.AssetPair, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[pair.String()] = price
}

// SetBalance sets a wallet's balance for one asset.
func (c *Client) SetBalance(wallet, asset string, amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balances[wallet] == nil {
		c.balances[wallet] = make(map[string]float64)
	}
	c.balances[wallet][strings.ToUpper(asset)] = amount
}

// FailSwaps makes every subsequent ExecuteSwap report failure. Test hook.
func (c *Client) FailSwaps(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSwap = fail
}

// SpotPrice returns the pinned price, or a deterministic near-parity value
// seeded from the ledger and pair names.
func (c *Client) SpotPrice(_ context.Context, pair domain.AssetPair) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.prices[pair.String()]; ok {
		return p, nil
	}
	return syntheticPrice(c.name, pair), nil
}

// ExecuteSwap converts AmountIn at the current price. Fails the receipt when
// the output cannot clear MinAmountOut; no partial fills.
func (c *Client) ExecuteSwap(ctx context.Context, order domain.SwapOrder) (domain.SwapReceipt, error) {
	price, err := c.SpotPrice(ctx, order.Pair)
	if err != nil {
		return domain.SwapReceipt{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.txSeq++
	ref := fmt.Sprintf("sim-%s-%06d", c.name, c.txSeq)

	if c.failSwap {
		return domain.SwapReceipt{Success: false, TxRef: ref}, nil
	}

	out := order.AmountIn * price
	if out < order.MinAmountOut {
		return domain.SwapReceipt{Success: false, TxRef: ref}, nil
	}

	if order.Wallet != "" {
		c.creditLocked(order.Wallet, order.Pair.Quote, out)
		c.creditLocked(order.Wallet, order.Pair.Base, -order.AmountIn)
	}
	return domain.SwapReceipt{Success: true, TxRef: ref, AmountOut: out}, nil
}

// BridgeOut settles instantly in the simulation.
func (c *Client) BridgeOut(_ context.Context, toLedger, asset string, amount float64) (domain.SwapReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txSeq++
	return domain.SwapReceipt{
		Success:   true,
		TxRef:     fmt.Sprintf("sim-%s-bridge-%s-%06d", c.name, toLedger, c.txSeq),
		AmountOut: amount,
	}, nil
}

// Balances returns a copy of the wallet's balances.
func (c *Client) Balances(_ context.Context, wallet string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.balances[wallet]))
	for asset, amount := range c.balances[wallet] {
		out[asset] = amount
	}
	return out, nil
}

func (c *Client) creditLocked(wallet, asset string, delta float64) {
	if c.balances[wallet] == nil {
		c.balances[wallet] = make(map[string]float64)
	}
	c.balances[wallet][strings.ToUpper(asset)] += delta
}

// syntheticPrice hashes the ledger and pair names into a stable price inside
// the 0.995..1.005 stablecoin band.
func syntheticPrice(ledger string, pair domain.AssetPair) float64 {
	h := fnv.New32a()
	h.Write([]byte(ledger))
	h.Write([]byte(pair.String()))
	offset := float64(h.Sum32()%1000)/100000.0 - 0.005
	return 1.0 + offset
}
