// Package platform multiplexes per-ledger clients behind the single gateway
// boundary the engine core depends on. Concrete clients live in the evm and
// sim subpackages.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

func nowUTC() time.Time { return time.Now().UTC() }

// LedgerClient is what one ledger adapter must provide. BridgeOut moves
// funds toward another ledger; the receiving side is observed, not driven.
type LedgerClient interface {
	SpotPrice(ctx context.Context, pair domain.AssetPair) (float64, error)
	ExecuteSwap(ctx context.Context, order domain.SwapOrder) (domain.SwapReceipt, error)
	BridgeOut(ctx context.Context, toLedger, asset string, amount float64) (domain.SwapReceipt, error)
	Balances(ctx context.Context, wallet string) (map[string]float64, error)
}

// Gateway routes gateway calls to the client registered for each ledger.
type Gateway struct {
	clients map[string]LedgerClient
	wallets map[string]string
}

var _ domain.LedgerGateway = (*Gateway)(nil)
var _ domain.WalletDirectory = (*Gateway)(nil)

// NewGateway creates a Gateway over the given per-ledger clients and wallet
// addresses.
func NewGateway(clients map[string]LedgerClient, wallets map[string]string) *Gateway {
	return &Gateway{clients: clients, wallets: wallets}
}

func (g *Gateway) client(ledger string) (LedgerClient, error) {
	c, ok := g.clients[ledger]
	if !ok {
		return nil, fmt.Errorf("ledger %q: %w", ledger, domain.ErrNotFound)
	}
	return c, nil
}

// SpotPrice implements domain.LedgerGateway.
func (g *Gateway) SpotPrice(ctx context.Context, ledger string, pair domain.AssetPair) (domain.PriceObservation, error) {
	c, err := g.client(ledger)
	if err != nil {
		return domain.PriceObservation{}, err
	}
	price, err := c.SpotPrice(ctx, pair)
	if err != nil {
		return domain.PriceObservation{}, fmt.Errorf("spot price %s on %s: %w", pair, ledger, err)
	}
	return domain.PriceObservation{
		Ledger:     ledger,
		Pair:       pair,
		Price:      price,
		ObservedAt: nowUTC(),
	}, nil
}

// ExecuteSwap implements domain.LedgerGateway.
func (g *Gateway) ExecuteSwap(ctx context.Context, ledger string, order domain.SwapOrder) (domain.SwapReceipt, error) {
	c, err := g.client(ledger)
	if err != nil {
		return domain.SwapReceipt{}, err
	}
	rcpt, err := c.ExecuteSwap(ctx, order)
	if err != nil {
		return domain.SwapReceipt{}, fmt.Errorf("execute swap %s on %s: %w", order.Pair, ledger, err)
	}
	return rcpt, nil
}

// BridgeTransfer implements domain.LedgerGateway. The transfer is driven
// from the source ledger side.
func (g *Gateway) BridgeTransfer(ctx context.Context, fromLedger, toLedger, asset string, amount float64) (domain.SwapReceipt, error) {
	c, err := g.client(fromLedger)
	if err != nil {
		return domain.SwapReceipt{}, err
	}
	rcpt, err := c.BridgeOut(ctx, toLedger, asset, amount)
	if err != nil {
		return domain.SwapReceipt{}, fmt.Errorf("bridge %s %s -> %s: %w", asset, fromLedger, toLedger, err)
	}
	return rcpt, nil
}

// Balances implements domain.LedgerGateway.
func (g *Gateway) Balances(ctx context.Context, ledger, wallet string) (map[string]float64, error) {
	c, err := g.client(ledger)
	if err != nil {
		return nil, err
	}
	return c.Balances(ctx, wallet)
}

// WalletAddress implements domain.WalletDirectory. Sessions all share the
// configured per-ledger addresses.
func (g *Gateway) WalletAddress(_ context.Context, _ string, ledger string) (string, error) {
	addr, ok := g.wallets[ledger]
	if !ok || addr == "" {
		return "", fmt.Errorf("wallet for ledger %q: %w", ledger, domain.ErrNotFound)
	}
	return addr, nil
}

// Wallets returns a copy of the per-ledger wallet address map.
func (g *Gateway) Wallets() map[string]string {
	out := make(map[string]string, len(g.wallets))
	for k, v := range g.wallets {
		out[k] = v
	}
	return out
}

// Ledgers returns the names of all registered ledgers.
func (g *Gateway) Ledgers() []string {
	names := make([]string, 0, len(g.clients))
	for name := range g.clients {
		names = append(names, name)
	}
	return names
}
