// Package evm implements the ledger client for EVM chains speaking JSON-RPC.
// Prices and swaps go through a Uniswap-V2 style router contract; bridging is
// an ERC-20 transfer into a configured escrow address.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
)

const routerABIJSON = `[
  {"name":"getAmountsOut","type":"function","stateMutability":"view",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
             {"name":"path","type":"address[]"},{"name":"to","type":"address"},
             {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const erc20ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"decimals","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint8"}]},
  {"name":"transfer","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const (
	swapGasLimit     = 350_000
	transferGasLimit = 90_000
	swapDeadline     = 2 * time.Minute
)

// Options configures a Client.
type Options struct {
	Name          string // ledger name, used in logs and receipts
	RPCURL        string
	ChainID       int64
	RouterAddress string
	BridgeAddress string            // escrow for BridgeOut; empty disables bridging
	Tokens        map[string]string // symbol -> contract address
	PrivateKey    string            // hex; empty means read-only (scan mode)
}

// Client talks to one EVM ledger. Safe for concurrent use; transactions are
// serialized through the tx mutex so nonces stay ordered.
type Client struct {
	name   string
	eth    *ethclient.Client
	chain  *big.Int
	router common.Address
	bridge common.Address
	tokens map[string]common.Address
	key    *ecdsa.PrivateKey
	from   common.Address
	logger *slog.Logger

	routerABI abi.ABI
	erc20ABI  abi.ABI

	txMu sync.Mutex

	decMu    sync.Mutex
	decimals map[common.Address]uint8
}

// NewClient dials the RPC endpoint and prepares the contract bindings. The
// connection is verified lazily on first call, not here.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm %s: dial %s: %w", opts.Name, opts.RPCURL, err)
	}

	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm %s: parse router abi: %w", opts.Name, err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm %s: parse erc20 abi: %w", opts.Name, err)
	}

	tokens := make(map[string]common.Address, len(opts.Tokens))
	for symbol, addr := range opts.Tokens {
		tokens[strings.ToUpper(symbol)] = common.HexToAddress(addr)
	}

	c := &Client{
		name:      opts.Name,
		eth:       eth,
		chain:     big.NewInt(opts.ChainID),
		router:    common.HexToAddress(opts.RouterAddress),
		tokens:    tokens,
		logger:    logger.With(slog.String("component", "evm_client"), slog.String("ledger", opts.Name)),
		routerABI: routerABI,
		erc20ABI:  erc20ABI,
		decimals:  make(map[common.Address]uint8),
	}
	if opts.BridgeAddress != "" {
		c.bridge = common.HexToAddress(opts.BridgeAddress)
	}
	if opts.PrivateKey != "" {
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("evm %s: invalid private key: %w", opts.Name, err)
		}
		c.key = key
		c.from = ethcrypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Address returns the signer address in hex, empty when no key is loaded.
func (c *Client) Address() string {
	if c.key == nil {
		return ""
	}
	return c.from.Hex()
}

// SpotPrice quotes one base unit of the pair through the router and returns
// the quote amount as the price.
func (c *Client) SpotPrice(ctx context.Context, pair domain.AssetPair) (float64, error) {
	base, quote, err := c.pairTokens(pair)
	if err != nil {
		return 0, err
	}
	baseDec, err := c.tokenDecimals(ctx, base)
	if err != nil {
		return 0, err
	}
	quoteDec, err := c.tokenDecimals(ctx, quote)
	if err != nil {
		return 0, err
	}

	amountIn := pow10(baseDec) // one whole base token
	amounts, err := c.amountsOut(ctx, amountIn, []common.Address{base, quote})
	if err != nil {
		return 0, fmt.Errorf("evm %s: quote %s: %w", c.name, pair, err)
	}
	if len(amounts) < 2 {
		return 0, fmt.Errorf("evm %s: quote %s: router returned %d amounts", c.name, pair, len(amounts))
	}
	return unitsToFloat(amounts[len(amounts)-1], quoteDec), nil
}

// ExecuteSwap submits a swapExactTokensForTokens transaction and waits for it
// to mine. A reverted transaction comes back as an unsuccessful receipt, not
// an error.
func (c *Client) ExecuteSwap(ctx context.Context, order domain.SwapOrder) (domain.SwapReceipt, error) {
	if c.key == nil {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: no signing key configured", c.name)
	}
	base, quote, err := c.pairTokens(order.Pair)
	if err != nil {
		return domain.SwapReceipt{}, err
	}
	baseDec, err := c.tokenDecimals(ctx, base)
	if err != nil {
		return domain.SwapReceipt{}, err
	}
	quoteDec, err := c.tokenDecimals(ctx, quote)
	if err != nil {
		return domain.SwapReceipt{}, err
	}

	amountIn := floatToUnits(order.AmountIn, baseDec)
	minOut := floatToUnits(order.MinAmountOut, quoteDec)
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())

	recipient := c.from
	if order.Wallet != "" {
		recipient = common.HexToAddress(order.Wallet)
	}

	data, err := c.routerABI.Pack("swapExactTokensForTokens",
		amountIn, minOut, []common.Address{base, quote}, recipient, deadline)
	if err != nil {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: pack swap: %w", c.name, err)
	}

	receipt, err := c.sendTx(ctx, c.router, data, swapGasLimit)
	if err != nil {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: swap %s: %w", c.name, order.Pair, err)
	}

	out := domain.SwapReceipt{
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		TxRef:   receipt.TxHash.Hex(),
	}
	if out.Success {
		// Actual output requires log parsing; report the guaranteed minimum.
		out.AmountOut = order.MinAmountOut
	}
	return out, nil
}

// BridgeOut transfers the asset into the bridge escrow. The destination
// ledger credits asynchronously; callers poll balances there.
func (c *Client) BridgeOut(ctx context.Context, toLedger, asset string, amount float64) (domain.SwapReceipt, error) {
	if c.key == nil {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: no signing key configured", c.name)
	}
	if c.bridge == (common.Address{}) {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: no bridge escrow configured: %w", c.name, domain.ErrUnsupportedRoute)
	}
	token, ok := c.tokens[strings.ToUpper(asset)]
	if !ok {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: unknown token %q: %w", c.name, asset, domain.ErrNotFound)
	}
	dec, err := c.tokenDecimals(ctx, token)
	if err != nil {
		return domain.SwapReceipt{}, err
	}

	data, err := c.erc20ABI.Pack("transfer", c.bridge, floatToUnits(amount, dec))
	if err != nil {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: pack transfer: %w", c.name, err)
	}

	receipt, err := c.sendTx(ctx, token, data, transferGasLimit)
	if err != nil {
		return domain.SwapReceipt{}, fmt.Errorf("evm %s: bridge %s to %s: %w", c.name, asset, toLedger, err)
	}

	return domain.SwapReceipt{
		Success:   receipt.Status == types.ReceiptStatusSuccessful,
		TxRef:     receipt.TxHash.Hex(),
		AmountOut: amount,
	}, nil
}

// Balances reads balanceOf for every configured token.
func (c *Client) Balances(ctx context.Context, wallet string) (map[string]float64, error) {
	owner := common.HexToAddress(wallet)
	out := make(map[string]float64, len(c.tokens))
	for symbol, token := range c.tokens {
		data, err := c.erc20ABI.Pack("balanceOf", owner)
		if err != nil {
			return nil, fmt.Errorf("evm %s: pack balanceOf: %w", c.name, err)
		}
		raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("evm %s: balanceOf %s: %w", c.name, symbol, err)
		}
		vals, err := c.erc20ABI.Unpack("balanceOf", raw)
		if err != nil {
			return nil, fmt.Errorf("evm %s: unpack balanceOf %s: %w", c.name, symbol, err)
		}
		bal, ok := vals[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("evm %s: balanceOf %s: unexpected type %T", c.name, symbol, vals[0])
		}
		dec, err := c.tokenDecimals(ctx, token)
		if err != nil {
			return nil, err
		}
		out[symbol] = unitsToFloat(bal, dec)
	}
	return out, nil
}

func (c *Client) pairTokens(pair domain.AssetPair) (base, quote common.Address, err error) {
	base, ok := c.tokens[pair.Base]
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("evm %s: unknown token %q: %w", c.name, pair.Base, domain.ErrNotFound)
	}
	quote, ok = c.tokens[pair.Quote]
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("evm %s: unknown token %q: %w", c.name, pair.Quote, domain.ErrNotFound)
	}
	return base, quote, nil
}

func (c *Client) amountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := c.routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.router, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := c.routerABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAmountsOut: unexpected type %T", vals[0])
	}
	return amounts, nil
}

// tokenDecimals reads and caches a token's decimals() value.
func (c *Client) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	c.decMu.Lock()
	if dec, ok := c.decimals[token]; ok {
		c.decMu.Unlock()
		return dec, nil
	}
	c.decMu.Unlock()

	data, err := c.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("evm %s: pack decimals: %w", c.name, err)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("evm %s: decimals %s: %w", c.name, token.Hex(), err)
	}
	vals, err := c.erc20ABI.Unpack("decimals", raw)
	if err != nil {
		return 0, fmt.Errorf("evm %s: unpack decimals: %w", c.name, err)
	}
	dec, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("evm %s: decimals: unexpected type %T", c.name, vals[0])
	}

	c.decMu.Lock()
	c.decimals[token] = dec
	c.decMu.Unlock()
	return dec, nil
}

// sendTx signs, submits, and waits for one transaction. Serialized so the
// next transaction sees the right pending nonce.
func (c *Client) sendTx(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chain), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction submitted",
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", signed.Hash().Hex(), err)
	}
	return receipt, nil
}

func pow10(dec uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
}

func floatToUnits(amount float64, dec uint8) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(amount), new(big.Float).SetInt(pow10(dec)))
	units, _ := f.Int(nil)
	return units
}

func unitsToFloat(units *big.Int, dec uint8) float64 {
	f := new(big.Float).Quo(new(big.Float).SetInt(units), new(big.Float).SetInt(pow10(dec)))
	out, _ := f.Float64()
	return out
}
