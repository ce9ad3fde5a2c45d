package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/blob/s3"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/cache/redis"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/config"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/domain"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/notify"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform/evm"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/platform/sim"
	"github.com/olarte/stablecoin-arbitrage-bridge-v2/internal/store/postgres"
)

// simWalletAddress is the placeholder wallet used on sim ledgers when the
// config leaves wallet_address empty.
const simWalletAddress = "sim-wallet"

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Ledger access
	Gateway *platform.Gateway
	Ledgers domain.LedgerSet
	Pairs   []domain.AssetPair

	// Caches and coordination
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Persistence (nil unless postgres is enabled)
	SwapHistory   domain.SwapHistoryStore
	Opportunities domain.OpportunityStore

	// Cold storage (nil unless s3 is enabled)
	BlobReader domain.BlobReader
	Archiver   domain.SwapArchiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Ledger gateway ---
	clients := make(map[string]platform.LedgerClient, len(cfg.Ledgers))
	wallets := make(map[string]string, len(cfg.Ledgers))
	ledgers := make(domain.LedgerSet, len(cfg.Ledgers))
	for _, lc := range cfg.Ledgers {
		switch lc.Kind {
		case "evm":
			client, err := evm.NewClient(ctx, evm.Options{
				Name:          lc.Name,
				RPCURL:        lc.RPCURL,
				ChainID:       lc.ChainID,
				RouterAddress: lc.RouterAddress,
				BridgeAddress: lc.BridgeAddress,
				Tokens:        lc.Tokens,
				PrivateKey:    cfg.Wallet.PrivateKey,
			}, logger)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: ledger %s: %w", lc.Name, err)
			}
			closers = append(closers, client.Close)
			clients[lc.Name] = client
			wallet := lc.WalletAddress
			if wallet == "" {
				wallet = client.Address()
			}
			wallets[lc.Name] = wallet
		case "sim":
			clients[lc.Name] = sim.NewClient(lc.Name)
			wallet := lc.WalletAddress
			if wallet == "" {
				wallet = simWalletAddress
			}
			wallets[lc.Name] = wallet
		default:
			cleanup()
			return nil, nil, fmt.Errorf("wire: ledger %s: unknown kind %q", lc.Name, lc.Kind)
		}
		ledgers[lc.Name] = domain.LedgerInfo{
			Name:               lc.Name,
			HighSettlementCost: lc.HighSettlementCost,
			LowSettlementCost:  lc.LowSettlementCost,
			BridgeRequired:     lc.BridgeRequired,
		}
	}
	deps.Gateway = platform.NewGateway(clients, wallets)
	deps.Ledgers = ledgers
	deps.Pairs = parsePairs(cfg.Scan.Pairs)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- PostgreSQL (optional persistence) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.SwapHistory = postgres.NewSwapStore(pool)
		deps.Opportunities = postgres.NewOpportunityStore(pool)
	}

	// --- S3 blob storage (optional archive) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// parsePairs converts "BASE/QUOTE" strings into asset pairs, skipping
// malformed entries. Validate flags them earlier, so a skip here only happens
// when validation was bypassed.
func parsePairs(raw []string) []domain.AssetPair {
	pairs := make([]domain.AssetPair, 0, len(raw))
	for _, r := range raw {
		base, quote, ok := strings.Cut(r, "/")
		if !ok {
			continue
		}
		pair := domain.NewAssetPair(base, quote)
		if pair.Valid() {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}
