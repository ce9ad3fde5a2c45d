// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBD_* environment variables.
type Config struct {
	Ledgers  []LedgerConfig `toml:"ledgers"`
	Wallet   WalletConfig   `toml:"wallet"`
	Safety   SafetyConfig   `toml:"safety"`
	Swap     SwapConfig     `toml:"swap"`
	Scan     ScanConfig     `toml:"scan"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig describes one ledger the engine trades on. Kind selects the
// gateway implementation: "evm" for a JSON-RPC backed chain, "sim" for the
// deterministic in-process double.
type LedgerConfig struct {
	Name               string            `toml:"name"`
	Kind               string            `toml:"kind"`
	RPCURL             string            `toml:"rpc_url"`
	ChainID            int64             `toml:"chain_id"`
	RouterAddress      string            `toml:"router_address"`
	BridgeAddress      string            `toml:"bridge_address"`
	Tokens             map[string]string `toml:"tokens"` // symbol -> contract address
	WalletAddress      string            `toml:"wallet_address"`
	HighSettlementCost bool              `toml:"high_settlement_cost"`
	LowSettlementCost  bool              `toml:"low_settlement_cost"`
	BridgeRequired     bool              `toml:"bridge_required"`
}

// WalletConfig holds signing credentials for EVM ledgers.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
}

// SafetyConfig holds the hard limits the safety gate enforces.
type SafetyConfig struct {
	MaxTradeAmount            float64 `toml:"max_trade_amount"`
	MinProfitThresholdPercent float64 `toml:"min_profit_threshold_percent"`
	MaxSlippagePercent        float64 `toml:"max_slippage_percent"`
}

// SwapConfig holds swap lifecycle parameters.
type SwapConfig struct {
	TimeoutMinutes int      `toml:"timeout_minutes"`
	Retention      duration `toml:"retention"`
	SweepInterval  duration `toml:"sweep_interval"`
}

// ScanConfig holds the periodic market scan parameters. Pairs are quoted as
// "BASE/QUOTE" strings.
type ScanConfig struct {
	Pairs    []string `toml:"pairs"`
	Interval duration `toml:"interval"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. History persistence
// is optional; leave Enabled false to run purely in memory.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the swap
// archive. Optional; leave Enabled false to skip archiving.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. APIKey enables bearer-token
// authentication on the API when non-empty.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledgers: []LedgerConfig{
			{Name: "ethereum", Kind: "sim", HighSettlementCost: true},
			{Name: "arbitrum", Kind: "sim", LowSettlementCost: true},
			{Name: "polygon", Kind: "sim", LowSettlementCost: true},
		},
		Safety: SafetyConfig{
			MaxTradeAmount:            1000.0,
			MinProfitThresholdPercent: 0.3,
			MaxSlippagePercent:        0.5,
		},
		Swap: SwapConfig{
			TimeoutMinutes: 30,
			Retention:      duration{1 * time.Hour},
			SweepInterval:  duration{1 * time.Minute},
		},
		Scan: ScanConfig{
			Pairs:    []string{"USDC/USDT", "DAI/USDC"},
			Interval: duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbd-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_detected", "swap_completed", "swap_failed", "swap_expired"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"execute": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLedgerKinds enumerates the accepted gateway kinds.
var validLedgerKinds = map[string]bool{
	"evm": true,
	"sim": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, execute, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledgers
	if len(c.Ledgers) < 2 {
		errs = append(errs, fmt.Sprintf("ledgers: need at least 2 entries, got %d", len(c.Ledgers)))
	}
	seen := map[string]bool{}
	needsKey := false
	for i, l := range c.Ledgers {
		if l.Name == "" {
			errs = append(errs, fmt.Sprintf("ledgers[%d]: name must not be empty", i))
			continue
		}
		if seen[l.Name] {
			errs = append(errs, fmt.Sprintf("ledgers: duplicate name %q", l.Name))
		}
		seen[l.Name] = true
		if !validLedgerKinds[l.Kind] {
			errs = append(errs, fmt.Sprintf("ledgers[%s]: unknown kind %q (valid: evm, sim)", l.Name, l.Kind))
		}
		if l.Kind == "evm" {
			if l.RPCURL == "" {
				errs = append(errs, fmt.Sprintf("ledgers[%s]: rpc_url is required for kind evm", l.Name))
			}
			if l.ChainID <= 0 {
				errs = append(errs, fmt.Sprintf("ledgers[%s]: chain_id must be positive for kind evm", l.Name))
			}
			needsKey = true
		}
	}

	// Wallet is only needed when an EVM ledger can sign swaps in execute modes.
	if needsKey && c.Mode != "scan" && c.Wallet.PrivateKey == "" {
		errs = append(errs, "wallet: private_key is required when an evm ledger is configured for mode "+c.Mode)
	}

	// Safety
	if c.Safety.MaxTradeAmount <= 0 {
		errs = append(errs, "safety: max_trade_amount must be > 0")
	}
	if c.Safety.MinProfitThresholdPercent < 0 {
		errs = append(errs, "safety: min_profit_threshold_percent must be >= 0")
	}
	if c.Safety.MaxSlippagePercent <= 0 {
		errs = append(errs, "safety: max_slippage_percent must be > 0")
	}

	// Swap
	if c.Swap.TimeoutMinutes < 1 {
		errs = append(errs, "swap: timeout_minutes must be >= 1")
	}
	if c.Swap.Retention.Duration <= 0 {
		errs = append(errs, "swap: retention must be > 0")
	}
	if c.Swap.SweepInterval.Duration <= 0 {
		errs = append(errs, "swap: sweep_interval must be > 0")
	}

	// Scan
	if len(c.Scan.Pairs) == 0 {
		errs = append(errs, "scan: at least one pair is required")
	}
	for _, p := range c.Scan.Pairs {
		if !strings.Contains(p, "/") {
			errs = append(errs, fmt.Sprintf("scan: pair %q must be BASE/QUOTE", p))
		}
	}
	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Ledger returns the config entry for the named ledger, nil when absent.
func (c *Config) Ledger(name string) *LedgerConfig {
	for i := range c.Ledgers {
		if c.Ledgers[i].Name == name {
			return &c.Ledgers[i]
		}
	}
	return nil
}

// SwapTimeout returns the swap timeout as a time.Duration.
func (c *Config) SwapTimeout() time.Duration {
	return time.Duration(c.Swap.TimeoutMinutes) * time.Minute
}

// SwapRetention returns the terminal-swap retention window.
func (c *Config) SwapRetention() time.Duration {
	return c.Swap.Retention.Duration
}

// SweepInterval returns the registry sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	return c.Swap.SweepInterval.Duration
}

// ScanInterval returns the market scan cadence.
func (c *Config) ScanInterval() time.Duration {
	return c.Scan.Interval.Duration
}
