package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Len(t, cfg.Ledgers, 3)
	assert.Equal(t, 30*time.Minute, cfg.SwapTimeout())
	assert.Equal(t, time.Hour, cfg.SwapRetention())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 30*time.Second, cfg.ScanInterval())
}

func TestConfig_Validate(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "turbo"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	})

	t.Run("malformed pair", func(t *testing.T) {
		cfg := Defaults()
		cfg.Scan.Pairs = []string{"USDCUSDT"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be BASE/QUOTE")
	})

	t.Run("too few ledgers", func(t *testing.T) {
		cfg := Defaults()
		cfg.Ledgers = cfg.Ledgers[:1]
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "need at least 2")
	})

	t.Run("duplicate ledger name", func(t *testing.T) {
		cfg := Defaults()
		cfg.Ledgers[1].Name = cfg.Ledgers[0].Name
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate name")
	})

	t.Run("evm ledger requires rpc and chain id", func(t *testing.T) {
		cfg := Defaults()
		cfg.Ledgers[0].Kind = "evm"
		cfg.Mode = "scan" // no signing key needed
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rpc_url is required")
		assert.Contains(t, err.Error(), "chain_id must be positive")
	})

	t.Run("evm ledger needs a key outside scan mode", func(t *testing.T) {
		cfg := Defaults()
		cfg.Ledgers[0].Kind = "evm"
		cfg.Ledgers[0].RPCURL = "https://rpc.example"
		cfg.Ledgers[0].ChainID = 1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "private_key is required")

		cfg.Wallet.PrivateKey = "0xdeadbeef"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("postgres bounds checked only when enabled", func(t *testing.T) {
		cfg := Defaults()
		cfg.Postgres.PoolMaxConns = 0
		assert.NoError(t, cfg.Validate())

		cfg.Postgres.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pool_max_conns")
	})

	t.Run("every problem is reported at once", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "turbo"
		cfg.Safety.MaxTradeAmount = 0
		cfg.Redis.Addr = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
		assert.Contains(t, err.Error(), "max_trade_amount")
		assert.Contains(t, err.Error(), "redis: addr")
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "scan"
log_level = "debug"

[safety]
max_trade_amount = 250.0

[swap]
timeout_minutes = 10
retention = "2h"
sweep_interval = "30s"

[scan]
pairs = ["USDC/USDT"]
interval = "15s"

[server]
port = 9000
api_key = "file-key"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("ARBD_SERVER_API_KEY", "env-key")
	t.Setenv("ARBD_SAFETY_MAX_TRADE_AMOUNT", "500")
	t.Setenv("ARBD_SCAN_PAIRS", "DAI/USDC, USDC/USDT")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// File values override defaults.
	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.SwapTimeout())
	assert.Equal(t, 2*time.Hour, cfg.SwapRetention())
	assert.Equal(t, 15*time.Second, cfg.ScanInterval())
	assert.Equal(t, 9000, cfg.Server.Port)

	// Environment overrides file values.
	assert.Equal(t, "env-key", cfg.Server.APIKey)
	assert.Equal(t, 500.0, cfg.Safety.MaxTradeAmount)
	assert.Equal(t, []string{"DAI/USDC", "USDC/USDT"}, cfg.Scan.Pairs)

	// Defaults survive for sections the file never mentions.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Len(t, cfg.Ledgers, 3)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestConfig_Ledger(t *testing.T) {
	cfg := Defaults()

	l := cfg.Ledger("arbitrum")
	require.NotNil(t, l)
	assert.Equal(t, "arbitrum", l.Name)
	assert.True(t, l.LowSettlementCost)

	assert.Nil(t, cfg.Ledger("solana"))
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Redis.Password = "redispass"
	cfg.Postgres.Password = "pgpass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.TelegramToken = "tgtoken"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Empty secrets stay empty rather than leaking the placeholder.
	assert.Empty(t, red.Postgres.DSN)

	// Originals are untouched, including through shared slices.
	assert.Equal(t, "0xsecret", cfg.Wallet.PrivateKey)
	red.Scan.Pairs[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Scan.Pairs[0])
}
