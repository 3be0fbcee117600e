package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "SIMULATION", cfg.Mode)
	assert.Equal(t, []string{"SOL/USDC"}, cfg.Trading.Pairs)
	assert.Equal(t, 0.007, cfg.Trading.SpreadThreshold)
	assert.Equal(t, 100.0, cfg.Trading.TradeSizeUSDC)
	assert.False(t, cfg.Trading.ReactiveMode)
	assert.True(t, cfg.Spot.Testnet)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mode: TESTNET
trading:
  pairs:
    - SOL/USDC
    - ETH/USDC
  spread_threshold: 0.01
  trade_size_usdc: 1000
  reactive_mode: true
discord:
  webhook_url: https://discord.com/api/webhooks/x
`))
	require.NoError(t, err)

	assert.Equal(t, "TESTNET", cfg.Mode)
	assert.Equal(t, []string{"SOL/USDC", "ETH/USDC"}, cfg.Trading.Pairs)
	assert.Equal(t, 0.01, cfg.Trading.SpreadThreshold)
	assert.True(t, cfg.Trading.ReactiveMode)
	assert.Equal(t, "https://discord.com/api/webhooks/x", cfg.Discord.WebhookURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPREAD_THRESHOLD", "0.02")
	t.Setenv("TRADE_SIZE_USDC", "250")
	t.Setenv("ENABLE_TESTNET_TRADING", "true")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/env")
	t.Setenv("BINANCE_TESTNET_API_KEY", "env-key")

	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Trading.SpreadThreshold)
	assert.Equal(t, 250.0, cfg.Trading.TradeSizeUSDC)
	assert.True(t, cfg.Trading.ReactiveMode)
	assert.Equal(t, "https://discord.com/api/webhooks/env", cfg.Discord.WebhookURL)
	assert.Equal(t, "env-key", cfg.Spot.APIKey)
}

func TestValidateRejectsBadTradeSize(t *testing.T) {
	_, err := Load(writeConfig(t, `
trading:
  trade_size_usdc: -5
`))
	assert.Error(t, err)
}

func TestValidateRejectsEmptyPairs(t *testing.T) {
	_, err := Load(writeConfig(t, `
trading:
  pairs: []
`))
	assert.Error(t, err)
}
