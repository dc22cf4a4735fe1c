package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
log_level: debug
confirmation_timeout: 90s
networks:
  base:
    rpc_url: https://mainnet.base.org
    chain_id: 8453
    explorer_url: https://basescan.org
    gas_limit: 150000
strategies:
  - asset: usd
    duration: 30d
    kind: stable
    network: base
    token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
    vault_address: "0x1111111111111111111111111111111111111111"
    token_decimals: 6
    token_symbol: USDC
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Setenv("VAULT_DEPOSIT_PRIVATE_KEY", "0xabc")

	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "0xabc", cfg.PrivateKey)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, DefaultReceiptPollInterval, cfg.ReceiptPollInterval)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)

	require.Contains(t, cfg.Networks, "base")
	base := cfg.Networks["base"]
	assert.Equal(t, uint64(8453), base.ChainID)
	require.NotNil(t, base.GasLimit)
	assert.Equal(t, uint64(150000), *base.GasLimit)
	assert.Nil(t, base.GasPrice)

	require.Len(t, cfg.Strategies, 1)
	assert.Equal(t, uint8(6), cfg.Strategies[0].TokenDecimals)
	assert.Equal(t, "stable", cfg.Strategies[0].Kind)

	name, _, ok := cfg.NetworkByChainID(8453)
	assert.True(t, ok)
	assert.Equal(t, "base", name)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	t.Setenv("VAULT_DEPOSIT_LOG_LEVEL", "warn")

	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFile_UnknownNetwork(t *testing.T) {
	body := `
networks:
  base:
    rpc_url: https://mainnet.base.org
    chain_id: 8453
strategies:
  - asset: usd
    duration: 30d
    kind: stable
    network: arbitrum
`
	_, err := LoadFile(writeConfig(t, body))
	assert.ErrorContains(t, err, `network "arbitrum" not configured`)
}

func TestValidate_MissingChainID(t *testing.T) {
	cfg := &Config{
		ConfirmationTimeout: time.Minute,
		Networks:            map[string]NetworkConfig{"base": {RPCUrl: "http://x"}},
	}
	assert.ErrorContains(t, cfg.Validate(), "chain_id is required")
}

func TestRequireSigner(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireSigner())

	cfg.PrivateKey = "0x01"
	assert.NoError(t, cfg.RequireSigner())
}
