package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
networks:
  moonveil:
    rpc_url: https://rpc.moonveil.example
faucet:
  url: https://faucet.example/api/claim
bridge:
  contract: "0x528e26b25a34a4A5d0dbDa1d57D318153d2ED582"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsMergedPerKey(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", minimalYAML))
	require.NoError(t, err)

	assert.True(t, cfg.EnableFaucet)
	assert.True(t, cfg.EnableTransfer)
	assert.True(t, cfg.EnableBridge)
	assert.Equal(t, 1.1, cfg.GasPriceMultiplier)
	assert.Equal(t, 1.2, cfg.GasRetryGrowth)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.BaseWait())
	assert.Equal(t, int64(90), cfg.TransferAmountPercentage)
	assert.Equal(t, 8*time.Hour, cfg.CycleInterval())

	assert.True(t, cfg.Bridge.ToSepolia.Enabled)
	assert.False(t, cfg.Bridge.ToMoonveil.Enabled)
	assert.Equal(t, AmountRange{Min: "0.00001", Max: "0.0001"}, cfg.Bridge.ToSepolia.Amount)
	assert.Equal(t, CountRange{Min: 1, Max: 3}, cfg.Bridge.ToSepolia.Count)

	moonveil := cfg.Networks["moonveil"]
	assert.Equal(t, "https://rpc.moonveil.example", moonveil.RPCURL)
	assert.Equal(t, uint64(0), moonveil.ChainID)
	assert.Equal(t, uint64(194919), moonveil.BridgeGas)
	assert.Equal(t, 100.0, moonveil.MaxGwei)

	sepolia := cfg.Networks["sepolia"]
	assert.Equal(t, uint64(11155111), sepolia.ChainID)
	assert.Equal(t, uint64(327633), sepolia.BridgeGas)
	assert.NotEmpty(t, sepolia.RPCURL)
}

func TestLoad_JSONConfig(t *testing.T) {
	// amounts may be written as strings or numbers
	const content = `{
  "enable_faucet": false,
  "enable_transfer": true,
  "enable_bridge": true,
  "gas_price_multiplier": 1.5,
  "gas_retry_growth": 1.25,
  "max_retries": 3,
  "base_wait_time": 2.5,
  "transfer_amount_percentage": 80,
  "bridge": {
    "contract": "0x528e26b25a34a4A5d0dbDa1d57D318153d2ED582",
    "to_sepolia": {"enabled": false},
    "to_moonveil": {"enabled": true, "amount": {"min": "0.0002", "max": 0.0005}, "count": {"min": 2, "max": 4}}
  },
  "networks": {"moonveil": {"rpc_url": "https://rpc.moonveil.example", "max_gwei": 50}},
  "confirm_timeout": "90s"
}`
	cfg, err := Load(writeConfig(t, "config.json", content))
	require.NoError(t, err)

	assert.False(t, cfg.EnableFaucet)
	assert.Equal(t, 1.5, cfg.GasPriceMultiplier)
	assert.Equal(t, 1.25, cfg.GasRetryGrowth)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2500*time.Millisecond, cfg.BaseWait())
	assert.Equal(t, int64(80), cfg.TransferAmountPercentage)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)

	assert.False(t, cfg.Bridge.ToSepolia.Enabled)
	assert.Equal(t, "0.00001", cfg.Bridge.ToSepolia.Amount.Min, "unset keys keep their defaults")

	lo, hi, err := cfg.Bridge.ToMoonveil.Amounts()
	require.NoError(t, err)
	assert.Equal(t, 0.0002, lo)
	assert.Equal(t, 0.0005, hi)
	assert.Equal(t, CountRange{Min: 2, Max: 4}, cfg.Bridge.ToMoonveil.Count)

	moonveil := cfg.Networks["moonveil"]
	assert.Equal(t, 50.0, moonveil.MaxGwei)
	assert.Equal(t, 1.0, moonveil.MinGwei, "partial network entries keep defaults")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	_, err := Load(writeConfig(t, "empty.yaml", ""))
	assert.ErrorIs(t, err, ErrInvalidConfig, "defaults alone lack the faucet url")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.yaml", "max_retries: [1, 2"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Faucet.URL = "https://faucet.example"
		cfg.Bridge.Contract = "0x528e26b25a34a4A5d0dbDa1d57D318153d2ED582"
		n := cfg.Networks["moonveil"]
		n.RPCURL = "https://rpc.moonveil.example"
		cfg.Networks["moonveil"] = n
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero multiplier", func(c *Config) { c.GasPriceMultiplier = 0 }},
		{"shrinking retry growth", func(c *Config) { c.GasRetryGrowth = 0.9 }},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }},
		{"negative wait", func(c *Config) { c.BaseWaitTime = -1 }},
		{"percentage above 100", func(c *Config) { c.TransferAmountPercentage = 101 }},
		{"percentage zero", func(c *Config) { c.TransferAmountPercentage = 0 }},
		{"faucet without url", func(c *Config) { c.Faucet.URL = "" }},
		{"negative faucet rate", func(c *Config) { c.Faucet.RatePerSecond = -1 }},
		{"bridge without contract", func(c *Config) { c.Bridge.Contract = "" }},
		{"bad amount", func(c *Config) { c.Bridge.ToSepolia.Amount.Min = "abc" }},
		{"inverted amounts", func(c *Config) { c.Bridge.ToSepolia.Amount = AmountRange{Min: "1", Max: "0.5"} }},
		{"inverted gas bounds", func(c *Config) {
			n := c.Networks["sepolia"]
			n.MinGwei, n.MaxGwei = 10, 5
			c.Networks["sepolia"] = n
		}},
		{"moonveil without rpc", func(c *Config) {
			n := c.Networks["moonveil"]
			n.RPCURL = ""
			c.Networks["moonveil"] = n
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("disabled steps need nothing", func(t *testing.T) {
		cfg := Default()
		cfg.EnableFaucet = false
		cfg.EnableTransfer = false
		cfg.EnableBridge = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("disabled direction amounts are not checked", func(t *testing.T) {
		cfg := valid()
		cfg.Bridge.ToMoonveil.Amount.Min = "abc"
		assert.NoError(t, cfg.Validate())
	})
}

func TestReadLines(t *testing.T) {
	path := writeConfig(t, "proxy.txt", "  10.0.0.1:8080 \n\n# comment\nuser:pass@10.0.0.2:8080\n")

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:8080", "user:pass@10.0.0.2:8080"}, lines)
}

func TestLoadProxies(t *testing.T) {
	proxies, err := LoadProxies(filepath.Join(t.TempDir(), "proxy.txt"))
	require.NoError(t, err, "a missing proxy file means no proxies")
	assert.Empty(t, proxies)

	proxies, err = LoadProxies("")
	require.NoError(t, err)
	assert.Empty(t, proxies)
}

func TestLoadPrivateKeys(t *testing.T) {
	_, err := LoadPrivateKeys(filepath.Join(t.TempDir(), "pk.txt"))
	assert.Error(t, err)

	_, err = LoadPrivateKeys(writeConfig(t, "pk.txt", "\n\n"))
	assert.Error(t, err)

	keys, err := LoadPrivateKeys(writeConfig(t, "pk.txt", "0xabc\ndef\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc", "def"}, keys)
}
