// Package config loads the run configuration. The file is YAML; JSON is valid
// YAML, so a config.json works unchanged.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// AmountRange is an ether amount range. Values may be written as numbers or strings.
type AmountRange struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

// CountRange is an inclusive range of operation counts
type CountRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type DirectionConfig struct {
	Enabled bool        `yaml:"enabled"`
	Amount  AmountRange `yaml:"amount"`
	Count   CountRange  `yaml:"count"`
}

type BridgeConfig struct {
	Contract   string          `yaml:"contract"`
	ToSepolia  DirectionConfig `yaml:"to_sepolia"`
	ToMoonveil DirectionConfig `yaml:"to_moonveil"`
}

type NetworkConfig struct {
	RPCURL      string  `yaml:"rpc_url"`
	ChainID     uint64  `yaml:"chain_id"`
	Symbol      string  `yaml:"symbol"`
	ExplorerURL string  `yaml:"explorer_url"`
	MinGwei     float64 `yaml:"min_gwei"`
	MaxGwei     float64 `yaml:"max_gwei"`
	TransferGas uint64  `yaml:"transfer_gas"`
	BridgeGas   uint64  `yaml:"bridge_gas"`
}

type FaucetConfig struct {
	URL           string            `yaml:"url"`
	Headers       map[string]string `yaml:"headers"`
	RatePerSecond float64           `yaml:"rate_per_second"`
	Timeout       time.Duration     `yaml:"timeout"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

type Config struct {
	EnableFaucet   bool `yaml:"enable_faucet"`
	EnableTransfer bool `yaml:"enable_transfer"`
	EnableBridge   bool `yaml:"enable_bridge"`

	GasPriceMultiplier       float64 `yaml:"gas_price_multiplier"`
	GasRetryGrowth           float64 `yaml:"gas_retry_growth"` // gas price factor per retry
	MaxRetries               int     `yaml:"max_retries"`
	BaseWaitTime             float64 `yaml:"base_wait_time"` // seconds
	TransferAmountPercentage int64   `yaml:"transfer_amount_percentage"`

	Bridge   BridgeConfig             `yaml:"bridge"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Faucet   FaucetConfig             `yaml:"faucet"`
	Breaker  BreakerConfig            `yaml:"breaker"`

	ProxiesFile     string        `yaml:"proxies_file"`
	PrivateKeysFile string        `yaml:"private_keys_file"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	ConfirmTimeout  time.Duration `yaml:"confirm_timeout"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	CycleHours      float64       `yaml:"cycle_hours"`
}

func defaultDirection(enabled bool) DirectionConfig {
	return DirectionConfig{
		Enabled: enabled,
		Amount:  AmountRange{Min: "0.00001", Max: "0.0001"},
		Count:   CountRange{Min: 1, Max: 3},
	}
}

// DefaultNetworks returns the built-in network settings. Moonveil has no
// public default endpoint and its chain id is read from the node.
func DefaultNetworks() map[string]NetworkConfig {
	return map[string]NetworkConfig{
		"moonveil": {
			Symbol:      "ETH",
			MinGwei:     1,
			MaxGwei:     100,
			TransferGas: 21000,
			BridgeGas:   194919,
		},
		"sepolia": {
			RPCURL:      "https://rpc.ankr.com/eth_sepolia",
			ChainID:     11155111,
			Symbol:      "ETH",
			ExplorerURL: "https://sepolia.etherscan.io",
			MinGwei:     1,
			MaxGwei:     100,
			TransferGas: 21000,
			BridgeGas:   327633,
		},
	}
}

// Default returns the configuration used for every key a file leaves unset
func Default() Config {
	return Config{
		EnableFaucet:             true,
		EnableTransfer:           true,
		EnableBridge:             true,
		GasPriceMultiplier:       1.1,
		GasRetryGrowth:           1.2,
		MaxRetries:               5,
		BaseWaitTime:             10,
		TransferAmountPercentage: 90,
		Bridge: BridgeConfig{
			ToSepolia:  defaultDirection(true),
			ToMoonveil: defaultDirection(false),
		},
		Networks: DefaultNetworks(),
		Faucet: FaucetConfig{
			Timeout: 30 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Cooldown:         30 * time.Second,
		},
		ProxiesFile:     "proxy.txt",
		PrivateKeysFile: "pk.txt",
		RPCTimeout:      30 * time.Second,
		CycleHours:      8,
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	// networks are decoded apart so a partial entry keeps its defaults
	cfg.Networks = nil
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Networks = mergeNetworks(DefaultNetworks(), cfg.Networks)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func mergeNetworks(defaults, overrides map[string]NetworkConfig) map[string]NetworkConfig {
	for name, o := range overrides {
		d := defaults[name]
		if o.RPCURL != "" {
			d.RPCURL = o.RPCURL
		}
		if o.ChainID != 0 {
			d.ChainID = o.ChainID
		}
		if o.Symbol != "" {
			d.Symbol = o.Symbol
		}
		if o.ExplorerURL != "" {
			d.ExplorerURL = o.ExplorerURL
		}
		if o.MinGwei != 0 {
			d.MinGwei = o.MinGwei
		}
		if o.MaxGwei != 0 {
			d.MaxGwei = o.MaxGwei
		}
		if o.TransferGas != 0 {
			d.TransferGas = o.TransferGas
		}
		if o.BridgeGas != 0 {
			d.BridgeGas = o.BridgeGas
		}
		defaults[name] = d
	}
	return defaults
}

func invalid(format string, args ...any) error {
	return errors.Join(ErrInvalidConfig, fmt.Errorf(format, args...))
}

// Validate checks the values the engine cannot run without
func (c Config) Validate() error {
	if c.GasPriceMultiplier <= 0 {
		return invalid("gas_price_multiplier must be positive, got %v", c.GasPriceMultiplier)
	}
	if c.GasRetryGrowth < 1 {
		return invalid("gas_retry_growth must be at least 1, got %v", c.GasRetryGrowth)
	}
	if c.MaxRetries < 1 {
		return invalid("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.BaseWaitTime < 0 {
		return invalid("base_wait_time cannot be negative, got %v", c.BaseWaitTime)
	}
	if c.TransferAmountPercentage < 1 || c.TransferAmountPercentage > 100 {
		return invalid("transfer_amount_percentage must be within [1, 100], got %d", c.TransferAmountPercentage)
	}
	if c.Faucet.RatePerSecond < 0 {
		return invalid("faucet.rate_per_second cannot be negative")
	}

	for name, n := range c.Networks {
		if n.MinGwei < 0 || n.MaxGwei <= 0 || n.MinGwei > n.MaxGwei {
			return invalid("networks.%s: gas bounds [%v, %v] gwei are invalid", name, n.MinGwei, n.MaxGwei)
		}
	}

	if c.EnableFaucet {
		if c.Faucet.URL == "" {
			return invalid("faucet.url is required when enable_faucet is set")
		}
		if err := c.requireRPC("moonveil"); err != nil {
			return err
		}
	}
	if c.EnableTransfer {
		if err := c.requireRPC("moonveil"); err != nil {
			return err
		}
	}
	if c.EnableBridge {
		if !common.IsHexAddress(c.Bridge.Contract) {
			return invalid("bridge.contract %q is not an address", c.Bridge.Contract)
		}
		for name, d := range c.Directions() {
			if !d.Enabled {
				continue
			}
			if _, _, err := d.Amounts(); err != nil {
				return invalid("bridge.%s: %v", name, err)
			}
			if err := c.requireRPC("moonveil"); err != nil {
				return err
			}
			if err := c.requireRPC("sepolia"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c Config) requireRPC(network string) error {
	n, ok := c.Networks[network]
	if !ok || n.RPCURL == "" {
		return invalid("networks.%s.rpc_url is required", network)
	}
	return nil
}

// Directions returns the bridge directions keyed by name
func (c Config) Directions() map[string]DirectionConfig {
	return map[string]DirectionConfig{
		"to_sepolia":  c.Bridge.ToSepolia,
		"to_moonveil": c.Bridge.ToMoonveil,
	}
}

// Amounts parses the amount range as ether values
func (d DirectionConfig) Amounts() (float64, float64, error) {
	lo, err := strconv.ParseFloat(strings.TrimSpace(d.Amount.Min), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("amount.min %q: %w", d.Amount.Min, err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(d.Amount.Max), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("amount.max %q: %w", d.Amount.Max, err)
	}
	if lo < 0 || hi < lo {
		return 0, 0, fmt.Errorf("amount range [%s, %s] is invalid", d.Amount.Min, d.Amount.Max)
	}
	return lo, hi, nil
}

// BaseWait returns base_wait_time as a duration
func (c Config) BaseWait() time.Duration {
	return time.Duration(c.BaseWaitTime * float64(time.Second))
}

// CycleInterval returns cycle_hours as a duration
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleHours * float64(time.Hour))
}

// ReadLines returns the trimmed non-empty lines of path. Lines starting with
// '#' are skipped.
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// LoadProxies reads the proxy list. A missing file means no proxies.
func LoadProxies(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	lines, err := ReadLines(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return lines, err
}

// LoadPrivateKeys reads the private key list. At least one key is required.
func LoadPrivateKeys(path string) ([]string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("load private keys: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("load private keys: %s has no keys", path)
	}
	return lines, nil
}
