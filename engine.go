package moonveil

import (
	"fmt"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/config"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/bridge"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/retry"
)

// NewNetwork builds the context of network name from its configuration
func NewNetwork(name string, cfg config.NetworkConfig, multiplier float64, client chain.Client) (*chain.Network, error) {
	n := &chain.Network{
		Name:               name,
		ChainID:            cfg.ChainID,
		BridgeNetworkID:    bridge.NetworkID(name),
		Symbol:             cfg.Symbol,
		ExplorerURL:        cfg.ExplorerURL,
		MinGasPrice:        chain.GweiToWei(cfg.MinGwei),
		MaxGasPrice:        chain.GweiToWei(cfg.MaxGwei),
		GasMultiplier:      multiplier,
		DefaultTransferGas: cfg.TransferGas,
		DefaultBridgeGas:   cfg.BridgeGas,
		Client:             client,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// BridgeSpecs converts the configured directions to operation specs
func BridgeSpecs(cfg config.Config) ([]BridgeOperationSpec, error) {
	var specs []BridgeOperationSpec
	for _, dir := range bridge.Directions() {
		d, ok := cfg.Directions()[dir.Name]
		if !ok {
			continue
		}
		spec := BridgeOperationSpec{
			Direction: dir,
			Enabled:   d.Enabled,
			CountMin:  d.Count.Min,
			CountMax:  d.Count.Max,
		}
		if d.Enabled {
			lo, hi, err := d.Amounts()
			if err != nil {
				return nil, fmt.Errorf("bridge.%s: %w", dir.Name, err)
			}
			spec.AmountMin, spec.AmountMax = lo, hi
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Dependencies are the external capabilities an engine is built around
type Dependencies struct {
	// Clients maps a network name to its node client
	Clients map[string]chain.Client
	Poster  HTTPPoster
	Proxies []string
}

// NewEngine wires a Runner from cfg. Steps disabled in cfg are left out. Only
// networks with a client are built.
func NewEngine(cfg config.Config, deps Dependencies) (*Runner, error) {
	networks := make(map[string]*chain.Network)
	for name, client := range deps.Clients {
		netCfg, ok := cfg.Networks[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, name)
		}
		n, err := NewNetwork(name, netCfg, cfg.GasPriceMultiplier, client)
		if err != nil {
			return nil, err
		}
		networks[name] = n
	}

	pipeline := NewPipeline(
		WithConfirmation(cfg.ConfirmTimeout, DefaultReceiptInterval),
		WithRetryGrowth(cfg.GasRetryGrowth),
	)
	opts := []RunnerOption{}

	if cfg.EnableFaucet {
		moonveil, ok := networks[chain.Moonveil]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, chain.Moonveil)
		}
		faucet, err := NewFaucetFlow(cfg.Faucet.URL, deps.Poster, moonveil, cfg.BaseWait(), cfg.MaxRetries,
			WithFaucetHeaders(cfg.Faucet.Headers),
			WithProxies(deps.Proxies),
			WithRateLimit(cfg.Faucet.RatePerSecond),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithFaucet(faucet))
	}

	if cfg.EnableTransfer {
		moonveil, ok := networks[chain.Moonveil]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, chain.Moonveil)
		}
		controller := retry.New("transfer", cfg.BaseWait())
		opts = append(opts, WithTransfer(NewTransferFlow(pipeline, controller, moonveil, cfg.TransferAmountPercentage, cfg.MaxRetries)))
	}

	if cfg.EnableBridge {
		specs, err := BridgeSpecs(cfg)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			if !spec.Enabled {
				continue
			}
			for _, name := range []string{spec.Direction.Source, spec.Direction.Target} {
				if _, ok := networks[name]; !ok {
					return nil, fmt.Errorf("%w: %s needed by %s", ErrNetworkNotFound, name, spec.Direction.Name)
				}
			}
		}
		controller := retry.New("bridge", cfg.BaseWait())
		scheduler := NewBridgeScheduler(pipeline, controller, networks, common.HexToAddress(cfg.Bridge.Contract), cfg.MaxRetries)
		opts = append(opts, WithBridge(scheduler, specs))
	}

	logger.WithFields(logger.Fields{
		"faucet":          cfg.EnableFaucet,
		"transfer":        cfg.EnableTransfer,
		"bridge":          cfg.EnableBridge,
		"networks":        len(networks),
		"proxies":         len(deps.Proxies),
		"max_retries":     cfg.MaxRetries,
		"retry_growth":    cfg.GasRetryGrowth,
		"base_wait":       cfg.BaseWait().String(),
		"confirm_timeout": cfg.ConfirmTimeout.String(),
	}).Info("engine configured")

	return NewRunner(pipeline, opts...), nil
}
