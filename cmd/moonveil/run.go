package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	moonveil "github.com/Usernameusernamenotavailbleisnot/m00nv3il"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/config"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/circuitbreaker"
)

func runCmd() *cobra.Command {
	var (
		configPath  string
		once        bool
		cycleHours  float64
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every account, then repeat on a cycle",
		Long: `Load the configuration, the private keys and the optional proxy list,
then process every account. Without --once the pass repeats every
cycle_hours hours.

Example:
  moonveil run -f ./config.json --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(FlagCycleHours) {
				cfg.CycleHours = cycleHours
			}
			if cmd.Flags().Changed(FlagMetrics) {
				cfg.MetricsAddr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, once)
		},
	}

	cmd.Flags().StringVarP(&configPath, FlagConfigFile, "f", "config.json", "Path to the configuration file")
	cmd.Flags().BoolVar(&once, FlagOnce, false, "Run a single pass and exit")
	cmd.Flags().Float64Var(&cycleHours, FlagCycleHours, 8, "Hours between two passes")
	cmd.Flags().StringVar(&metricsAddr, FlagMetrics, "", "Serve Prometheus metrics on this address")

	return cmd
}

func run(ctx context.Context, cfg config.Config, once bool) error {
	keys, err := config.LoadPrivateKeys(cfg.PrivateKeysFile)
	if err != nil {
		return err
	}
	accounts, err := moonveil.LoadAccounts(keys)
	if err != nil {
		return err
	}
	proxies, err := config.LoadProxies(cfg.ProxiesFile)
	if err != nil {
		return err
	}

	clients, closeAll, err := dialNetworks(ctx, &cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	runner, err := moonveil.NewEngine(cfg, moonveil.Dependencies{
		Clients: clients,
		Poster:  moonveil.NewHTTPClient(cfg.Faucet.Timeout),
		Proxies: proxies,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.WithFields(logger.Fields{
		"accounts": len(accounts),
		"proxies":  len(proxies),
	}).Info("loaded accounts")

	interval := cfg.CycleInterval()
	if once {
		interval = 0
	}
	err = runner.Loop(ctx, accounts, interval)
	if errors.Is(err, context.Canceled) {
		logger.WithFields(logger.Fields{"reason": err}).Info("stopped")
		return nil
	}
	return err
}

// neededNetworks lists the networks the enabled steps talk to
func neededNetworks(cfg config.Config) []string {
	need := map[string]bool{}
	if cfg.EnableFaucet || cfg.EnableTransfer {
		need[chain.Moonveil] = true
	}
	if cfg.EnableBridge {
		for _, d := range cfg.Directions() {
			if d.Enabled {
				need[chain.Moonveil] = true
				need[chain.Sepolia] = true
			}
		}
	}
	var names []string
	for _, name := range []string{chain.Moonveil, chain.Sepolia} {
		if need[name] {
			names = append(names, name)
		}
	}
	return names
}

// dialNetworks connects to every needed network and records chain ids read
// from the node back into cfg
func dialNetworks(ctx context.Context, cfg *config.Config) (map[string]chain.Client, func(), error) {
	clients := make(map[string]chain.Client)
	var opened []*chain.EthClient
	closeAll := func() {
		for _, c := range opened {
			c.Close()
		}
	}

	for _, name := range neededNetworks(*cfg) {
		netCfg := cfg.Networks[name]
		eth, err := chain.Dial(ctx, netCfg.RPCURL, netCfg.ChainID, cfg.RPCTimeout)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		opened = append(opened, eth)
		netCfg.ChainID = eth.ChainID().Uint64()
		cfg.Networks[name] = netCfg

		clients[name] = chain.NewGuarded(eth, circuitbreaker.Config{
			Name:             name,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			Cooldown:         cfg.Breaker.Cooldown,
		})
		logger.WithFields(logger.Fields{
			"network":  name,
			"chain_id": netCfg.ChainID,
		}).Info("connected")
	}
	return clients, closeAll, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logger.Fields{
				"addr":  addr,
				"error": err,
			}).Error("metrics server stopped")
		}
	}()
	logger.WithFields(logger.Fields{"addr": addr}).Info("serving metrics")
	return srv
}
