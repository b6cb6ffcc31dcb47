package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, partitioned by operation and network.

var (
	// Pipeline
	PipelineAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "pipeline",
		Name:      "attempts_total",
		Help:      "Total sign-and-broadcast attempts",
	}, []string{"network", "kind"})

	PipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "pipeline",
		Name:      "outcomes_total",
		Help:      "Total attempt outcomes by classification",
	}, []string{"network", "outcome"})

	PipelineBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "pipeline",
		Name:      "broadcasts_total",
		Help:      "Total signed transactions handed to the network",
	}, []string{"network"})

	// Faucet
	FaucetRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "faucet",
		Name:      "requests_total",
		Help:      "Total faucet HTTP requests by classification",
	}, []string{"outcome"})

	FaucetBalanceConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "faucet",
		Name:      "balance_confirmations_total",
		Help:      "Total post-claim balance waits by result",
	}, []string{"result"})

	// Bridge
	BridgeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "bridge",
		Name:      "operations_total",
		Help:      "Total bridge operations by final outcome",
	}, []string{"direction", "outcome"})

	// Runner
	AccountsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moonveil",
		Subsystem: "runner",
		Name:      "accounts_total",
		Help:      "Total accounts processed by result",
	}, []string{"result"})
)
