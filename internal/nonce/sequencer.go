// Package nonce sequences transaction nonces for the account being processed.
// This is an internal package and should not be imported directly by external code.
package nonce

import (
	"context"
	"errors"
	"fmt"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

type key struct {
	wallet  common.Address
	chainID uint64
}

// Sequencer caches the next nonce per wallet and network.
// It is not safe for concurrent use: one Sequencer serves one account at a time.
type Sequencer struct {
	next map[key]uint64
}

// NewSequencer creates an empty sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[key]uint64)}
}

// Next returns the nonce to use for the next transaction of wallet on network.
// The first call per (wallet, network) reads the pending transaction count,
// later calls return the cached value until Advance is called.
func (s *Sequencer) Next(ctx context.Context, wallet common.Address, network *chain.Network) (uint64, error) {
	k := key{wallet: wallet, chainID: network.ChainID}
	if n, ok := s.next[k]; ok {
		logger.WithFields(logger.Fields{
			"wallet":   wallet.Hex(),
			"network":  network.Name,
			"chain_id": network.ChainID,
			"nonce":    n,
		}).Debug("nonce: using tracked nonce")
		return n, nil
	}

	n, err := network.Client.TransactionCount(ctx, wallet)
	if err != nil {
		return 0, errors.Join(ErrNonceUnavailable, fmt.Errorf("%s: %w", network.Name, err))
	}
	s.next[k] = n

	logger.WithFields(logger.Fields{
		"wallet":   wallet.Hex(),
		"network":  network.Name,
		"chain_id": network.ChainID,
		"nonce":    n,
	}).Debug("nonce: initial nonce from network")
	return n, nil
}

// Advance moves the cached nonce forward by exactly one. It must be called
// once per transaction handed to broadcast, whether or not the broadcast
// succeeds. Unknown nonces stay unknown.
func (s *Sequencer) Advance(wallet common.Address, network *chain.Network) {
	k := key{wallet: wallet, chainID: network.ChainID}
	n, ok := s.next[k]
	if !ok {
		logger.WithFields(logger.Fields{
			"wallet":   wallet.Hex(),
			"network":  network.Name,
			"chain_id": network.ChainID,
		}).Debug("nonce: advance skipped, nonce not tracked")
		return
	}
	s.next[k] = n + 1

	logger.WithFields(logger.Fields{
		"wallet":    wallet.Hex(),
		"network":   network.Name,
		"chain_id":  network.ChainID,
		"old_nonce": n,
		"new_nonce": n + 1,
	}).Debug("nonce: advanced")
}

// Sync re-reads the pending transaction count and moves the cached nonce up
// to it when the network is ahead. The cached nonce never moves backwards.
func (s *Sequencer) Sync(ctx context.Context, wallet common.Address, network *chain.Network) error {
	remote, err := network.Client.TransactionCount(ctx, wallet)
	if err != nil {
		return errors.Join(ErrNonceUnavailable, fmt.Errorf("%s: %w", network.Name, err))
	}
	k := key{wallet: wallet, chainID: network.ChainID}
	local, ok := s.next[k]
	if ok && local >= remote {
		logger.WithFields(logger.Fields{
			"wallet":       wallet.Hex(),
			"network":      network.Name,
			"chain_id":     network.ChainID,
			"local_nonce":  local,
			"remote_nonce": remote,
		}).Debug("nonce: sync kept local nonce")
		return nil
	}
	s.next[k] = remote

	logger.WithFields(logger.Fields{
		"wallet":       wallet.Hex(),
		"network":      network.Name,
		"chain_id":     network.ChainID,
		"remote_nonce": remote,
	}).Debug("nonce: synced to network")
	return nil
}

// Peek returns the cached next nonce without touching the network
func (s *Sequencer) Peek(wallet common.Address, chainID uint64) (uint64, bool) {
	n, ok := s.next[key{wallet: wallet, chainID: chainID}]
	return n, ok
}

// Reset forgets every tracked nonce. Called when a new account starts.
func (s *Sequencer) Reset() {
	if len(s.next) > 0 {
		logger.WithFields(logger.Fields{
			"tracked": len(s.next),
		}).Debug("nonce: reset")
	}
	s.next = make(map[key]uint64)
}
