package moonveil

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is one private key being processed. It is never persisted.
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// NewAccount parses a hex private key with or without 0x prefix
func NewAccount(hexKey string) (*Account, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Join(ErrInvalidPrivateKey, err)
	}
	return &Account{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// LoadAccounts parses every key, reporting the 1-based line of the first bad one
func LoadAccounts(hexKeys []string) ([]*Account, error) {
	accounts := make([]*Account, 0, len(hexKeys))
	for i, k := range hexKeys {
		acc, err := NewAccount(k)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i+1, err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}
