// Package wallet defines the provider interface the network synchronizer
// drives. Implementations live in the local and remote subpackages.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/oftbridge/internal/registry"
)

var (
	// ErrUserRejected is returned when the user declines a prompt.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrUnknownChain is returned by SwitchChain when the wallet has not
	// registered the target chain.
	ErrUnknownChain = errors.New("unrecognized chain")
	// ErrNoAccounts is returned when the wallet exposes no account.
	ErrNoAccounts = errors.New("wallet has no accounts")
)

type EventKind string

const (
	EventChainChanged    EventKind = "chainChanged"
	EventAccountsChanged EventKind = "accountsChanged"
)

// Event is a change notification emitted by the wallet.
type Event struct {
	Kind     EventKind
	ChainID  int64
	Accounts []common.Address
}

// Tx is a transaction request. The wallet picks nonce and fees.
type Tx struct {
	From    common.Address
	To      common.Address
	Data    []byte
	Value   *big.Int
	ChainID int64
}

// Provider is an EIP-1193 style wallet.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	AddChain(ctx context.Context, chain registry.ChainDescriptor) error
	SendTransaction(ctx context.Context, tx Tx) (common.Hash, error)
	Events() <-chan Event
	Close() error
}

// SameAccounts reports whether two account lists are equal in order.
func SameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
