package network

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/session"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
)

// ChainClient is the read side of a connection to one chain.
type ChainClient interface {
	oft.ContractCaller
	execution.ReceiptReader
	Close()
}

// Dialer opens a ChainClient for a chain's RPC endpoint.
type Dialer func(ctx context.Context, chain registry.ChainDescriptor) (ChainClient, error)

func DialEthclient(ctx context.Context, chain registry.ChainDescriptor) (ChainClient, error) {
	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Connection binds the wallet account to the chain the wallet was on when
// the connection was built. It is never updated in place; a chain or account
// change produces a new Connection.
type Connection struct {
	chain   registry.ChainDescriptor
	known   bool
	account common.Address
	client  ChainClient
	wallet  wallet.Provider
	exec    execution.ExecuteOptions
}

func (c *Connection) Chain() registry.ChainDescriptor { return c.chain }

func (c *Connection) ChainID() int64 { return c.chain.ChainID }

// Known reports whether the active chain is one of the configured chains.
func (c *Connection) Known() bool { return c.known }

func (c *Connection) Account() common.Address { return c.account }

// Caller reads contracts on the connection's chain.
func (c *Connection) Caller() oft.ContractCaller {
	if c.client == nil {
		return unavailableCaller{}
	}
	return c.client
}

// Simulate runs the call through eth_call from the connected account. It is
// a no-op when preflight simulation is disabled.
func (c *Connection) Simulate(ctx context.Context, to common.Address, data []byte, value *big.Int) error {
	if c.client == nil {
		return clierr.New(clierr.CodeWrongNetwork, "wallet is on an unsupported network")
	}
	if !c.exec.Simulate {
		return nil
	}
	return execution.Preflight(ctx, c.client, c.account, execution.TxRequest{To: to, Data: data, Value: value})
}

// Submit asks the wallet to sign and broadcast the call on this
// connection's chain.
func (c *Connection) Submit(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	hash, err := c.wallet.SendTransaction(ctx, wallet.Tx{
		From:    c.account,
		To:      to,
		Data:    data,
		Value:   value,
		ChainID: c.chain.ChainID,
	})
	if err != nil {
		return common.Hash{}, walletError("send transaction", err)
	}
	return hash, nil
}

// WaitReceipt blocks until the transaction is mined on this chain.
func (c *Connection) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.waitReceipt(ctx, hash, nil)
}

func (c *Connection) waitReceipt(ctx context.Context, hash common.Hash, check func() error) (*types.Receipt, error) {
	if c.client == nil {
		return nil, clierr.New(clierr.CodeWrongNetwork, "wallet is on an unsupported network")
	}
	return execution.WaitForReceipt(ctx, c.client, hash, c.exec, check)
}

// Handle is what a flow holds: the connection plus the session token that
// was current when it was acquired.
type Handle struct {
	Conn  *Connection
	Token session.Token
	guard *session.Guard
}

// Checkpoint fails with a superseded error once the session moved on.
func (h Handle) Checkpoint() error {
	return h.guard.Check(h.Token)
}

// Send simulates the call, re-checks the session and hands the transaction
// to the wallet. Once submitted the transaction completes on-chain even if
// the session moves on.
func (h Handle) Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}
	if err := h.Conn.Simulate(ctx, to, data, value); err != nil {
		return common.Hash{}, h.Result(err)
	}
	if err := h.Checkpoint(); err != nil {
		return common.Hash{}, err
	}
	hash, err := h.Conn.Submit(ctx, to, data, value)
	return hash, h.Result(err)
}

// WaitReceipt waits for hash on the handle's connection and gives up at the
// first poll after the session moves on.
func (h Handle) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := h.Conn.waitReceipt(ctx, hash, h.Checkpoint)
	return receipt, h.Result(err)
}

// Result turns err into a superseded error when the session moved on, so a
// failure caused by a torn-down connection is dropped like any stale flow.
func (h Handle) Result(err error) error {
	if err == nil {
		return nil
	}
	if cerr := h.Checkpoint(); cerr != nil {
		return cerr
	}
	return err
}

type unavailableCaller struct{}

func (unavailableCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, clierr.New(clierr.CodeWrongNetwork, "wallet is on an unsupported network")
}

func walletError(op string, err error) error {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return clierr.Wrap(clierr.CodeUserRejected, op+": rejected in wallet", err)
	case errors.Is(err, wallet.ErrUnknownChain):
		return clierr.Wrap(clierr.CodeUnknownChain, op+": wallet does not know the chain", err)
	case errors.Is(err, wallet.ErrNoAccounts):
		return clierr.Wrap(clierr.CodeNotConnected, op+": wallet is not connected", err)
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	return clierr.Wrap(clierr.CodeUnavailable, op, err)
}
