// Package local is a wallet backed by a local signing key. Its active chain
// and registered networks live in a state file shared by every oftbridge
// process, so a switch made in one terminal reaches flows running in another.
package local

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/execution/signer"
	"github.com/ggonzalez94/oftbridge/internal/id"
	"github.com/ggonzalez94/oftbridge/internal/prompt"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
	"github.com/rs/zerolog"
)

// DialFunc opens a transaction backend for an RPC URL.
type DialFunc func(ctx context.Context, rpcURL string) (execution.Backend, func(), error)

type Options struct {
	StatePath    string
	LockPath     string
	Home         registry.ChainDescriptor
	Signer       signer.Signer
	Confirm      prompt.Confirmer
	Dial         DialFunc
	Execute      execution.ExecuteOptions
	PollInterval time.Duration
	Logger       *zerolog.Logger
}

type Wallet struct {
	file    *stateFile
	signer  signer.Signer
	confirm prompt.Confirmer
	dial    DialFunc
	exec    execution.ExecuteOptions
	log     zerolog.Logger

	events chan wallet.Event
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	lastSeen state
}

var _ wallet.Provider = (*Wallet)(nil)

func DialEthclient(ctx context.Context, rpcURL string) (execution.Backend, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// Open loads the wallet state and starts watching it for changes made by
// other processes.
func Open(opts Options) (*Wallet, error) {
	if opts.Signer == nil {
		return nil, errors.New("local wallet requires a signer")
	}
	if opts.Confirm == nil {
		opts.Confirm = prompt.NonInteractive()
	}
	if opts.Dial == nil {
		opts.Dial = DialEthclient
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Home.ChainID == 0 {
		opts.Home = registry.Chains()[0]
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "wallet.local").Logger()
	}
	// Transactions are simulated by the connection before they reach us.
	opts.Execute.Simulate = false

	file, err := newStateFile(opts.StatePath, opts.LockPath, opts.Home)
	if err != nil {
		return nil, err
	}
	st, err := file.load()
	if err != nil {
		return nil, err
	}
	w := &Wallet{
		file:     file,
		signer:   opts.Signer,
		confirm:  opts.Confirm,
		dial:     opts.Dial,
		exec:     opts.Execute,
		log:      logger,
		events:   make(chan wallet.Event, 16),
		done:     make(chan struct{}),
		lastSeen: st,
	}
	go w.watch(opts.PollInterval)
	return w, nil
}

func (w *Wallet) Events() <-chan wallet.Event { return w.events }

func (w *Wallet) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	st, err := w.file.load()
	if err != nil {
		return nil, err
	}
	if st.Connected {
		return []common.Address{w.signer.Address()}, nil
	}
	if err := w.ask(fmt.Sprintf("Connect account %s to oftbridge?", w.signer.Address().Hex())); err != nil {
		return nil, err
	}
	st, err = w.file.update(func(s *state) error {
		s.Connected = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.observe(st)
	return []common.Address{w.signer.Address()}, nil
}

func (w *Wallet) Accounts(context.Context) ([]common.Address, error) {
	st, err := w.file.load()
	if err != nil {
		return nil, err
	}
	return w.accounts(st), nil
}

func (w *Wallet) accounts(st state) []common.Address {
	if !st.Connected {
		return []common.Address{}
	}
	return []common.Address{w.signer.Address()}
}

func (w *Wallet) ChainID(context.Context) (int64, error) {
	st, err := w.file.load()
	if err != nil {
		return 0, err
	}
	return st.ActiveChainID, nil
}

func (w *Wallet) SwitchChain(_ context.Context, chainID int64) error {
	st, err := w.file.load()
	if err != nil {
		return err
	}
	if st.ActiveChainID == chainID {
		return nil
	}
	target, ok := st.chain(chainID)
	if !ok {
		return fmt.Errorf("%w: chain id %d", wallet.ErrUnknownChain, chainID)
	}
	from := fmt.Sprintf("chain %d", st.ActiveChainID)
	if cur, ok := st.chain(st.ActiveChainID); ok {
		from = cur.Name
	}
	if err := w.ask(fmt.Sprintf("Switch wallet network from %s to %s?", from, target.Name)); err != nil {
		return err
	}
	st, err = w.file.update(func(s *state) error {
		if _, ok := s.chain(chainID); !ok {
			return fmt.Errorf("%w: chain id %d", wallet.ErrUnknownChain, chainID)
		}
		s.ActiveChainID = chainID
		return nil
	})
	if err != nil {
		return err
	}
	w.log.Info().Int64("chain_id", chainID).Msg("switched network")
	w.observe(st)
	return nil
}

func (w *Wallet) AddChain(_ context.Context, chain registry.ChainDescriptor) error {
	st, err := w.file.load()
	if err != nil {
		return err
	}
	if _, ok := st.chain(chain.ChainID); ok {
		return nil
	}
	label := fmt.Sprintf("Add network %s (chain %d, rpc %s, explorer %s)?", chain.Name, chain.ChainID, chain.RPCURL, chain.ExplorerURL)
	if err := w.ask(label); err != nil {
		return err
	}
	_, err = w.file.update(func(s *state) error {
		if _, ok := s.chain(chain.ChainID); !ok {
			s.Chains = append(s.Chains, recordFor(chain))
		}
		return nil
	})
	if err == nil {
		w.log.Info().Int64("chain_id", chain.ChainID).Str("name", chain.Name).Msg("registered network")
	}
	return err
}

// SendTransaction signs and broadcasts tx on the active chain after the user
// confirms it.
func (w *Wallet) SendTransaction(ctx context.Context, tx wallet.Tx) (common.Hash, error) {
	st, err := w.file.load()
	if err != nil {
		return common.Hash{}, err
	}
	if !st.Connected {
		return common.Hash{}, wallet.ErrNoAccounts
	}
	if tx.From != (common.Address{}) && tx.From != w.signer.Address() {
		return common.Hash{}, fmt.Errorf("account %s is not managed by this wallet", tx.From.Hex())
	}
	if tx.ChainID != 0 && tx.ChainID != st.ActiveChainID {
		return common.Hash{}, fmt.Errorf("transaction targets chain %d but wallet is on chain %d", tx.ChainID, st.ActiveChainID)
	}
	chain, ok := st.chain(st.ActiveChainID)
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: chain id %d", wallet.ErrUnknownChain, st.ActiveChainID)
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	label := fmt.Sprintf("Send transaction to %s on %s with value %s %s?", tx.To.Hex(), chain.Name, id.FormatBaseUnits(value, 18), chain.NativeSymbol)
	if err := w.ask(label); err != nil {
		return common.Hash{}, err
	}

	backend, closeFn, err := w.dial(ctx, chain.RPCURL)
	if err != nil {
		return common.Hash{}, fmt.Errorf("connect rpc %s: %w", chain.RPCURL, err)
	}
	defer closeFn()
	signed, err := execution.Submit(ctx, backend, w.signer, execution.TxRequest{To: tx.To, Data: tx.Data, Value: value}, w.exec)
	if err != nil {
		return common.Hash{}, err
	}
	w.log.Debug().Str("tx_hash", signed.Hash().Hex()).Uint64("nonce", signed.Nonce()).Msg("broadcast transaction")
	return signed.Hash(), nil
}

func (w *Wallet) ask(label string) error {
	ok, err := w.confirm.Confirm(label)
	if err != nil {
		return fmt.Errorf("%w: %v", wallet.ErrUserRejected, err)
	}
	if !ok {
		return wallet.ErrUserRejected
	}
	return nil
}

// observe emits events for differences between st and the last state seen.
func (w *Wallet) observe(st state) {
	w.mu.Lock()
	prev := w.lastSeen
	w.lastSeen = st
	w.mu.Unlock()

	if prevAccts, accts := w.accounts(prev), w.accounts(st); !wallet.SameAccounts(prevAccts, accts) {
		w.emit(wallet.Event{Kind: wallet.EventAccountsChanged, ChainID: st.ActiveChainID, Accounts: accts})
	}
	if prev.ActiveChainID != st.ActiveChainID {
		w.emit(wallet.Event{Kind: wallet.EventChainChanged, ChainID: st.ActiveChainID, Accounts: w.accounts(st)})
	}
}

func (w *Wallet) emit(ev wallet.Event) {
	select {
	case w.events <- ev:
	default:
		w.log.Warn().Str("event", string(ev.Kind)).Msg("dropping wallet event; no consumer")
	}
}

func (w *Wallet) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			st, err := w.file.load()
			if err != nil {
				w.log.Debug().Err(err).Msg("poll wallet state")
				continue
			}
			w.observe(st)
		}
	}
}
