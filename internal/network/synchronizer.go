// Package network keeps the wallet's active chain and the chain connection
// in step. It owns the session guard: every installed connection bumps the
// generation so flows holding an older handle abandon at their next
// checkpoint.
package network

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/session"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	Dial         Dialer
	Execute      execution.ExecuteOptions
	RPCOverrides map[string]string
	Logger       *zerolog.Logger
}

type Synchronizer struct {
	wallet wallet.Provider
	guard  *session.Guard
	dial   Dialer
	exec   execution.ExecuteOptions
	rpc    map[string]string
	log    zerolog.Logger

	mu   sync.RWMutex
	conn *Connection

	group    singleflight.Group
	switchMu sync.Mutex
}

func New(w wallet.Provider, guard *session.Guard, opts Options) *Synchronizer {
	if opts.Dial == nil {
		opts.Dial = DialEthclient
	}
	if guard == nil {
		guard = session.NewGuard()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "network").Logger()
	}
	return &Synchronizer{
		wallet: w,
		guard:  guard,
		dial:   opts.Dial,
		exec:   opts.Execute,
		rpc:    opts.RPCOverrides,
		log:    logger,
	}
}

func (s *Synchronizer) Guard() *session.Guard { return s.guard }

// Connect asks the wallet for account access and builds the first
// connection.
func (s *Synchronizer) Connect(ctx context.Context) (Handle, error) {
	if _, err := s.wallet.RequestAccounts(ctx); err != nil {
		return Handle{}, walletError("connect wallet", err)
	}
	if _, err := s.install(ctx); err != nil {
		return Handle{}, err
	}
	return s.Acquire()
}

// Resume builds a connection from an already authorized wallet without
// prompting.
func (s *Synchronizer) Resume(ctx context.Context) (Handle, error) {
	if _, err := s.install(ctx); err != nil {
		return Handle{}, err
	}
	return s.Acquire()
}

// Acquire snapshots the current connection and session token.
func (s *Synchronizer) Acquire() (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return Handle{}, clierr.New(clierr.CodeNotConnected, "wallet is not connected; run `oftbridge connect`")
	}
	return Handle{Conn: s.conn, Token: s.guard.Current(), guard: s.guard}, nil
}

// DialReadOnly opens a client for chain independent of the wallet.
func (s *Synchronizer) DialReadOnly(ctx context.Context, chain registry.ChainDescriptor) (ChainClient, error) {
	client, err := s.dial(ctx, chain.WithRPC(s.rpc[chain.Slug]))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc "+chain.Name, err)
	}
	return client, nil
}

// EnsureChain makes target the wallet's active chain. It reports whether a
// switch happened; callers holding a handle from before a switch must not
// continue with it. Concurrent calls for the same target share one switch.
func (s *Synchronizer) EnsureChain(ctx context.Context, target registry.ChainDescriptor) (bool, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(target.ChainID, 10), func() (any, error) {
		return s.switchTo(ctx, target)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *Synchronizer) switchTo(ctx context.Context, target registry.ChainDescriptor) (bool, error) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	active, err := s.wallet.ChainID(ctx)
	if err != nil {
		return false, walletError("read wallet chain", err)
	}
	if active == target.ChainID {
		if cur := s.current(); cur != nil && cur.ChainID() == target.ChainID {
			return false, nil
		}
		_, err := s.install(ctx)
		return true, err
	}

	log := s.log.With().Int64("from", active).Int64("to", target.ChainID).Logger()
	log.Info().Msg("requesting network switch")
	err = s.wallet.SwitchChain(ctx, target.ChainID)
	if errors.Is(err, wallet.ErrUnknownChain) {
		log.Info().Str("rpc", target.RPCURL).Msg("wallet does not know the chain; registering it")
		if err := s.wallet.AddChain(ctx, target); err != nil {
			return false, walletError("add network "+target.Name, err)
		}
		err = s.wallet.SwitchChain(ctx, target.ChainID)
	}
	if err != nil {
		return false, walletError("switch network to "+target.Name, err)
	}
	if _, err := s.install(ctx); err != nil {
		return true, err
	}
	log.Info().Msg("network switched")
	return true, nil
}

// Run consumes wallet events until ctx is done or the wallet closes its
// event stream.
func (s *Synchronizer) Run(ctx context.Context) {
	events := s.wallet.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.HandleEvent(ctx, ev); err != nil {
				s.log.Warn().Err(err).Str("event", string(ev.Kind)).Msg("rebuild connection after wallet event")
			}
		}
	}
}

// HandleEvent rebuilds the connection when ev reports a chain or account the
// current connection does not already reflect.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev wallet.Event) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	cur := s.current()
	if cur != nil && !changes(cur, ev) {
		return nil
	}
	s.log.Info().Str("event", string(ev.Kind)).Int64("chain_id", ev.ChainID).Msg("wallet changed")
	_, err := s.install(ctx)
	return err
}

func changes(cur *Connection, ev wallet.Event) bool {
	switch ev.Kind {
	case wallet.EventChainChanged:
		return ev.ChainID != cur.ChainID()
	case wallet.EventAccountsChanged:
		return len(ev.Accounts) == 0 || ev.Accounts[0] != cur.Account()
	default:
		return false
	}
}

func (s *Synchronizer) current() *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// install builds a fresh connection from what the wallet reports now, swaps
// it in and bumps the session in one step.
func (s *Synchronizer) install(ctx context.Context) (*Connection, error) {
	accounts, err := s.wallet.Accounts(ctx)
	if err != nil {
		return nil, walletError("read wallet accounts", err)
	}
	if len(accounts) == 0 {
		s.swap(nil)
		return nil, clierr.New(clierr.CodeNotConnected, "wallet is not connected; run `oftbridge connect`")
	}
	chainID, err := s.wallet.ChainID(ctx)
	if err != nil {
		return nil, walletError("read wallet chain", err)
	}

	conn := &Connection{account: accounts[0], wallet: s.wallet, exec: s.exec}
	if desc, ok := registry.ChainByID(chainID); ok {
		conn.chain = desc.WithRPC(s.rpc[desc.Slug])
		conn.known = true
		client, err := s.dial(ctx, conn.chain)
		if err != nil {
			// The wallet already moved; the previous connection is stale.
			s.swap(nil)
			return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc "+conn.chain.Name, err)
		}
		conn.client = client
	} else {
		conn.chain = registry.ChainDescriptor{ChainID: chainID, Name: fmt.Sprintf("chain %d", chainID)}
	}
	s.swap(conn)
	s.log.Debug().Int64("chain_id", chainID).Str("account", conn.account.Hex()).Uint64("session", uint64(s.guard.Current())).Msg("connection rebuilt")
	return conn, nil
}

func (s *Synchronizer) swap(conn *Connection) {
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.guard.Bump()
	s.mu.Unlock()
	if old != nil && old.client != nil {
		old.client.Close()
	}
}

// Close releases the active chain client.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && s.conn.client != nil {
		s.conn.client.Close()
	}
	s.conn = nil
}
