// Package remote talks to a browser or mobile wallet through a JSON-RPC
// relay over a websocket. Requests and notifications follow EIP-1193.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	codeUserRejected      = 4001
	codeUnrecognizedChain = 4902

	defaultConnectTimeout = 30 * time.Second
	defaultRequestTimeout = 5 * time.Minute
	heartbeatPeriod       = 30 * time.Second
)

var ErrDisconnected = errors.New("wallet relay disconnected")

// RPCError is a wallet error that maps to neither a rejection nor an unknown
// chain.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error: %s (code %d)", e.Message, e.Code)
}

type request struct {
	ID      uint64 `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type Options struct {
	Origin         string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     zerolog.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan message
	readErr error

	events    chan wallet.Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ wallet.Provider = (*Client)(nil)

// Dial connects to a relay. Plain ws:// is accepted for loopback hosts only.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if !registry.IsAllowedEndpoint("ws", url) {
		return nil, fmt.Errorf("wallet relay url %q must use wss:// (ws:// is allowed for localhost only)", url)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "wallet.remote").Logger()
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.ConnectTimeout}
	header := http.Header{}
	if strings.TrimSpace(opts.Origin) != "" {
		header.Set("Origin", opts.Origin)
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("relay connection failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("relay connection failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		timeout: opts.RequestTimeout,
		log:     logger,
		pending: make(map[uint64]chan message),
		events:  make(chan wallet.Event, 16),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.heartbeat()
	return c, nil
}

func (c *Client) Events() <-chan wallet.Event { return c.events }

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return c.accounts(ctx, "eth_requestAccounts")
}

func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	return c.accounts(ctx, "eth_accounts")
}

func (c *Client) accounts(ctx context.Context, method string) ([]common.Address, error) {
	var raw []string
	if err := c.call(ctx, method, []any{}, &raw); err != nil {
		return nil, err
	}
	return parseAccounts(raw)
}

func (c *Client) ChainID(ctx context.Context) (int64, error) {
	var raw string
	if err := c.call(ctx, "eth_chainId", []any{}, &raw); err != nil {
		return 0, err
	}
	return parseChainID(raw)
}

func (c *Client) SwitchChain(ctx context.Context, chainID int64) error {
	params := []any{map[string]string{"chainId": hexutil.EncodeBig(big.NewInt(chainID))}}
	return c.call(ctx, "wallet_switchEthereumChain", params, nil)
}

func (c *Client) AddChain(ctx context.Context, chain registry.ChainDescriptor) error {
	params := []any{map[string]any{
		"chainId":   chain.HexChainID(),
		"chainName": chain.Name,
		"nativeCurrency": map[string]any{
			"name":     chain.NativeName,
			"symbol":   chain.NativeSymbol,
			"decimals": chain.NativeDec,
		},
		"rpcUrls":           []string{chain.RPCURL},
		"blockExplorerUrls": []string{chain.ExplorerURL},
	}}
	return c.call(ctx, "wallet_addEthereumChain", params, nil)
}

func (c *Client) SendTransaction(ctx context.Context, tx wallet.Tx) (common.Hash, error) {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	obj := map[string]string{
		"from":  tx.From.Hex(),
		"to":    tx.To.Hex(),
		"data":  hexutil.Encode(tx.Data),
		"value": hexutil.EncodeBig(value),
	}
	if tx.ChainID != 0 {
		obj["chainId"] = hexutil.EncodeBig(big.NewInt(tx.ChainID))
	}
	var raw string
	if err := c.call(ctx, "eth_sendTransaction", []any{obj}, &raw); err != nil {
		return common.Hash{}, err
	}
	if len(strings.TrimPrefix(raw, "0x")) != 64 {
		return common.Hash{}, fmt.Errorf("wallet returned invalid transaction hash %q", raw)
	}
	return common.HexToHash(raw), nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan message, 1)

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(request{ID: id, JSONRPC: "2.0", Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	c.log.Debug().Uint64("id", id).Str("method", method).Msg("wallet request")

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s: wallet did not answer within %s", method, c.timeout)
	case msg, ok := <-ch:
		if !ok {
			return ErrDisconnected
		}
		if msg.Error != nil {
			return mapError(msg.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func mapError(e *RPCError) error {
	switch {
	case e.Code == codeUserRejected:
		return fmt.Errorf("%w: %s", wallet.ErrUserRejected, e.Message)
	case e.Code == codeUnrecognizedChain, strings.Contains(strings.ToLower(e.Message), "unrecognized chain"):
		return fmt.Errorf("%w: %s", wallet.ErrUnknownChain, e.Message)
	default:
		return e
	}
}

func (c *Client) readLoop() {
	defer c.failPending()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = fmt.Errorf("%w: %v", ErrDisconnected, err)
			c.mu.Unlock()
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug().Err(err).Msg("skip undecodable relay message")
			continue
		}
		if msg.ID != nil && msg.Method == "" {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		c.notify(msg)
	}
}

func (c *Client) notify(msg message) {
	var params []json.RawMessage
	if err := json.Unmarshal(msg.Params, &params); err != nil || len(params) == 0 {
		return
	}
	var ev wallet.Event
	switch msg.Method {
	case string(wallet.EventChainChanged):
		var raw string
		if err := json.Unmarshal(params[0], &raw); err != nil {
			return
		}
		chainID, err := parseChainID(raw)
		if err != nil {
			return
		}
		ev = wallet.Event{Kind: wallet.EventChainChanged, ChainID: chainID}
	case string(wallet.EventAccountsChanged):
		var raw []string
		if err := json.Unmarshal(params[0], &raw); err != nil {
			return
		}
		accts, err := parseAccounts(raw)
		if err != nil {
			return
		}
		ev = wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: accts}
	default:
		return
	}
	select {
	case c.events <- ev:
	case <-c.done:
	default:
		c.log.Warn().Str("event", string(ev.Kind)).Msg("dropping wallet event; no consumer")
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) heartbeat() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func parseChainID(raw string) (int64, error) {
	clean := strings.TrimSpace(raw)
	if !strings.HasPrefix(clean, "0x") {
		return 0, fmt.Errorf("invalid chain id %q", raw)
	}
	n, ok := new(big.Int).SetString(clean[2:], 16)
	if !ok || !n.IsInt64() || n.Sign() <= 0 {
		return 0, fmt.Errorf("invalid chain id %q", raw)
	}
	return n.Int64(), nil
}

func parseAccounts(raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, v := range raw {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("wallet returned invalid account %q", v)
		}
		out = append(out, common.HexToAddress(v))
	}
	return out, nil
}
