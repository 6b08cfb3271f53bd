// Package diag holds diagnostics that sit outside the transfer flows: raw
// eth_call simulation against a user supplied node and cached peer checks.
package diag

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/httpx"
	"github.com/ggonzalez94/oftbridge/internal/registry"
)

// RPCCaller runs eth_call over plain JSON-RPC. It satisfies the contract
// caller interfaces used by the oft bindings.
type RPCCaller struct {
	client *httpx.Client
	url    string
}

// NewRPCCaller rejects plain-text endpoints that are not loopback.
func NewRPCCaller(client *httpx.Client, url string) (*RPCCaller, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, clierr.New(clierr.CodeUsage, "--rpc-url is required")
	}
	if !registry.IsAllowedEndpoint("http", url) {
		return nil, clierr.New(clierr.CodeUsage, "rpc url must use https (http is only allowed for localhost)")
	}
	return &RPCCaller{client: client, url: url}, nil
}

func (c *RPCCaller) URL() string { return c.url }

func (c *RPCCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	arg := map[string]any{"data": hexutil.Bytes(msg.Data)}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if msg.To != nil {
		arg["to"] = *msg.To
	}
	if msg.Value != nil && msg.Value.Sign() > 0 {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	block := "latest"
	if blockNumber != nil {
		block = hexutil.EncodeBig(blockNumber)
	}
	var out hexutil.Bytes
	if err := c.client.Call(ctx, c.url, "eth_call", []any{arg, block}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
