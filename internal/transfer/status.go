package transfer

import (
	"context"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/id"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/route"
)

// Status is a snapshot of the wallet against one direction. Allowance and
// peer are only read when the wallet is on the source chain.
type Status struct {
	Direction     registry.Direction `json:"direction"`
	Account       string             `json:"account"`
	WalletChainID int64              `json:"wallet_chain_id"`
	WalletChain   string             `json:"wallet_chain"`
	SourceChain   string             `json:"source_chain"`
	OnSourceChain bool               `json:"on_source_chain"`
	Token         TokenMetadata      `json:"token"`
	Balance       string             `json:"balance"`
	BalanceBase   string             `json:"balance_base_units"`
	Spender       string             `json:"spender"`
	Allowance     string             `json:"allowance,omitempty"`
	AllowanceBase string             `json:"allowance_base_units,omitempty"`
	Peer          string             `json:"peer,omitempty"`
	PeerError     string             `json:"peer_error,omitempty"`
}

func readStatus(ctx context.Context, h network.Handle, rt route.Route, reader oft.ContractCaller) (Status, error) {
	if err := h.Checkpoint(); err != nil {
		return Status{}, err
	}
	account := h.Conn.Account()
	out := Status{
		Direction:     rt.Direction,
		Account:       account.Hex(),
		WalletChainID: h.Conn.ChainID(),
		WalletChain:   h.Conn.Chain().Name,
		SourceChain:   rt.Source.Name,
		OnSourceChain: h.Conn.ChainID() == rt.Source.ChainID,
		Spender:       rt.Spender.Hex(),
	}

	token := oft.NewToken(rt.Token, reader)
	meta, err := readMetadata(ctx, h, token)
	if err != nil {
		return Status{}, err
	}
	out.Token = meta

	balance, err := token.BalanceOf(ctx, account)
	if err != nil {
		return Status{}, h.Result(clierr.Wrap(clierr.CodeUnavailable, "read balance", err))
	}
	if err := h.Checkpoint(); err != nil {
		return Status{}, err
	}
	out.Balance = id.FormatBaseUnits(balance, meta.Decimals)
	out.BalanceBase = balance.String()

	if !out.OnSourceChain {
		return out, nil
	}

	caller := h.Conn.Caller()
	allowance, err := oft.NewToken(rt.Token, caller).Allowance(ctx, account, rt.Spender)
	if err != nil {
		return Status{}, h.Result(clierr.Wrap(clierr.CodeUnavailable, "read allowance", err))
	}
	if err := h.Checkpoint(); err != nil {
		return Status{}, err
	}
	out.Allowance = id.FormatBaseUnits(allowance, meta.Decimals)
	out.AllowanceBase = allowance.String()

	peer, err := oft.NewBridge(rt.PeerReader, caller).Peer(ctx, rt.Destination.EndpointID)
	if cerr := h.Checkpoint(); cerr != nil {
		return Status{}, cerr
	}
	if err != nil {
		out.PeerError = err.Error()
	} else {
		out.Peer = oft.Bytes32ToAddress(peer).Hex()
	}
	return out, nil
}
