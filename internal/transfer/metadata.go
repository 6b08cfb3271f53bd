package transfer

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/oft"
)

// TokenMetadata is read once per flow and never reused across flows.
type TokenMetadata struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
}

// readMetadata reads decimals and symbol. A missing symbol is not fatal;
// decimals are.
func readMetadata(ctx context.Context, h network.Handle, token *oft.Token) (TokenMetadata, error) {
	meta := TokenMetadata{Address: token.Address()}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return TokenMetadata{}, h.Result(clierr.Wrap(clierr.CodeUnavailable, "read token decimals", err))
	}
	if err := h.Checkpoint(); err != nil {
		return TokenMetadata{}, err
	}
	meta.Decimals = decimals

	symbol, err := token.Symbol(ctx)
	if err := h.Checkpoint(); err != nil {
		return TokenMetadata{}, err
	}
	if err != nil || strings.TrimSpace(symbol) == "" {
		symbol = "TOKEN"
	}
	meta.Symbol = symbol
	return meta, nil
}
