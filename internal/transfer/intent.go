// Package transfer sequences quote, approval and send for one bridge
// direction. Every flow runs against a network.Handle and checks it after
// each call that leaves the process.
package transfer

import (
	"math/big"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/id"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/shopspring/decimal"
)

const (
	DefaultSlippage = "0.5"
	DefaultLzGas    = "200000"
)

// Intent is the raw user input for a transfer.
type Intent struct {
	Amount   string
	Slippage string
	LzGas    string
}

// parsedIntent is an Intent that passed every check that needs no chain
// access. The amount is converted to base units once token decimals are
// known.
type parsedIntent struct {
	raw         string
	amount      decimal.Decimal
	slippage    decimal.Decimal
	slippageBps int64
	lzGas       *big.Int
	options     []byte
}

// Validate checks the intent without touching the wallet or the network.
func (in Intent) Validate() error {
	_, err := parseIntent(in)
	return err
}

func parseIntent(in Intent) (parsedIntent, error) {
	amount, err := id.ParseDecimalAmount(in.Amount)
	if err != nil {
		return parsedIntent{}, err
	}
	slippage, err := id.ParsePercent(in.Slippage)
	if err != nil {
		return parsedIntent{}, err
	}
	gas, err := id.ParsePositiveInteger(in.LzGas, 128)
	if err != nil {
		return parsedIntent{}, clierr.Wrap(clierr.CodeUsage, "invalid lz gas", err)
	}
	options, err := oft.ExecutorLzReceiveOptions(gas, nil)
	if err != nil {
		return parsedIntent{}, clierr.Wrap(clierr.CodeUsage, "invalid lz gas", err)
	}
	return parsedIntent{
		raw:         in.Amount,
		amount:      amount,
		slippage:    slippage,
		slippageBps: oft.SlippageBps(slippage),
		lzGas:       gas,
		options:     options,
	}, nil
}
