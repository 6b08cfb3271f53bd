package transfer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/id"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/rs/zerolog"
)

// Quote is valid only for the route and intent it was built from.
type Quote struct {
	Route     route.Route
	Token     TokenMetadata
	Sender    common.Address
	Param     oft.SendParam
	Fee       oft.MessagingFee
	Slippage  string
	LzGas     *big.Int
	Peer      *common.Address
	PeerError string
}

// QuoteEngine builds the send message and asks the quote contract for its
// fee.
type QuoteEngine struct {
	log zerolog.Logger
}

func NewQuoteEngine(logger zerolog.Logger) *QuoteEngine {
	return &QuoteEngine{log: logger.With().Str("component", "quote").Logger()}
}

// Quote requires h to be on the route's source chain.
func (e *QuoteEngine) Quote(ctx context.Context, h network.Handle, rt route.Route, in parsedIntent) (Quote, error) {
	if err := requireSource(h, rt); err != nil {
		return Quote{}, err
	}
	caller := h.Conn.Caller()
	meta, err := readMetadata(ctx, h, oft.NewToken(rt.Token, caller))
	if err != nil {
		return Quote{}, err
	}
	amount, err := id.ToBaseUnits(in.amount, meta.Decimals)
	if err != nil {
		return Quote{}, err
	}

	sender := h.Conn.Account()
	q := Quote{
		Route:    rt,
		Token:    meta,
		Sender:   sender,
		Slippage: in.slippage.String(),
		LzGas:    in.lzGas,
		Param: oft.SendParam{
			DstEid:       rt.Destination.EndpointID,
			To:           oft.AddressToBytes32(sender),
			AmountLD:     amount,
			MinAmountLD:  oft.MinAmount(amount, in.slippageBps),
			ExtraOptions: in.options,
			ComposeMsg:   []byte{},
			OftCmd:       []byte{},
		},
	}

	peer, err := oft.NewBridge(rt.PeerReader, caller).Peer(ctx, rt.Destination.EndpointID)
	if cerr := h.Checkpoint(); cerr != nil {
		return Quote{}, cerr
	}
	if err != nil {
		q.PeerError = err.Error()
		e.log.Debug().Err(err).Str("peer_reader", rt.PeerReader.Hex()).Msg("peer lookup failed")
	} else {
		addr := oft.Bytes32ToAddress(peer)
		q.Peer = &addr
	}

	fee, err := oft.NewBridge(rt.QuoteContract, caller).QuoteSend(ctx, sender, q.Param)
	if err != nil {
		code := clierr.CodeUnavailable
		if len(execution.RevertDataFromError(err)) > 0 {
			code = clierr.CodeReverted
		}
		return Quote{}, h.Result(execution.WrapEVMError(code, "quoteSend on "+rt.QuoteContract.Hex(), err))
	}
	if err := h.Checkpoint(); err != nil {
		return Quote{}, err
	}
	q.Fee = fee
	e.log.Info().
		Str("direction", string(rt.Direction)).
		Str("amount", q.Param.AmountLD.String()).
		Str("min_amount", q.Param.MinAmountLD.String()).
		Str("native_fee", fee.NativeFee.String()).
		Msg("quote ready")
	return q, nil
}

func requireSource(h network.Handle, rt route.Route) error {
	if err := h.Checkpoint(); err != nil {
		return err
	}
	if h.Conn.ChainID() != rt.Source.ChainID {
		return clierr.New(clierr.CodeWrongNetwork, fmt.Sprintf("wallet is on %s; switch to %s first", h.Conn.Chain().Name, rt.Source.Name))
	}
	return nil
}

// QuoteView is the rendered form of a Quote.
type QuoteView struct {
	Direction       registry.Direction `json:"direction"`
	SourceChain     string             `json:"source_chain"`
	DestChain       string             `json:"destination_chain"`
	DstEid          uint32             `json:"dst_eid"`
	Token           TokenMetadata      `json:"token"`
	Sender          string             `json:"sender"`
	Recipient       string             `json:"recipient"`
	Amount          string             `json:"amount"`
	AmountBaseUnits string             `json:"amount_base_units"`
	MinAmount       string             `json:"min_amount"`
	MinAmountBase   string             `json:"min_amount_base_units"`
	SlippagePct     string             `json:"slippage_pct"`
	LzGas           string             `json:"lz_gas"`
	Options         string             `json:"options"`
	NativeFee       string             `json:"native_fee"`
	NativeFeeWei    string             `json:"native_fee_wei"`
	Spender         string             `json:"spender"`
	QuoteContract   string             `json:"quote_contract"`
	SendContract    string             `json:"send_contract"`
	Peer            string             `json:"peer,omitempty"`
	PeerError       string             `json:"peer_error,omitempty"`
}

func (q Quote) View() QuoteView {
	v := QuoteView{
		Direction:       q.Route.Direction,
		SourceChain:     q.Route.Source.Name,
		DestChain:       q.Route.Destination.Name,
		DstEid:          q.Param.DstEid,
		Token:           q.Token,
		Sender:          q.Sender.Hex(),
		Recipient:       common.BytesToHash(q.Param.To[:]).Hex(),
		Amount:          id.FormatBaseUnits(q.Param.AmountLD, q.Token.Decimals),
		AmountBaseUnits: q.Param.AmountLD.String(),
		MinAmount:       id.FormatBaseUnits(q.Param.MinAmountLD, q.Token.Decimals),
		MinAmountBase:   q.Param.MinAmountLD.String(),
		SlippagePct:     q.Slippage,
		Options:         "0x" + common.Bytes2Hex(q.Param.ExtraOptions),
		Spender:         q.Route.Spender.Hex(),
		QuoteContract:   q.Route.QuoteContract.Hex(),
		SendContract:    q.Route.SendContract.Hex(),
		PeerError:       q.PeerError,
	}
	if q.LzGas != nil {
		v.LzGas = q.LzGas.String()
	}
	if q.Fee.NativeFee != nil {
		v.NativeFeeWei = q.Fee.NativeFee.String()
		v.NativeFee = id.FormatBaseUnits(q.Fee.NativeFee, q.Route.Source.NativeDec) + " " + q.Route.Source.NativeSymbol
	}
	if q.Peer != nil {
		v.Peer = q.Peer.Hex()
	}
	return v
}
