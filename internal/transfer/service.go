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

type Options struct {
	Journal  Journal
	Simulate bool
	Logger   *zerolog.Logger
}

// Service runs user actions end to end: resolve the route, bring the wallet
// to the source chain, then run the flow against a fresh handle.
type Service struct {
	routes    *route.Table
	sync      *network.Synchronizer
	journal   Journal
	simulate  bool
	quotes    *QuoteEngine
	approvals *ApprovalManager
	executor  *Executor
	log       zerolog.Logger
}

func NewService(routes *route.Table, sync *network.Synchronizer, opts Options) *Service {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	quotes := NewQuoteEngine(logger)
	approvals := NewApprovalManager(logger)
	return &Service{
		routes:    routes,
		sync:      sync,
		journal:   opts.Journal,
		simulate:  opts.Simulate,
		quotes:    quotes,
		approvals: approvals,
		executor:  NewExecutor(quotes, approvals, logger),
		log:       logger.With().Str("component", "transfer").Logger(),
	}
}

// SwitchResult reports the outcome of an explicit network switch.
type SwitchResult struct {
	ChainID  int64  `json:"chain_id"`
	Chain    string `json:"chain"`
	Switched bool   `json:"switched"`
}

// Switch moves the wallet to chain without running any flow.
func (s *Service) Switch(ctx context.Context, chain registry.ChainDescriptor) (SwitchResult, error) {
	if _, err := s.sync.Acquire(); err != nil {
		return SwitchResult{}, err
	}
	switched, err := s.sync.EnsureChain(ctx, chain)
	if err != nil {
		return SwitchResult{}, err
	}
	return SwitchResult{ChainID: chain.ChainID, Chain: chain.Name, Switched: switched}, nil
}

// Status reads the balance on the source chain through a read-only client,
// whatever chain the wallet is on.
func (s *Service) Status(ctx context.Context, dir registry.Direction) (Status, error) {
	rt := s.routes.Resolve(dir)
	h, err := s.sync.Acquire()
	if err != nil {
		return Status{}, err
	}
	reader := h.Conn.Caller()
	if h.Conn.ChainID() != rt.Source.ChainID {
		client, err := s.sync.DialReadOnly(ctx, rt.Source)
		if err != nil {
			return Status{}, err
		}
		defer client.Close()
		reader = client
	}
	return readStatus(ctx, h, rt, reader)
}

func (s *Service) Quote(ctx context.Context, dir registry.Direction, in Intent) (QuoteView, error) {
	parsed, err := parseIntent(in)
	if err != nil {
		return QuoteView{}, err
	}
	rt := s.routes.Resolve(dir)
	h, err := s.onSource(ctx, rt)
	if err != nil {
		return QuoteView{}, err
	}
	q, err := s.quotes.Quote(ctx, h, rt, parsed)
	if err != nil {
		return QuoteView{}, err
	}
	return q.View(), nil
}

// ApproveResult is the outcome of a standalone approval.
type ApproveResult struct {
	ActionID string         `json:"action_id,omitempty"`
	Token    TokenMetadata  `json:"token"`
	Amount   string         `json:"amount"`
	Approval ApprovalResult `json:"approval"`
}

func (s *Service) Approve(ctx context.Context, dir registry.Direction, in Intent) (ApproveResult, error) {
	parsed, err := parseIntent(in)
	if err != nil {
		return ApproveResult{}, err
	}
	rt := s.routes.Resolve(dir)
	h, err := s.onSource(ctx, rt)
	if err != nil {
		return ApproveResult{}, err
	}
	meta, err := readMetadata(ctx, h, oft.NewToken(rt.Token, h.Conn.Caller()))
	if err != nil {
		return ApproveResult{}, err
	}
	amount, err := id.ToBaseUnits(parsed.amount, meta.Decimals)
	if err != nil {
		return ApproveResult{}, err
	}

	tr := s.newTracker(execution.IntentApprove, h, rt, parsed)
	tr.action.InputAmount = amount.String()
	res, err := s.approvals.Ensure(ctx, h, rt, amount, tr)
	tr.finish(err)
	out := ApproveResult{Token: meta, Amount: id.FormatBaseUnits(amount, meta.Decimals), Approval: res}
	if tr.saved {
		out.ActionID = tr.action.ActionID
	}
	return out, err
}

func (s *Service) Send(ctx context.Context, dir registry.Direction, in Intent) (SendResult, error) {
	parsed, err := parseIntent(in)
	if err != nil {
		return SendResult{}, err
	}
	rt := s.routes.Resolve(dir)
	h, err := s.onSource(ctx, rt)
	if err != nil {
		return SendResult{}, err
	}
	tr := s.newTracker(execution.IntentSend, h, rt, parsed)
	res, err := s.executor.Send(ctx, h, rt, parsed, tr)
	tr.finish(err)
	if tr.saved {
		res.ActionID = tr.action.ActionID
	}
	return res, err
}

// SendCall is the exact send transaction a flow would submit right now.
type SendCall struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
	Quote QuoteView
}

// PrepareSend quotes and packs the send call without approving or
// submitting anything.
func (s *Service) PrepareSend(ctx context.Context, dir registry.Direction, in Intent) (SendCall, error) {
	parsed, err := parseIntent(in)
	if err != nil {
		return SendCall{}, err
	}
	rt := s.routes.Resolve(dir)
	h, err := s.onSource(ctx, rt)
	if err != nil {
		return SendCall{}, err
	}
	q, err := s.quotes.Quote(ctx, h, rt, parsed)
	if err != nil {
		return SendCall{}, err
	}
	data, err := oft.PackSend(q.Param, q.Fee, q.Sender)
	if err != nil {
		return SendCall{}, clierr.Wrap(clierr.CodeInternal, "pack send", err)
	}
	return SendCall{From: q.Sender, To: rt.SendContract, Data: data, Value: q.Fee.NativeFee, Quote: q.View()}, nil
}

// onSource returns a handle on rt's source chain. When the wallet had to
// switch, the flow halts and the caller is asked to retry against the new
// connection.
func (s *Service) onSource(ctx context.Context, rt route.Route) (network.Handle, error) {
	if _, err := s.sync.Acquire(); err != nil {
		return network.Handle{}, err
	}
	switched, err := s.sync.EnsureChain(ctx, rt.Source)
	if err != nil {
		return network.Handle{}, err
	}
	if switched {
		s.log.Info().Str("chain", rt.Source.Name).Msg("wallet switched network; flow halted")
		return network.Handle{}, clierr.New(clierr.CodeWrongNetwork, fmt.Sprintf("wallet switched to %s; run the command again", rt.Source.Name))
	}
	return s.sync.Acquire()
}

func (s *Service) newTracker(intent string, h network.Handle, rt route.Route, in parsedIntent) *tracker {
	action := execution.NewAction(execution.NewActionID(), intent, rt.Source.CAIP2(), execution.Constraints{
		SlippageBps: in.slippageBps,
		LzGas:       in.lzGas.String(),
		Simulate:    s.simulate,
	})
	action.Direction = string(rt.Direction)
	action.DestinationID = rt.Destination.CAIP2()
	action.FromAddress = h.Conn.Account().Hex()
	action.InputAmount = in.raw
	return newTracker(s.journal, action, s.log)
}
