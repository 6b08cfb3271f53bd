package transfer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/rs/zerolog"
)

// SendResult is the source-chain outcome of a send. Delivery on the
// destination chain is not tracked.
type SendResult struct {
	ActionID    string         `json:"action_id,omitempty"`
	Quote       QuoteView      `json:"quote"`
	Approval    ApprovalResult `json:"approval"`
	TxHash      string         `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
}

// Executor re-quotes, tops up the allowance and submits send with the
// quoted fee as value. It never retries.
type Executor struct {
	quotes    *QuoteEngine
	approvals *ApprovalManager
	log       zerolog.Logger
}

func NewExecutor(quotes *QuoteEngine, approvals *ApprovalManager, logger zerolog.Logger) *Executor {
	return &Executor{quotes: quotes, approvals: approvals, log: logger.With().Str("component", "send").Logger()}
}

func (x *Executor) Send(ctx context.Context, h network.Handle, rt route.Route, in parsedIntent, tr *tracker) (SendResult, error) {
	q, err := x.quotes.Quote(ctx, h, rt, in)
	if err != nil {
		return SendResult{}, err
	}
	out := SendResult{Quote: q.View()}
	tr.action.InputAmount = q.Param.AmountLD.String()

	approval, err := x.approvals.Ensure(ctx, h, rt, q.Param.AmountLD, tr)
	out.Approval = approval
	if err != nil {
		return out, err
	}
	if err := h.Checkpoint(); err != nil {
		return out, err
	}

	data, err := oft.PackSend(q.Param, q.Fee, q.Sender)
	if err != nil {
		return out, clierr.Wrap(clierr.CodeInternal, "pack send", err)
	}
	step := tr.addStep(execution.ActionStep{
		StepID:      "send",
		Type:        execution.StepTypeBridge,
		Status:      execution.StepStatusPending,
		ChainID:     rt.Source.CAIP2(),
		Description: fmt.Sprintf("Send %s %s to %s", out.Quote.Amount, q.Token.Symbol, rt.Destination.Name),
		Target:      rt.SendContract.Hex(),
		Data:        hexutil.Encode(data),
		Value:       q.Fee.NativeFee.String(),
		ExpectedOutputs: map[string]string{
			"amount":     q.Param.AmountLD.String(),
			"min_amount": q.Param.MinAmountLD.String(),
			"native_fee": q.Fee.NativeFee.String(),
		},
	})
	exp := execution.Expectations{
		SendContract: rt.SendContract,
		Refund:       q.Sender,
		DstEid:       rt.Destination.EndpointID,
		Amount:       q.Param.AmountLD,
		MinAmount:    q.Param.MinAmountLD,
		NativeFee:    q.Fee.NativeFee,
	}
	if err := execution.ValidateStep(step, exp); err != nil {
		return out, err
	}
	if err := h.Checkpoint(); err != nil {
		return out, err
	}

	x.log.Info().
		Str("send_contract", rt.SendContract.Hex()).
		Str("value", q.Fee.NativeFee.String()).
		Msg("submitting send")
	hash, err := h.Send(ctx, rt.SendContract, data, q.Fee.NativeFee)
	if err != nil {
		return out, err
	}
	markSubmitted(step, hash, rt)
	out.TxHash = hash.Hex()
	out.ExplorerURL = step.ExplorerURL
	tr.running()

	receipt, err := h.WaitReceipt(ctx, hash)
	if err != nil {
		step.Error = err.Error()
		return out, h.Result(err)
	}
	step.Status = execution.StepStatusConfirmed
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	tr.save()
	if err := h.Checkpoint(); err != nil {
		return out, err
	}
	x.log.Info().Str("tx_hash", hash.Hex()).Uint64("block", out.BlockNumber).Msg("send confirmed on source chain")
	return out, nil
}
